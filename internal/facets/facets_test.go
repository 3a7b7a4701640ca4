package facets

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/pipeline"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu        sync.Mutex
	specs     []pipeline.CountSpec
	counts    map[string]map[string]int64
	docs      []pipeline.Doc
	total     int64
	priceMin  int64
	priceMax  int64
	hasPrices bool
	histogram map[int]int64
	histArgs  []int64
	failOn    string
}

func (f *fakeRunner) Docs(ctx context.Context, plan *pipeline.Plan) ([]pipeline.Doc, error) {
	if f.failOn == "docs" {
		return nil, errors.New("connection reset")
	}
	return f.docs, nil
}

func (f *fakeRunner) Total(ctx context.Context, plan *pipeline.Plan) (int64, error) {
	return f.total, nil
}

func (f *fakeRunner) Counts(ctx context.Context, plan *pipeline.Plan, spec pipeline.CountSpec) (map[string]int64, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.failOn == spec.Name {
		return nil, errors.New("statement timeout")
	}
	if f.failOn != "" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.counts[spec.Name], nil
}

func (f *fakeRunner) PriceRange(ctx context.Context, plan *pipeline.Plan) (int64, int64, bool, error) {
	return f.priceMin, f.priceMax, f.hasPrices, nil
}

func (f *fakeRunner) PriceHistogram(ctx context.Context, plan *pipeline.Plan, low, high int64, buckets int) (map[int]int64, error) {
	f.mu.Lock()
	f.histArgs = []int64{low, high, int64(buckets)}
	f.mu.Unlock()
	return f.histogram, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func storefrontPlan(t *testing.T, segments ...string) *pipeline.Plan {
	t.Helper()
	sel, err := filters.Parse(segments, filters.DefaultParseOptions())
	require.NoError(t, err)
	plan, err := pipeline.Build(pipeline.Input{TenantID: "tenant-1", Mode: models.CatalogueModeStorefront, Selection: sel})
	require.NoError(t, err)
	return plan
}

func TestRun_MergesDisjunctiveCounts(t *testing.T) {
	productID := uuid.New()
	runner := &fakeRunner{
		docs:  []pipeline.Doc{{ProductID: productID, ShopsCount: 2}},
		total: 1,
		counts: map[string]map[string]int64{
			"options": {
				"color-red":      1,
				"country-france": 1,
				"size-large":     1,
			},
			"options:color": {
				"color-red":   1,
				"color-white": 4,
			},
			"brands":     {"acme": 3},
			"categories": {"dry": 2},
		},
		hasPrices: true,
		priceMin:  100,
		priceMax:  1099,
		histogram: map[int]int64{1: 2, 10: 1},
	}
	executor := NewExecutor(runner, Config{PriceBuckets: 10}, quietLogger())

	result, err := executor.Run(context.Background(), storefrontPlan(t, "color-red"))

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	assert.Len(t, result.Docs, 1)
	assert.Equal(t, map[string]int64{
		"color-red":      1,
		"color-white":    4,
		"country-france": 1,
		"size-large":     1,
	}, result.OptionCounts)
	assert.Equal(t, int64(4), result.OptionCount("color", "white"))
	assert.Equal(t, map[string]int64{"red": 1, "white": 4}, result.OptionCountsOf("color"))
	assert.Equal(t, map[string]int64{"acme": 3}, result.BrandCounts)
	assert.Equal(t, map[string]int64{"dry": 2}, result.CategoryCounts)

	require.NotNil(t, result.Prices)
	assert.Equal(t, int64(100), result.Prices.Min)
	assert.Equal(t, int64(1099), result.Prices.Max)
	require.Len(t, result.Prices.Buckets, 10)
	assert.Equal(t, Bucket{From: 100, To: 200, Count: 2}, result.Prices.Buckets[0])
	assert.Equal(t, Bucket{From: 1000, To: 1100, Count: 1}, result.Prices.Buckets[9])
	assert.Equal(t, []int64{100, 1100, 10}, runner.histArgs)

	names := make([]string, 0, len(runner.specs))
	for _, spec := range runner.specs {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"brands", "categories", "options", "options:color"}, names)
	for _, spec := range runner.specs {
		if spec.Name == "options:color" {
			assert.Equal(t, "color", spec.Except)
			assert.Equal(t, "color-", spec.Prefix)
		}
	}
}

func TestRun_ProductsSourceSkipsPrices(t *testing.T) {
	plan, err := pipeline.Build(pipeline.Input{TenantID: "tenant-1", Mode: models.CatalogueModeConsoleProducts})
	require.NoError(t, err)
	runner := &fakeRunner{hasPrices: true, priceMax: 10}

	result, err := NewExecutor(runner, Config{}, quietLogger()).Run(context.Background(), plan)

	require.NoError(t, err)
	assert.Nil(t, result.Prices)
	assert.NotNil(t, result.BrandCounts)
	assert.NotNil(t, result.CategoryCounts)
	assert.Empty(t, result.OptionCounts)
}

func TestRun_EmptyMatchSetHasEmptyHistogram(t *testing.T) {
	runner := &fakeRunner{hasPrices: false}

	result, err := NewExecutor(runner, Config{}, quietLogger()).Run(context.Background(), storefrontPlan(t))

	require.NoError(t, err)
	require.NotNil(t, result.Prices)
	assert.Empty(t, result.Prices.Buckets)
	assert.Nil(t, runner.histArgs)
}

func TestRun_FirstErrorCancelsOthers(t *testing.T) {
	runner := &fakeRunner{failOn: "brands"}

	result, err := NewExecutor(runner, Config{Concurrency: 16}, quietLogger()).Run(context.Background(), storefrontPlan(t, "color-red", "size-large"))

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brands: statement timeout")
}

func TestRun_DocsError(t *testing.T) {
	runner := &fakeRunner{failOn: "docs"}

	_, err := NewExecutor(runner, Config{}, quietLogger()).Run(context.Background(), storefrontPlan(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs: connection reset")
}

func TestHistogramLayout(t *testing.T) {
	low, width, n := HistogramLayout(100, 1099, 10)
	assert.Equal(t, []int64{100, 100, 10}, []int64{low, width, int64(n)})

	// single price collapses to one bucket
	low, width, n = HistogramLayout(500, 500, 10)
	assert.Equal(t, []int64{500, 1, 1}, []int64{low, width, int64(n)})

	// span smaller than bucket count
	low, width, n = HistogramLayout(0, 3, 10)
	assert.Equal(t, []int64{0, 1, 4}, []int64{low, width, int64(n)})

	// uneven span rounds width up so max is covered
	low, width, n = HistogramLayout(0, 100, 3)
	assert.Equal(t, []int64{0, 34, 3}, []int64{low, width, int64(n)})
	assert.Greater(t, low+width*int64(n), int64(100))
}
