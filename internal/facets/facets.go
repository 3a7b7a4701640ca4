// Package facets runs the page, total and count queries of a catalogue plan
// concurrently and merges their results.
package facets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/pipeline"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Runner executes the queries of a plan against storage
type Runner interface {
	Docs(ctx context.Context, plan *pipeline.Plan) ([]pipeline.Doc, error)
	Total(ctx context.Context, plan *pipeline.Plan) (int64, error)
	Counts(ctx context.Context, plan *pipeline.Plan, spec pipeline.CountSpec) (map[string]int64, error)
	PriceRange(ctx context.Context, plan *pipeline.Plan) (min, max int64, ok bool, err error)
	PriceHistogram(ctx context.Context, plan *pipeline.Plan, low, high int64, buckets int) (map[int]int64, error)
}

// Config tunes the executor
type Config struct {
	PriceBuckets int
	Concurrency  int
}

func (c Config) normalize() Config {
	if c.PriceBuckets <= 0 {
		c.PriceBuckets = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

// Bucket is one price histogram bin over [From, To)
type Bucket struct {
	From  int64
	To    int64
	Count int64
}

// PriceStats is the price facet; Buckets is empty when nothing matched.
// Every product falls in exactly one bucket, the one holding its lowest price.
type PriceStats struct {
	Min     int64
	Max     int64
	Buckets []Bucket
}

// Result holds every facet of one plan
type Result struct {
	Docs  []pipeline.Doc
	Total int64
	// OptionCounts is keyed by option segment ("attribute-option")
	OptionCounts   map[string]int64
	BrandCounts    map[string]int64
	CategoryCounts map[string]int64
	// Prices is nil for sources without prices
	Prices *PriceStats
}

// OptionCount returns the count of option under attr
func (r *Result) OptionCount(attr, option string) int64 {
	return r.OptionCounts[filters.OptionSegment(attr, option)]
}

// OptionCountsOf returns the counts of attr keyed by option slug
func (r *Result) OptionCountsOf(attr string) map[string]int64 {
	prefix := attr + filters.Separator
	out := make(map[string]int64)
	for seg, n := range r.OptionCounts {
		if strings.HasPrefix(seg, prefix) {
			out[seg[len(prefix):]] = n
		}
	}
	return out
}

// Executor fans the facet queries of a plan out over a Runner
type Executor struct {
	runner Runner
	cfg    Config
	logger *logrus.Entry
}

// NewExecutor creates a new facet executor
func NewExecutor(runner Runner, cfg Config, logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{
		runner: runner,
		cfg:    cfg.normalize(),
		logger: logger.WithField("component", "facets"),
	}
}

// Run executes every facet of plan. Counts of a selected attribute ignore that
// attribute's own stage, so its sibling options keep the counts they would
// have if selected too. Brand, category and price facets work the same way.
// The first failing query cancels the others.
func (e *Executor) Run(ctx context.Context, plan *pipeline.Plan) (*Result, error) {
	start := time.Now()
	result := &Result{}
	selected := plan.SelectedAttributes()
	perAttribute := make([]map[string]int64, len(selected))
	var fullOptions map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	g.Go(func() error {
		docs, err := e.runner.Docs(gctx, plan)
		if err != nil {
			return fmt.Errorf("docs: %w", err)
		}
		result.Docs = docs
		return nil
	})
	g.Go(func() error {
		total, err := e.runner.Total(gctx, plan)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		result.Total = total
		return nil
	})
	g.Go(func() error {
		counts, err := e.runner.Counts(gctx, plan, pipeline.CountSpec{Name: "options", Column: "option_slugs", Array: true})
		if err != nil {
			return fmt.Errorf("options: %w", err)
		}
		fullOptions = counts
		return nil
	})
	for i, attr := range selected {
		g.Go(func() error {
			counts, err := e.runner.Counts(gctx, plan, pipeline.CountSpec{
				Name:   "options:" + attr,
				Column: "option_slugs",
				Array:  true,
				Except: attr,
				Prefix: attr + filters.Separator,
			})
			if err != nil {
				return fmt.Errorf("options %s: %w", attr, err)
			}
			perAttribute[i] = counts
			return nil
		})
	}
	g.Go(func() error {
		counts, err := e.runner.Counts(gctx, plan, pipeline.CountSpec{Name: "brands", Column: "brand_slug", Except: filters.AttrBrand})
		if err != nil {
			return fmt.Errorf("brands: %w", err)
		}
		result.BrandCounts = counts
		return nil
	})
	g.Go(func() error {
		counts, err := e.runner.Counts(gctx, plan, pipeline.CountSpec{Name: "categories", Column: "category_slugs", Array: true, Except: filters.AttrCategory})
		if err != nil {
			return fmt.Errorf("categories: %w", err)
		}
		result.CategoryCounts = counts
		return nil
	})
	if plan.Source.HasPrice() {
		g.Go(func() error {
			prices, err := e.prices(gctx, plan)
			if err != nil {
				return fmt.Errorf("prices: %w", err)
			}
			result.Prices = prices
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.WithError(err).WithField("stages", plan.StageNames()).Warn("Facet query failed")
		return nil, err
	}

	result.OptionCounts = mergeOptionCounts(fullOptions, selected, perAttribute)
	if result.BrandCounts == nil {
		result.BrandCounts = map[string]int64{}
	}
	if result.CategoryCounts == nil {
		result.CategoryCounts = map[string]int64{}
	}

	e.logger.WithFields(logrus.Fields{
		"mode":     plan.Input.Mode,
		"total":    result.Total,
		"selected": len(selected),
		"duration": time.Since(start).String(),
	}).Debug("Catalogue facets computed")
	return result, nil
}

// mergeOptionCounts replaces the full-scope counts of each selected attribute
// with the counts computed without that attribute's stage.
func mergeOptionCounts(full map[string]int64, selected []string, perAttribute []map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(full))
	for seg, n := range full {
		if attributeOf(seg, selected) == "" {
			out[seg] = n
		}
	}
	for _, counts := range perAttribute {
		for seg, n := range counts {
			out[seg] = n
		}
	}
	return out
}

func attributeOf(segment string, attrs []string) string {
	for _, attr := range attrs {
		if strings.HasPrefix(segment, attr+filters.Separator) {
			return attr
		}
	}
	return ""
}

func (e *Executor) prices(ctx context.Context, plan *pipeline.Plan) (*PriceStats, error) {
	min, max, ok, err := e.runner.PriceRange(ctx, plan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PriceStats{Buckets: []Bucket{}}, nil
	}
	low, width, n := HistogramLayout(min, max, e.cfg.PriceBuckets)
	counts, err := e.runner.PriceHistogram(ctx, plan, low, low+width*int64(n), n)
	if err != nil {
		return nil, err
	}
	buckets := make([]Bucket, n)
	for i := range buckets {
		from := low + int64(i)*width
		buckets[i] = Bucket{From: from, To: from + width, Count: counts[i+1]}
	}
	return &PriceStats{Min: min, Max: max, Buckets: buckets}, nil
}

// HistogramLayout splits [min, max] into at most buckets integer-width bins.
// The span covers max, so width_bucket never returns the overflow bucket.
func HistogramLayout(min, max int64, buckets int) (low, width int64, n int) {
	if max < min {
		min, max = max, min
	}
	span := max - min + 1
	n = buckets
	if int64(n) > span {
		n = int(span)
	}
	if n < 1 {
		n = 1
	}
	width = (span + int64(n) - 1) / int64(n)
	return min, width, n
}

// SortedKeys returns the keys of counts in ascending order
func SortedKeys(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
