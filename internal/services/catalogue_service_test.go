package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalogue-service/internal/facets"
	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/pipeline"
	"catalogue-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const tenantID = "tenant-1"

// MockCatalogueStore is a mock implementation of CatalogueStore
type MockCatalogueStore struct {
	mock.Mock
}

var _ CatalogueStore = (*MockCatalogueStore)(nil)

func (m *MockCatalogueStore) Docs(ctx context.Context, plan *pipeline.Plan) ([]pipeline.Doc, error) {
	args := m.Called(ctx, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pipeline.Doc), args.Error(1)
}

func (m *MockCatalogueStore) Total(ctx context.Context, plan *pipeline.Plan) (int64, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogueStore) Counts(ctx context.Context, plan *pipeline.Plan, spec pipeline.CountSpec) (map[string]int64, error) {
	args := m.Called(ctx, plan, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockCatalogueStore) PriceRange(ctx context.Context, plan *pipeline.Plan) (int64, int64, bool, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(int64), args.Get(1).(int64), args.Bool(2), args.Error(3)
}

func (m *MockCatalogueStore) PriceHistogram(ctx context.Context, plan *pipeline.Plan, low, high int64, buckets int) (map[int]int64, error) {
	args := m.Called(ctx, plan, low, high, buckets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int]int64), args.Error(1)
}

func (m *MockCatalogueStore) ExportDocs(ctx context.Context, plan *pipeline.Plan, max int) ([]pipeline.Doc, error) {
	args := m.Called(ctx, plan, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pipeline.Doc), args.Error(1)
}

func (m *MockCatalogueStore) GetRubricBySlug(ctx context.Context, tenantID, slug string) (*models.Rubric, error) {
	args := m.Called(ctx, tenantID, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rubric), args.Error(1)
}

func (m *MockCatalogueStore) GetRubricAttributes(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.RubricAttribute, error) {
	args := m.Called(ctx, tenantID, rubricID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RubricAttribute), args.Error(1)
}

func (m *MockCatalogueStore) GetBrandsBySlugs(ctx context.Context, tenantID string, slugs []string) ([]models.Brand, error) {
	args := m.Called(ctx, tenantID, slugs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Brand), args.Error(1)
}

func (m *MockCatalogueStore) ListCategoriesByRubric(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.Category, error) {
	args := m.Called(ctx, tenantID, rubricID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockCatalogueStore) GetProductsByIDs(ctx context.Context, tenantID string, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	args := m.Called(ctx, tenantID, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.Product), args.Error(1)
}

func (m *MockCatalogueStore) CacheJSON(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (any, error)) error {
	args := m.Called(ctx, key, dest, ttl, fn)
	return args.Error(0)
}

func countSpec(name string) interface{} {
	return mock.MatchedBy(func(spec pipeline.CountSpec) bool { return spec.Name == name })
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestService(store *MockCatalogueStore, ttl time.Duration) *CatalogueService {
	return NewCatalogueService(store, CatalogueConfig{
		DefaultPageSize: 2,
		MaxPageSize:     50,
		DefaultLocale:   "en",
		CacheTTL:        ttl,
		ExportLimit:     500,
		Facets:          facets.Config{PriceBuckets: 4},
	}, quietLogger())
}

type wineFixture struct {
	rubric   *models.Rubric
	color    models.Attribute
	products map[uuid.UUID]*models.Product
	docs     []pipeline.Doc
}

func newWineFixture() wineFixture {
	rubric := &models.Rubric{
		ID:   uuid.New(),
		Slug: "wine",
		Name: models.NewTranslations(map[string]string{"en": "Wine", "de": "Wein"}),
	}
	color := models.Attribute{
		ID:   uuid.New(),
		Slug: "color",
		Name: models.NewTranslations(map[string]string{"en": "Color", "de": "Farbe"}),
		Options: []models.Option{
			{ID: uuid.New(), Slug: "red", Name: models.NewTranslations(map[string]string{"en": "Red", "de": "Rot"})},
			{ID: uuid.New(), Slug: "white", Name: models.NewTranslations(map[string]string{"en": "White", "de": "Weiß"})},
		},
	}
	p1 := &models.Product{ID: uuid.New(), Slug: "grange", Name: models.NewTranslations(map[string]string{"en": "Grange"}), Status: models.ProductStatusActive}
	p2 := &models.Product{ID: uuid.New(), Slug: "barolo", Name: models.NewTranslations(map[string]string{"en": "Barolo", "de": "Barolo DOCG"}), Status: models.ProductStatusActive}
	min1, max1 := int64(1500), int64(2000)
	return wineFixture{
		rubric: rubric,
		color:  color,
		products: map[uuid.UUID]*models.Product{
			p1.ID: p1,
			p2.ID: p2,
		},
		docs: []pipeline.Doc{
			{ProductID: p1.ID, MinPrice: &min1, MaxPrice: &max1, ShopsCount: 2},
			{ProductID: p2.ID, MinPrice: &max1, MaxPrice: &max1, ShopsCount: 1},
		},
	}
}

func (f wineFixture) expectStorefront(store *MockCatalogueStore) {
	store.On("GetRubricBySlug", mock.Anything, tenantID, "wine").Return(f.rubric, nil)
	store.On("Docs", mock.Anything, mock.Anything).Return(f.docs, nil)
	store.On("Total", mock.Anything, mock.Anything).Return(int64(5), nil)
	store.On("Counts", mock.Anything, mock.Anything, countSpec("options")).
		Return(map[string]int64{"color-red": 2, "country-italy": 1}, nil)
	store.On("Counts", mock.Anything, mock.Anything, countSpec("options:color")).
		Return(map[string]int64{"color-red": 2, "color-white": 3}, nil)
	store.On("Counts", mock.Anything, mock.Anything, countSpec("brands")).
		Return(map[string]int64{"penfolds": 1}, nil)
	store.On("Counts", mock.Anything, mock.Anything, countSpec("categories")).
		Return(map[string]int64{}, nil)
	store.On("PriceRange", mock.Anything, mock.Anything).Return(int64(1500), int64(2000), true, nil)
	store.On("PriceHistogram", mock.Anything, mock.Anything, int64(1500), int64(2004), 4).
		Return(map[int]int64{1: 1, 4: 1}, nil)
	store.On("GetRubricAttributes", mock.Anything, tenantID, f.rubric.ID).Return([]models.RubricAttribute{
		{RubricID: f.rubric.ID, AttributeID: f.color.ID, ShowInCatalogueFilter: true, Attribute: &f.color},
	}, nil)
	store.On("ListCategoriesByRubric", mock.Anything, tenantID, f.rubric.ID).Return([]models.Category{}, nil)
	store.On("GetBrandsBySlugs", mock.Anything, tenantID, []string{"penfolds"}).Return([]models.Brand{
		{Slug: "penfolds", Name: models.NewTranslations(map[string]string{"en": "Penfolds"})},
	}, nil)
	store.On("GetProductsByIDs", mock.Anything, tenantID, []uuid.UUID{f.docs[0].ProductID, f.docs[1].ProductID}).
		Return(f.products, nil)
}

func TestGetCatalogue_Storefront(t *testing.T) {
	store := new(MockCatalogueStore)
	f := newWineFixture()
	f.expectStorefront(store)
	svc := newTestService(store, 0)

	res, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{
		Segments: []string{"color-red", "rubric-wine"},
		Locale:   "de-AT",
		BasePath: "/catalogue",
	})
	require.NoError(t, err)

	assert.Equal(t, models.CatalogueModeStorefront, res.Mode)
	assert.Equal(t, []string{"rubric-wine", "color-red"}, res.Segments)
	require.NotNil(t, res.Rubric)
	assert.Equal(t, "Wein", res.Rubric.Name)

	require.Len(t, res.Cards, 2)
	assert.Equal(t, "Grange", res.Cards[0].Name)
	assert.Equal(t, "Barolo DOCG", res.Cards[1].Name)
	assert.Equal(t, 2, res.Cards[0].ShopsCount)

	assert.Equal(t, int64(5), res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	require.NotNil(t, res.NextPath)
	assert.Equal(t, "/catalogue/rubric-wine/color-red/page-2", *res.NextPath)

	require.Len(t, res.Attributes, 1)
	color := res.Attributes[0]
	assert.Equal(t, "Farbe", color.Name)
	assert.True(t, color.Selected)
	require.Len(t, color.Options, 2)
	counters := map[string]int64{}
	for _, o := range color.Options {
		counters[o.Slug] = o.Counter
	}
	assert.Equal(t, map[string]int64{"red": 2, "white": 3}, counters)

	require.Len(t, res.Brands, 1)
	assert.Equal(t, "Penfolds", res.Brands[0].Name)

	require.NotNil(t, res.Prices)
	assert.Equal(t, int64(1500), res.Prices.Min)
	assert.Len(t, res.Prices.Histogram, 4)

	require.Len(t, res.SelectedFilters, 1)
	assert.Equal(t, "Rot", res.SelectedFilters[0].Name)
	assert.Equal(t, []string{"rubric-wine"}, res.SelectedFilters[0].ClearSegments)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CacheJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCatalogue_RubricFromQuery(t *testing.T) {
	store := new(MockCatalogueStore)
	f := newWineFixture()
	f.expectStorefront(store)
	svc := newTestService(store, 0)

	res, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{
		Rubric:   "wine",
		Segments: []string{"color-red"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rubric-wine", "color-red"}, res.Segments)
	// fallback locale
	assert.Equal(t, "Wine", res.Rubric.Name)
}

func TestGetCatalogue_RubricNotFound(t *testing.T) {
	store := new(MockCatalogueStore)
	store.On("GetRubricBySlug", mock.Anything, tenantID, "beer").Return(nil, repository.ErrNotFound)
	svc := newTestService(store, 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Segments: []string{"rubric-beer"}})
	assert.ErrorIs(t, err, ErrRubricNotFound)
	store.AssertExpectations(t)
}

func TestGetCatalogue_RubricLookupError(t *testing.T) {
	store := new(MockCatalogueStore)
	store.On("GetRubricBySlug", mock.Anything, tenantID, "wine").Return(nil, errors.New("connection refused"))
	svc := newTestService(store, 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Rubric: "wine"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRubricNotFound)
}

func TestGetCatalogue_StorefrontRequiresRubric(t *testing.T) {
	svc := newTestService(new(MockCatalogueStore), 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Segments: []string{"color-red"}})
	assert.ErrorIs(t, err, ErrRubricRequired)
}

func TestGetCatalogue_InvalidSegment(t *testing.T) {
	svc := newTestService(new(MockCatalogueStore), 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Segments: []string{"rubric-wine", "nodash"}})
	assert.ErrorIs(t, err, filters.ErrInvalidSegment)
}

func TestGetCatalogue_InvalidMode(t *testing.T) {
	svc := newTestService(new(MockCatalogueStore), 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Mode: "everything"})
	assert.ErrorIs(t, err, pipeline.ErrInvalidMode)
}

func TestGetCatalogue_ShopRequired(t *testing.T) {
	svc := newTestService(new(MockCatalogueStore), 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Mode: models.CatalogueModePromoProducts})
	assert.ErrorIs(t, err, pipeline.ErrShopRequired)
}

func TestGetCatalogue_ConsoleWithoutRubric(t *testing.T) {
	store := new(MockCatalogueStore)
	id := uuid.New()
	product := &models.Product{ID: id, Slug: "draft-wine", Status: models.ProductStatusDraft}
	store.On("Docs", mock.Anything, mock.Anything).Return([]pipeline.Doc{{ProductID: id}}, nil)
	store.On("Total", mock.Anything, mock.Anything).Return(int64(1), nil)
	store.On("Counts", mock.Anything, mock.Anything, mock.Anything).Return(map[string]int64{}, nil)
	store.On("GetBrandsBySlugs", mock.Anything, tenantID, []string{"acme"}).Return([]models.Brand{}, nil)
	store.On("GetProductsByIDs", mock.Anything, tenantID, []uuid.UUID{id}).
		Return(map[uuid.UUID]*models.Product{id: product}, nil)
	svc := newTestService(store, 0)

	res, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{
		Mode:     models.CatalogueModeConsoleProducts,
		Segments: []string{"brand-acme"},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Rubric)
	assert.Nil(t, res.Prices)
	assert.Equal(t, filters.SortCreatedAt, res.Sort.By)
	require.Len(t, res.Cards, 1)
	// no translations, slug is the name
	assert.Equal(t, "draft-wine", res.Cards[0].Name)
	// selected brand without a record or count stays visible in the console
	require.Len(t, res.Brands, 1)
	assert.True(t, res.Brands[0].Selected)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "GetRubricAttributes", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "PriceRange", mock.Anything, mock.Anything)
}

func TestGetCatalogue_FacetError(t *testing.T) {
	store := new(MockCatalogueStore)
	f := newWineFixture()
	store.On("GetRubricBySlug", mock.Anything, tenantID, "wine").Return(f.rubric, nil)
	store.On("Docs", mock.Anything, mock.Anything).Return(nil, errors.New("statement timeout"))
	store.On("Total", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	store.On("Counts", mock.Anything, mock.Anything, mock.Anything).Return(map[string]int64{}, nil).Maybe()
	store.On("PriceRange", mock.Anything, mock.Anything).Return(int64(0), int64(0), false, nil).Maybe()
	svc := newTestService(store, 0)

	_, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Rubric: "wine"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement timeout")
	store.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCatalogue_Cached(t *testing.T) {
	store := new(MockCatalogueStore)
	f := newWineFixture()
	store.On("GetRubricBySlug", mock.Anything, tenantID, "wine").Return(f.rubric, nil)

	var keys []string
	store.On("CacheJSON", mock.Anything, mock.AnythingOfType("string"), mock.Anything, 2*time.Minute, mock.Anything).
		Run(func(args mock.Arguments) {
			keys = append(keys, args.String(1))
			dest := args.Get(2).(*models.CatalogueResult)
			*dest = models.CatalogueResult{Mode: models.CatalogueModeStorefront, Segments: []string{"rubric-wine"}}
		}).
		Return(nil)
	svc := newTestService(store, 2*time.Minute)

	res, err := svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Segments: []string{"rubric-wine"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rubric-wine"}, res.Segments)

	// equal selections share a key
	_, err = svc.GetCatalogue(context.Background(), tenantID, CatalogueQuery{Segments: []string{"page-1", "rubric-wine"}})
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.Contains(t, keys[0], "catalogue:result:"+tenantID+":")
	assert.Equal(t, keys[0], keys[1])

	store.AssertNotCalled(t, "Docs", mock.Anything, mock.Anything)
}

func TestExport(t *testing.T) {
	store := new(MockCatalogueStore)
	f := newWineFixture()
	store.On("GetRubricBySlug", mock.Anything, tenantID, "wine").Return(f.rubric, nil)
	store.On("ExportDocs", mock.Anything, mock.Anything, 500).Return(f.docs, nil)
	store.On("GetProductsByIDs", mock.Anything, tenantID, mock.Anything).Return(f.products, nil)
	svc := newTestService(store, time.Minute)

	cards, err := svc.Export(context.Background(), tenantID, CatalogueQuery{Rubric: "wine", Segments: []string{"page-3"}})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "grange", cards[0].Slug)
	assert.Equal(t, int64(1500), *cards[0].MinPrice)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "CacheJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBrandSlugs(t *testing.T) {
	sel, err := filters.Parse([]string{"brand-zeta", "brand-acme"}, filters.DefaultParseOptions())
	require.NoError(t, err)
	result := &facets.Result{BrandCounts: map[string]int64{"penfolds": 3, "acme": 1}}

	assert.Equal(t, []string{"acme", "penfolds", "zeta"}, brandSlugs(result, sel))
}
