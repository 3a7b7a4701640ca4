package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalogue-service/internal/catalogue"
	"catalogue-service/internal/facets"
	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/pipeline"
	"catalogue-service/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrRubricNotFound = errors.New("rubric not found")
	ErrRubricRequired = errors.New("rubric is required for the storefront catalogue")
)

// CatalogueStore is the storage the catalogue service reads from
type CatalogueStore interface {
	facets.Runner
	ExportDocs(ctx context.Context, plan *pipeline.Plan, max int) ([]pipeline.Doc, error)
	GetRubricBySlug(ctx context.Context, tenantID, slug string) (*models.Rubric, error)
	GetRubricAttributes(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.RubricAttribute, error)
	GetBrandsBySlugs(ctx context.Context, tenantID string, slugs []string) ([]models.Brand, error)
	ListCategoriesByRubric(ctx context.Context, tenantID string, rubricID uuid.UUID) ([]models.Category, error)
	GetProductsByIDs(ctx context.Context, tenantID string, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	CacheJSON(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (any, error)) error
}

// CatalogueConfig holds the catalogue settings of the service
type CatalogueConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultLocale   string
	// CacheTTL of assembled results; zero disables result caching
	CacheTTL    time.Duration
	ExportLimit int
	Facets      facets.Config
}

// CatalogueQuery is one catalogue request
type CatalogueQuery struct {
	Mode        models.CatalogueMode
	Rubric      string
	Segments    []string
	Search      string
	ShopID      *uuid.UUID
	ExcludedIDs []uuid.UUID
	Locale      string
	BasePath    string
}

// cacheParams is the canonical form of a query used for the result cache key
type cacheParams struct {
	Mode        models.CatalogueMode `json:"mode"`
	Segments    []string             `json:"segments"`
	Search      string               `json:"search"`
	ShopID      *uuid.UUID           `json:"shopId"`
	ExcludedIDs []uuid.UUID          `json:"excludedIds"`
	Locale      string               `json:"locale"`
	BasePath    string               `json:"basePath"`
}

// CatalogueService resolves catalogue queries into assembled results
type CatalogueService struct {
	store    CatalogueStore
	executor *facets.Executor
	cfg      CatalogueConfig
	logger   *logrus.Entry
}

// NewCatalogueService creates a new CatalogueService
func NewCatalogueService(store CatalogueStore, cfg CatalogueConfig, logger *logrus.Logger) *CatalogueService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = 10000
	}
	return &CatalogueService{
		store:    store,
		executor: facets.NewExecutor(store, cfg.Facets, logger),
		cfg:      cfg,
		logger:   logger.WithField("component", "catalogue"),
	}
}

// parseOptions returns the parse defaults of mode
func (s *CatalogueService) parseOptions(mode models.CatalogueMode) filters.ParseOptions {
	opts := filters.DefaultParseOptions()
	if s.cfg.DefaultPageSize > 0 {
		opts.DefaultLimit = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 {
		opts.MaxLimit = s.cfg.MaxPageSize
	}
	opts.DefaultSortBy = pipeline.DefaultSortBy(mode)
	return opts
}

func (s *CatalogueService) localizer(locale string) catalogue.Localizer {
	if locale == "" {
		locale = s.cfg.DefaultLocale
	}
	return catalogue.Localizer{Locale: locale, Fallback: s.cfg.DefaultLocale}
}

// prepared is a parsed query with its rubric resolved and plan built
type prepared struct {
	selection *filters.Selection
	rubric    *models.Rubric
	plan      *pipeline.Plan
}

func (s *CatalogueService) prepare(ctx context.Context, tenantID string, q CatalogueQuery) (*prepared, error) {
	if q.Mode == "" {
		q.Mode = models.CatalogueModeStorefront
	}
	if !q.Mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", pipeline.ErrInvalidMode, q.Mode)
	}

	sel, err := filters.Parse(q.Segments, s.parseOptions(q.Mode))
	if err != nil {
		return nil, err
	}
	if q.Rubric != "" {
		sel.Rubric = q.Rubric
	}

	var rubric *models.Rubric
	switch {
	case sel.Rubric != "":
		rubric, err = s.store.GetRubricBySlug(ctx, tenantID, sel.Rubric)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRubricNotFound, sel.Rubric)
		}
		if err != nil {
			return nil, fmt.Errorf("rubric: %w", err)
		}
	case q.Mode == models.CatalogueModeStorefront:
		return nil, ErrRubricRequired
	}

	in := pipeline.Input{
		TenantID:    tenantID,
		Mode:        q.Mode,
		ShopID:      q.ShopID,
		ExcludedIDs: q.ExcludedIDs,
		Search:      q.Search,
		Selection:   sel,
	}
	if rubric != nil {
		in.RubricID = &rubric.ID
	}
	plan, err := pipeline.Build(in)
	if err != nil {
		return nil, err
	}
	return &prepared{selection: sel, rubric: rubric, plan: plan}, nil
}

// GetCatalogue runs a catalogue query. Assembled results are cached per tenant
// and canonical segment list.
func (s *CatalogueService) GetCatalogue(ctx context.Context, tenantID string, q CatalogueQuery) (*models.CatalogueResult, error) {
	p, err := s.prepare(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}

	if s.cfg.CacheTTL <= 0 {
		return s.assemble(ctx, tenantID, q, p)
	}

	key := repository.CatalogueCacheKey(tenantID, cacheParams{
		Mode:        p.plan.Input.Mode,
		Segments:    p.selection.Segments(),
		Search:      q.Search,
		ShopID:      q.ShopID,
		ExcludedIDs: q.ExcludedIDs,
		Locale:      s.localizer(q.Locale).Locale,
		BasePath:    q.BasePath,
	})
	var result models.CatalogueResult
	err = s.store.CacheJSON(ctx, key, &result, s.cfg.CacheTTL, func() (any, error) {
		return s.assemble(ctx, tenantID, q, p)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *CatalogueService) assemble(ctx context.Context, tenantID string, q CatalogueQuery, p *prepared) (*models.CatalogueResult, error) {
	start := time.Now()
	result, err := s.executor.Run(ctx, p.plan)
	if err != nil {
		return nil, err
	}

	in := catalogue.AssembleInput{
		Mode:      p.plan.Input.Mode,
		Rubric:    p.rubric,
		Search:    q.Search,
		Selection: p.selection,
		Facets:    result,
		Localizer: s.localizer(q.Locale),
		BasePath:  q.BasePath,
	}

	if p.rubric != nil {
		if in.Attributes, err = s.store.GetRubricAttributes(ctx, tenantID, p.rubric.ID); err != nil {
			return nil, fmt.Errorf("rubric attributes: %w", err)
		}
		if in.Categories, err = s.store.ListCategoriesByRubric(ctx, tenantID, p.rubric.ID); err != nil {
			return nil, fmt.Errorf("categories: %w", err)
		}
	}
	if in.Brands, err = s.store.GetBrandsBySlugs(ctx, tenantID, brandSlugs(result, p.selection)); err != nil {
		return nil, fmt.Errorf("brands: %w", err)
	}
	if in.Products, err = s.store.GetProductsByIDs(ctx, tenantID, docIDs(result.Docs)); err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}

	res := catalogue.Assemble(in)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"mode":      in.Mode,
		"segments":  len(res.Segments),
		"total":     res.Pagination.Total,
		"duration":  time.Since(start).String(),
	}).Debug("catalogue assembled")
	return res, nil
}

// Export returns the cards of the whole match set up to the export limit
func (s *CatalogueService) Export(ctx context.Context, tenantID string, q CatalogueQuery) ([]models.CatalogueCard, error) {
	p, err := s.prepare(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ExportDocs(ctx, p.plan, s.cfg.ExportLimit)
	if err != nil {
		return nil, fmt.Errorf("export docs: %w", err)
	}
	products, err := s.store.GetProductsByIDs(ctx, tenantID, docIDs(docs))
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	return catalogue.Cards(docs, products, s.localizer(q.Locale)), nil
}

// DecodeSegments parses segments with the defaults of mode
func (s *CatalogueService) DecodeSegments(mode models.CatalogueMode, segments []string) (*filters.Selection, error) {
	return filters.Parse(segments, s.parseOptions(mode))
}

// brandSlugs returns the counted and selected brand slugs in sorted order
func brandSlugs(result *facets.Result, sel *filters.Selection) []string {
	slugs := facets.SortedKeys(result.BrandCounts)
	seen := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		seen[slug] = true
	}
	for _, slug := range sel.Brands {
		if !seen[slug] {
			slugs = append(slugs, slug)
		}
	}
	return slugs
}

func docIDs(docs []pipeline.Doc) []uuid.UUID {
	ids := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		ids[i] = d.ProductID
	}
	return ids
}
