// Package pipeline turns a catalogue request into an ordered list of query
// stages. Every facet query and the page query apply the same stages, so a
// count can drop exactly one stage and stay consistent with the rest.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrShopRequired   = errors.New("shop id is required for this mode")
	ErrInvalidMode    = errors.New("unknown catalogue mode")
	ErrTenantRequired = errors.New("tenant id is required")
)

const maxSearchTokens = 8

// Source describes the table a plan queries
type Source struct {
	Table         string
	ProductColumn string
	PriceColumn   string
	ShopColumn    string
	// Grouped sources hold several rows per product and are grouped by ProductColumn
	Grouped bool
}

var (
	ShopProductsSource = Source{
		Table:         "shop_products",
		ProductColumn: "product_id",
		PriceColumn:   "price",
		ShopColumn:    "shop_id",
		Grouped:       true,
	}
	ProductsSource = Source{
		Table:         "products",
		ProductColumn: "id",
	}
)

// HasPrice reports whether price stages and the price facet apply
func (s Source) HasPrice() bool {
	return s.PriceColumn != ""
}

// Column qualifies name with the source table
func (s Source) Column(name string) string {
	return s.Table + "." + name
}

// SourceFor returns the table queried by mode
func SourceFor(mode models.CatalogueMode) Source {
	switch mode {
	case models.CatalogueModeConsoleProducts, models.CatalogueModeShopProducts:
		return ProductsSource
	}
	return ShopProductsSource
}

// DefaultSortBy is priority for the storefront and creation date for console pickers
func DefaultSortBy(mode models.CatalogueMode) string {
	if mode == models.CatalogueModeStorefront {
		return filters.SortPriority
	}
	return filters.SortCreatedAt
}

// Input is everything a plan depends on
type Input struct {
	TenantID    string
	Mode        models.CatalogueMode
	RubricID    *uuid.UUID
	ShopID      *uuid.UUID
	ExcludedIDs []uuid.UUID
	Search      string
	Selection   *filters.Selection
}

// Stage is one filter step. Attribute is set for stages that a facet of the
// same attribute must ignore (attribute slug, "brand", "category" or "price").
type Stage struct {
	Name      string
	Attribute string
	Apply     func(*gorm.DB) *gorm.DB
}

// Plan is the ordered stage list of one request
type Plan struct {
	Source Source
	Input  Input
	Stages []Stage

	tsQuery string
}

// Build validates in and assembles the stages in order: tenant, mode, excluded
// ids, rubric, brand, category, price, one stage per selected attribute, search.
func Build(in Input) (*Plan, error) {
	if in.TenantID == "" {
		return nil, ErrTenantRequired
	}
	if !in.Mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}
	if (in.Mode == models.CatalogueModePromoProducts || in.Mode == models.CatalogueModeShopProducts) && in.ShopID == nil {
		return nil, ErrShopRequired
	}
	if in.Selection == nil {
		opts := filters.DefaultParseOptions()
		opts.DefaultSortBy = DefaultSortBy(in.Mode)
		in.Selection = filters.New(opts)
	}

	p := &Plan{Source: SourceFor(in.Mode), Input: in}
	src := p.Source
	sel := in.Selection

	p.add("tenant", "", func(db *gorm.DB) *gorm.DB {
		return db.Where(src.Column("tenant_id")+" = ?", in.TenantID).
			Where(src.Column("deleted_at") + " IS NULL")
	})
	if stage := p.modeStage(); stage != nil {
		p.add("mode", "", stage)
	}
	if len(in.ExcludedIDs) > 0 {
		ids := in.ExcludedIDs
		p.add("excluded", "", func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column(src.ProductColumn)+" NOT IN ?", ids)
		})
	}
	if in.RubricID != nil {
		rubricID := *in.RubricID
		p.add("rubric", "", func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("rubric_id")+" = ?", rubricID)
		})
	}
	if len(sel.Brands) > 0 {
		brands := append([]string(nil), sel.Brands...)
		p.add("brand", filters.AttrBrand, func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("brand_slug")+" IN ?", brands)
		})
	}
	if len(sel.Categories) > 0 {
		categories := pq.StringArray(append([]string(nil), sel.Categories...))
		p.add("category", filters.AttrCategory, func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("category_slugs")+" && ?", categories)
		})
	}
	if sel.HasPrice() && src.HasPrice() {
		from, to := sel.PriceFrom, sel.PriceTo
		p.add("price", filters.AttrPrice, func(db *gorm.DB) *gorm.DB {
			if from != nil {
				db = db.Where(src.Column(src.PriceColumn)+" >= ?", *from)
			}
			if to != nil {
				db = db.Where(src.Column(src.PriceColumn)+" <= ?", *to)
			}
			return db
		})
	}
	for _, attr := range sel.Options {
		segments := make(pq.StringArray, len(attr.Options))
		for i, opt := range attr.Options {
			segments[i] = filters.OptionSegment(attr.Attribute, opt)
		}
		// OR within one attribute, AND across attributes
		p.add("option:"+attr.Attribute, attr.Attribute, func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("option_slugs")+" && ?", segments)
		})
	}
	if search := strings.TrimSpace(in.Search); search != "" {
		p.add("search", "", p.searchStage(search))
	}
	return p, nil
}

func (p *Plan) add(name, attribute string, apply func(*gorm.DB) *gorm.DB) {
	p.Stages = append(p.Stages, Stage{Name: name, Attribute: attribute, Apply: apply})
}

func (p *Plan) modeStage() func(*gorm.DB) *gorm.DB {
	src := p.Source
	in := p.Input
	switch in.Mode {
	case models.CatalogueModeStorefront:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("status")+" = ?", models.ProductStatusActive).
				Where(src.Column("available")+" > 0").
				Where("EXISTS (SELECT 1 FROM products p WHERE p.id = "+src.Column(src.ProductColumn)+
					" AND p.status = ? AND p.deleted_at IS NULL)", models.ProductStatusActive)
		}
	case models.CatalogueModePromoProducts:
		shopID := *in.ShopID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column(src.ShopColumn)+" = ?", shopID).
				Where(src.Column("status")+" = ?", models.ProductStatusActive)
		}
	case models.CatalogueModeShopProducts:
		shopID := *in.ShopID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(src.Column("status")+" <> ?", models.ProductStatusArchived).
				Where("NOT EXISTS (SELECT 1 FROM shop_products sp WHERE sp.product_id = "+src.Column("id")+
					" AND sp.shop_id = ? AND sp.deleted_at IS NULL)", shopID)
		}
	}
	return nil
}

func (p *Plan) searchStage(search string) func(*gorm.DB) *gorm.DB {
	col := p.Source.Column("search_text")
	tokens := SearchTokens(search)
	if len(tokens) == 0 {
		pattern := "%" + escapeLike(search) + "%"
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(col+" ILIKE ?", pattern)
		}
	}
	p.tsQuery = TSQuery(tokens)
	tsq := p.tsQuery
	match := "to_tsvector('simple', " + col + ") @@ to_tsquery('simple', ?)"
	if len(tokens) == 1 {
		pattern := "%" + escapeLike(tokens[0]) + "%"
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("("+match+" OR "+col+" ILIKE ?)", tsq, pattern)
		}
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(match, tsq)
	}
}

// SearchTokens lowercases search and splits it into letter/digit words
func SearchTokens(search string) []string {
	fields := strings.FieldsFunc(strings.ToLower(search), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
		if len(tokens) == maxSearchTokens {
			break
		}
	}
	return tokens
}

// TSQuery builds a prefix-matching tsquery where every token must match
func TSQuery(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t + ":*"
	}
	return strings.Join(parts, " & ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Scope applies every stage
func (p *Plan) Scope() func(*gorm.DB) *gorm.DB {
	return p.ScopeExcept("")
}

// ScopeExcept applies every stage but those bound to attribute
func (p *Plan) ScopeExcept(attribute string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, stage := range p.Stages {
			if attribute != "" && stage.Attribute == attribute {
				continue
			}
			db = stage.Apply(db)
		}
		return db
	}
}

// StageNames lists stage names in application order
func (p *Plan) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// SelectedAttributes returns the attribute slugs that have an option stage
func (p *Plan) SelectedAttributes() []string {
	var attrs []string
	for _, s := range p.Stages {
		if strings.HasPrefix(s.Name, "option:") {
			attrs = append(attrs, s.Attribute)
		}
	}
	return attrs
}

// Order sorts by the selection's sort field. A search without an explicit
// sort ranks by text relevance instead. Product id breaks ties.
func (p *Plan) Order() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		sel := p.Input.Selection
		tieBreak := p.Source.Column(p.Source.ProductColumn) + " ASC"
		if p.tsQuery != "" && !sel.HasExplicitSort() {
			rank := "ts_rank(to_tsvector('simple', " + p.Source.Column("search_text") + "), to_tsquery('simple', ?))"
			if p.Source.Grouped {
				rank = "MAX(" + rank + ")"
			}
			return db.Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                rank + " DESC, " + tieBreak,
				Vars:               []interface{}{p.tsQuery},
				WithoutParentheses: true,
			}})
		}
		dir := "DESC"
		if sel.SortDir == filters.SortAsc {
			dir = "ASC"
		}
		return db.Order(p.sortExpression(sel.SortBy) + " " + dir + ", " + tieBreak)
	}
}

func (p *Plan) sortExpression(field string) string {
	src := p.Source
	var column, aggregate string
	switch field {
	case filters.SortPrice:
		if !src.HasPrice() {
			return p.sortExpression(filters.SortCreatedAt)
		}
		column, aggregate = src.PriceColumn, "MIN"
	case filters.SortName:
		column, aggregate = "slug", "MIN"
		if src.Grouped {
			column = "product_slug"
		}
	case filters.SortCreatedAt:
		column, aggregate = "created_at", "MAX"
	default:
		column, aggregate = "priority", "MAX"
	}
	if src.Grouped {
		return aggregate + "(" + src.Column(column) + ")"
	}
	return src.Column(column)
}
