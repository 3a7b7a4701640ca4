package pipeline

import (
	"catalogue-service/internal/filters"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CountSpec describes one grouped count over the match set
type CountSpec struct {
	Name   string
	Column string
	// Array columns are unnested and counted per element
	Array bool
	// Except names the attribute stage skipped for this count
	Except string
	// Prefix keeps only values starting with it
	Prefix string
}

// Doc is one row of the page query
type Doc struct {
	ProductID  uuid.UUID `gorm:"column:product_id"`
	MinPrice   *int64    `gorm:"column:min_price"`
	MaxPrice   *int64    `gorm:"column:max_price"`
	ShopsCount int       `gorm:"column:shops_count"`
}

// ValueCount is one row of a count query
type ValueCount struct {
	Value string `gorm:"column:value"`
	Count int64  `gorm:"column:count"`
}

// PriceRangeRow is the result of the price range query
type PriceRangeRow struct {
	MinPrice *int64 `gorm:"column:min_price"`
	MaxPrice *int64 `gorm:"column:max_price"`
}

// BucketCount is one row of the price histogram query
type BucketCount struct {
	Bucket int   `gorm:"column:bucket"`
	Count  int64 `gorm:"column:count"`
}

func (p *Plan) productColumn() string {
	return p.Source.Column(p.Source.ProductColumn)
}

// DocsQuery selects the requested page of product ids. Grouped sources also
// return min/max price and the number of shops per product.
func (p *Plan) DocsQuery(db *gorm.DB) *gorm.DB {
	sel := p.Input.Selection
	id := p.productColumn()
	q := db.Table(p.Source.Table).Scopes(p.Scope())
	if p.Source.Grouped {
		price := p.Source.Column(p.Source.PriceColumn)
		q = q.Select(id + " AS product_id, MIN(" + price + ") AS min_price, MAX(" + price + ") AS max_price, COUNT(DISTINCT " +
			p.Source.Column(p.Source.ShopColumn) + ") AS shops_count").
			Group(id)
	} else {
		q = q.Select(id + " AS product_id")
	}
	return q.Scopes(p.Order()).Limit(sel.Limit).Offset(sel.Offset())
}

// AllDocsQuery is DocsQuery without paging, capped at max rows
func (p *Plan) AllDocsQuery(db *gorm.DB, max int) *gorm.DB {
	return p.DocsQuery(db).Offset(-1).Limit(max)
}

// TotalQuery counts distinct products in the match set
func (p *Plan) TotalQuery(db *gorm.DB) *gorm.DB {
	return db.Table(p.Source.Table).
		Scopes(p.Scope()).
		Select("COUNT(DISTINCT " + p.productColumn() + ") AS total")
}

// CountQuery counts distinct products per value of spec.Column
func (p *Plan) CountQuery(db *gorm.DB, spec CountSpec) *gorm.DB {
	col := p.Source.Column(spec.Column)
	table := p.Source.Table
	value := col
	if spec.Array {
		table += ", unnest(" + col + ") AS facet_value"
		value = "facet_value"
	}
	q := db.Table(table).
		Scopes(p.ScopeExcept(spec.Except)).
		Select(value + " AS value, COUNT(DISTINCT " + p.productColumn() + ") AS count")
	if !spec.Array {
		q = q.Where(col + " IS NOT NULL")
	}
	if spec.Prefix != "" {
		q = q.Where("starts_with("+value+", ?)", spec.Prefix)
	}
	return q.Group(value)
}

// PriceRangeQuery returns min and max price ignoring the price stage
func (p *Plan) PriceRangeQuery(db *gorm.DB) *gorm.DB {
	price := p.Source.Column(p.Source.PriceColumn)
	return db.Table(p.Source.Table).
		Scopes(p.ScopeExcept(filters.AttrPrice)).
		Select("MIN(" + price + ") AS min_price, MAX(" + price + ") AS max_price")
}

// PriceHistogramQuery counts products per width_bucket(price, low, high, buckets).
// Each product is placed once, by its lowest price among the matching rows.
// Buckets are numbered from 1; prices equal to high land in buckets+1.
func (p *Plan) PriceHistogramQuery(db *gorm.DB, low, high int64, buckets int) *gorm.DB {
	price := p.Source.Column(p.Source.PriceColumn)
	id := p.productColumn()
	perProduct := db.Table(p.Source.Table).
		Scopes(p.ScopeExcept(filters.AttrPrice)).
		Select(id + " AS product_id, MIN(" + price + ") AS price").
		Group(id)
	return db.Table("(?) AS product_prices", perProduct).
		Select("width_bucket(product_prices.price, ?, ?, ?) AS bucket, COUNT(*) AS count", low, high, buckets).
		Group("bucket")
}
