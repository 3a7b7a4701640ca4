package pipeline

import (
	"errors"
	"testing"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const tenantID = "tenant-1"

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=catalogue dbname=catalogue sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func mustParse(t *testing.T, segments ...string) *filters.Selection {
	t.Helper()
	sel, err := filters.Parse(segments, filters.DefaultParseOptions())
	require.NoError(t, err)
	return sel
}

func scanSQL(db *gorm.DB, query func(tx *gorm.DB) *gorm.DB) string {
	return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []map[string]interface{}
		return query(tx).Scan(&rows)
	})
}

func TestBuild_Validation(t *testing.T) {
	_, err := Build(Input{Mode: models.CatalogueModeStorefront})
	assert.True(t, errors.Is(err, ErrTenantRequired))

	_, err = Build(Input{TenantID: tenantID, Mode: "everything"})
	assert.True(t, errors.Is(err, ErrInvalidMode))

	_, err = Build(Input{TenantID: tenantID, Mode: models.CatalogueModePromoProducts})
	assert.True(t, errors.Is(err, ErrShopRequired))

	_, err = Build(Input{TenantID: tenantID, Mode: models.CatalogueModeShopProducts})
	assert.True(t, errors.Is(err, ErrShopRequired))

	plan, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModeConsoleProducts})
	require.NoError(t, err)
	assert.Equal(t, filters.SortCreatedAt, plan.Input.Selection.SortBy)
}

func TestBuild_StageOrder(t *testing.T) {
	rubricID := uuid.New()
	plan, err := Build(Input{
		TenantID:    tenantID,
		Mode:        models.CatalogueModeStorefront,
		RubricID:    &rubricID,
		ExcludedIDs: []uuid.UUID{uuid.New()},
		Search:      "merlot",
		Selection:   mustParse(t, "rubric-wine", "country-france", "color-red", "brand-acme", "category-dry", "price-100_500"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"tenant", "mode", "excluded", "rubric", "brand", "category", "price",
		"option:color", "option:country", "search",
	}, plan.StageNames())
	assert.Equal(t, []string{"color", "country"}, plan.SelectedAttributes())
	assert.Equal(t, ShopProductsSource, plan.Source)
}

func TestDocsQuery_Storefront(t *testing.T) {
	db := dryRunDB(t)
	rubricID := uuid.MustParse("7d7f8a4e-1111-4a3b-9c55-6a6c1f2d0b01")
	plan, err := Build(Input{
		TenantID:  tenantID,
		Mode:      models.CatalogueModeStorefront,
		RubricID:  &rubricID,
		Selection: mustParse(t, "rubric-wine", "color-red", "color-white", "brand-acme", "page-3"),
	})
	require.NoError(t, err)

	sql := scanSQL(db, plan.DocsQuery)

	assert.Contains(t, sql, "FROM shop_products")
	assert.Contains(t, sql, "shop_products.tenant_id = 'tenant-1'")
	assert.Contains(t, sql, "shop_products.deleted_at IS NULL")
	assert.Contains(t, sql, "shop_products.status = 'ACTIVE'")
	assert.Contains(t, sql, "shop_products.available > 0")
	assert.Contains(t, sql, "p.id = shop_products.product_id")
	assert.Contains(t, sql, "shop_products.rubric_id = '7d7f8a4e-1111-4a3b-9c55-6a6c1f2d0b01'")
	assert.Contains(t, sql, "shop_products.brand_slug IN ('acme')")
	assert.Contains(t, sql, `shop_products.option_slugs && '{"color-red","color-white"}'`)
	assert.Contains(t, sql, "MIN(shop_products.price) AS min_price")
	assert.Contains(t, sql, "COUNT(DISTINCT shop_products.shop_id) AS shops_count")
	assert.Contains(t, sql, "GROUP BY shop_products.product_id")
	assert.Contains(t, sql, "ORDER BY MAX(shop_products.priority) DESC, shop_products.product_id ASC")
	assert.Contains(t, sql, "LIMIT 20 OFFSET 40")
}

func TestDocsQuery_ConsoleProducts(t *testing.T) {
	db := dryRunDB(t)
	excluded := uuid.MustParse("0b6c2b1e-2222-4f5e-8a9b-3c4d5e6f7a8b")
	opts := filters.DefaultParseOptions()
	opts.DefaultSortBy = DefaultSortBy(models.CatalogueModeConsoleProducts)
	sel, err := filters.Parse([]string{"price-100_200", "sortBy-price", "sortDir-asc"}, opts)
	require.NoError(t, err)

	plan, err := Build(Input{
		TenantID:    tenantID,
		Mode:        models.CatalogueModeConsoleProducts,
		ExcludedIDs: []uuid.UUID{excluded},
		Selection:   sel,
	})
	require.NoError(t, err)

	sql := scanSQL(db, plan.DocsQuery)

	assert.Contains(t, sql, "FROM products")
	assert.Contains(t, sql, "products.id AS product_id")
	assert.Contains(t, sql, "products.id NOT IN ('0b6c2b1e-2222-4f5e-8a9b-3c4d5e6f7a8b')")
	assert.NotContains(t, sql, "GROUP BY")
	assert.NotContains(t, sql, "price")
	assert.NotContains(t, sql, "status")
	// products have no price column; price sort falls back to creation date
	assert.Contains(t, sql, "ORDER BY products.created_at ASC, products.id ASC")
	assert.NotContains(t, plan.StageNames(), "price")
}

func TestDocsQuery_ShopProductsMode(t *testing.T) {
	db := dryRunDB(t)
	shopID := uuid.MustParse("c0ffee00-3333-4a4a-9b9b-000000000001")
	plan, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModeShopProducts, ShopID: &shopID})
	require.NoError(t, err)

	sql := scanSQL(db, plan.DocsQuery)

	assert.Contains(t, sql, "FROM products")
	assert.Contains(t, sql, "NOT EXISTS (SELECT 1 FROM shop_products sp WHERE sp.product_id = products.id AND sp.shop_id = 'c0ffee00-3333-4a4a-9b9b-000000000001'")
	assert.Contains(t, sql, "products.status <> 'ARCHIVED'")
}

func TestDocsQuery_PromoProducts(t *testing.T) {
	db := dryRunDB(t)
	shopID := uuid.MustParse("c0ffee00-3333-4a4a-9b9b-000000000002")
	plan, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModePromoProducts, ShopID: &shopID})
	require.NoError(t, err)

	sql := scanSQL(db, plan.DocsQuery)

	assert.Contains(t, sql, "FROM shop_products")
	assert.Contains(t, sql, "shop_products.shop_id = 'c0ffee00-3333-4a4a-9b9b-000000000002'")
	assert.NotContains(t, sql, "available")
}

func TestCountQuery_ExceptAttribute(t *testing.T) {
	db := dryRunDB(t)
	plan, err := Build(Input{
		TenantID:  tenantID,
		Mode:      models.CatalogueModeStorefront,
		Selection: mustParse(t, "color-red", "country-france", "brand-acme"),
	})
	require.NoError(t, err)

	sql := scanSQL(db, func(tx *gorm.DB) *gorm.DB {
		return plan.CountQuery(tx, CountSpec{Name: "options:color", Column: "option_slugs", Array: true, Except: "color", Prefix: "color-"})
	})

	assert.Contains(t, sql, "FROM shop_products, unnest(shop_products.option_slugs) AS facet_value")
	assert.Contains(t, sql, "facet_value AS value, COUNT(DISTINCT shop_products.product_id) AS count")
	assert.Contains(t, sql, "starts_with(facet_value, 'color-')")
	assert.Contains(t, sql, `'{"country-france"}'`)
	assert.NotContains(t, sql, `'{"color-red"}'`)
	assert.Contains(t, sql, "brand_slug IN ('acme')")
	assert.Contains(t, sql, "GROUP BY facet_value")
}

func TestCountQuery_Brands(t *testing.T) {
	db := dryRunDB(t)
	plan, err := Build(Input{
		TenantID:  tenantID,
		Mode:      models.CatalogueModeStorefront,
		Selection: mustParse(t, "color-red", "brand-acme"),
	})
	require.NoError(t, err)

	sql := scanSQL(db, func(tx *gorm.DB) *gorm.DB {
		return plan.CountQuery(tx, CountSpec{Name: "brands", Column: "brand_slug", Except: filters.AttrBrand})
	})

	assert.Contains(t, sql, "shop_products.brand_slug AS value")
	assert.Contains(t, sql, "shop_products.brand_slug IS NOT NULL")
	assert.NotContains(t, sql, "IN ('acme')")
	assert.Contains(t, sql, `'{"color-red"}'`)
	assert.Contains(t, sql, "GROUP BY shop_products.brand_slug")
}

func TestPriceQueries_IgnorePriceStage(t *testing.T) {
	db := dryRunDB(t)
	plan, err := Build(Input{
		TenantID:  tenantID,
		Mode:      models.CatalogueModeStorefront,
		Selection: mustParse(t, "price-100_500"),
	})
	require.NoError(t, err)

	docs := scanSQL(db, plan.DocsQuery)
	assert.Contains(t, docs, "shop_products.price >= 100")
	assert.Contains(t, docs, "shop_products.price <= 500")

	rangeSQL := scanSQL(db, plan.PriceRangeQuery)
	assert.Contains(t, rangeSQL, "MIN(shop_products.price) AS min_price, MAX(shop_products.price) AS max_price")
	assert.NotContains(t, rangeSQL, ">= 100")

	histogram := scanSQL(db, func(tx *gorm.DB) *gorm.DB { return plan.PriceHistogramQuery(tx, 100, 1100, 10) })
	assert.Contains(t, histogram, "width_bucket(product_prices.price, 100, 1100, 10) AS bucket, COUNT(*) AS count")
	assert.Contains(t, histogram, "MIN(shop_products.price) AS price")
	assert.Contains(t, histogram, "GROUP BY shop_products.product_id) AS product_prices")
	assert.Contains(t, histogram, "GROUP BY bucket")
	assert.NotContains(t, histogram, "<= 500")
}

func TestSearch(t *testing.T) {
	db := dryRunDB(t)

	single, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModeStorefront, Search: " Merlot "})
	require.NoError(t, err)
	sql := scanSQL(db, single.DocsQuery)
	assert.Contains(t, sql, "to_tsvector('simple', shop_products.search_text) @@ to_tsquery('simple', 'merlot:*')")
	assert.Contains(t, sql, "shop_products.search_text ILIKE '%merlot%'")
	assert.Contains(t, sql, "ORDER BY MAX(ts_rank(")

	multi, err := Build(Input{
		TenantID:  tenantID,
		Mode:      models.CatalogueModeStorefront,
		Search:    "red wine",
		Selection: mustParse(t, "sortBy-price", "sortDir-asc"),
	})
	require.NoError(t, err)
	sql = scanSQL(db, multi.DocsQuery)
	assert.Contains(t, sql, "to_tsquery('simple', 'red:* & wine:*')")
	assert.NotContains(t, sql, "ILIKE")
	assert.Contains(t, sql, "ORDER BY MIN(shop_products.price) ASC, shop_products.product_id ASC")

	symbols, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModeConsoleProducts, Search: "%%"})
	require.NoError(t, err)
	sql = scanSQL(db, symbols.DocsQuery)
	assert.Contains(t, sql, `products.search_text ILIKE '%\%\%%'`)
	assert.NotContains(t, sql, "ts_rank")
}

func TestSearchTokens(t *testing.T) {
	assert.Equal(t, []string{"château", "margaux", "2015"}, SearchTokens("Château-Margaux 2015 margaux!"))
	assert.Empty(t, SearchTokens("  -- !! "))
	assert.Len(t, SearchTokens("a b c d e f g h i j k"), maxSearchTokens)
	assert.Equal(t, "a:* & b:*", TSQuery([]string{"a", "b"}))
}

func TestScopeExcept_UnknownAttributeKeepsAllStages(t *testing.T) {
	db := dryRunDB(t)
	plan, err := Build(Input{TenantID: tenantID, Mode: models.CatalogueModeStorefront, Selection: mustParse(t, "color-red")})
	require.NoError(t, err)

	full := scanSQL(db, func(tx *gorm.DB) *gorm.DB { return tx.Table("shop_products").Scopes(plan.Scope()) })
	other := scanSQL(db, func(tx *gorm.DB) *gorm.DB { return tx.Table("shop_products").Scopes(plan.ScopeExcept("size")) })
	without := scanSQL(db, func(tx *gorm.DB) *gorm.DB { return tx.Table("shop_products").Scopes(plan.ScopeExcept("color")) })

	assert.Equal(t, full, other)
	assert.Contains(t, full, "option_slugs")
	assert.NotContains(t, without, "option_slugs")
}
