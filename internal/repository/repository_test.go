package repository

import (
	"errors"
	"fmt"
	"testing"

	"catalogue-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Red Wine", "red-wine"},
		{"accents", "Côte d'Or", "cote-d-or"},
		{"trims separators", "  --Château Margaux!! ", "chateau-margaux"},
		{"digits", "Vintage 1998", "vintage-1998"},
		{"empty", "???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestGenerateAttributeSlug(t *testing.T) {
	assert.Equal(t, "grape_variety", GenerateAttributeSlug("Grape Variety"))
	assert.Equal(t, "sugar_content", GenerateAttributeSlug("sugar-content"))
	assert.True(t, ValidAttributeSlug(GenerateAttributeSlug("Région d'origine")))
	assert.False(t, ValidAttributeSlug("grape-variety"))
	assert.False(t, ValidAttributeSlug(""))
	assert.False(t, ValidAttributeSlug("price"))
	assert.False(t, ValidAttributeSlug("brand"))
}

func TestBuildSearchText(t *testing.T) {
	article := "ART-001"
	brand := "penfolds"
	p := &models.Product{
		Slug:      "grange-2015",
		Article:   &article,
		BrandSlug: &brand,
		Name:      models.NewTranslations(map[string]string{"en": "Grange  Shiraz", "de": "Grange Rotwein"}),
	}

	assert.Equal(t, "grange-2015 art-001 penfolds grange rotwein grange shiraz", BuildSearchText(p))
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "Wine", DefaultName(map[string]string{"de": "Wein", "en": "Wine"}))
	assert.Equal(t, "Vin", DefaultName(map[string]string{"fr": "Vin", "it": ""}))
	assert.Equal(t, "", DefaultName(nil))
}

func TestDenormalize(t *testing.T) {
	brand := "penfolds"
	p := &models.Product{
		ID:          uuid.New(),
		RubricID:    uuid.New(),
		Slug:        "grange",
		BrandSlug:   &brand,
		OptionSlugs: pq.StringArray{"color-red"},
		Priority:    7,
		SearchText:  "grange",
	}
	var sp models.ShopProduct
	denormalize(&sp, p)

	assert.Equal(t, p.RubricID, sp.RubricID)
	assert.Equal(t, "grange", sp.ProductSlug)
	assert.Equal(t, &brand, sp.BrandSlug)
	assert.Equal(t, pq.StringArray{}, sp.CategorySlugs)
	assert.Equal(t, pq.StringArray{"color-red"}, sp.OptionSlugs)
	assert.Equal(t, 7, sp.Priority)
	assert.Equal(t, "grange", sp.SearchText)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translateError(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound)), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "idx_products_tenant_slug"}
	err := translateError(dup)
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	assert.Contains(t, err.Error(), "idx_products_tenant_slug")

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
}

func TestCatalogueCacheKey(t *testing.T) {
	a := CatalogueCacheKey("tenant-1", map[string]string{"rubric": "wine"})
	b := CatalogueCacheKey("tenant-1", map[string]string{"rubric": "wine"})
	c := CatalogueCacheKey("tenant-2", map[string]string{"rubric": "wine"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "catalogue:result:tenant-1:")
}

func TestFlattenOptions(t *testing.T) {
	attrID := uuid.New()
	opts := flattenOptions(attrID, nil, []models.CreateOptionRequest{
		{
			Name: map[string]string{"en": "Europe"},
			Children: []models.CreateOptionRequest{
				{Name: map[string]string{"en": "France"}},
				{Name: map[string]string{"en": "Italy"}, Priority: 2},
			},
		},
		{Name: map[string]string{"en": "New World"}},
	})

	if assert.Len(t, opts, 4) {
		assert.Equal(t, "europe", opts[0].Slug)
		assert.Nil(t, opts[0].ParentID)
		assert.Equal(t, "france", opts[1].Slug)
		assert.Equal(t, &opts[0].ID, opts[1].ParentID)
		assert.Equal(t, &opts[0].ID, opts[2].ParentID)
		assert.Equal(t, 2, opts[2].Priority)
		assert.Equal(t, "new-world", opts[3].Slug)
		assert.Nil(t, opts[3].ParentID)
		for _, o := range opts {
			assert.Equal(t, attrID, o.AttributeID)
		}
	}
}

func TestCacheJSON_WithoutRedis(t *testing.T) {
	repo := NewCatalogueRepository(nil, nil)
	var dest map[string]int
	calls := 0
	err := repo.CacheJSON(t.Context(), "k", &dest, CatalogueCacheTTL, func() (any, error) {
		calls++
		return map[string]int{"a": 1}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, dest)
	assert.Equal(t, 1, calls)
	assert.Nil(t, repo.CacheStats())

	err = repo.CacheJSON(t.Context(), "k", &dest, CatalogueCacheTTL, func() (any, error) {
		return nil, ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
