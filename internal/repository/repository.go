package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants
const (
	ProductCacheTTL   = 5 * time.Minute  // Single product cache
	TaxonomyCacheTTL  = 30 * time.Minute // Rubrics, attributes and brands rarely change
	CatalogueCacheTTL = 2 * time.Minute  // Assembled catalogue pages
)

const pgUniqueViolation = "23505"

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateSlug = errors.New("slug already exists")
	ErrInvalidSlug   = errors.New("invalid slug")
)

// CatalogueRepository is the storage layer for products, shop products,
// taxonomy and the catalogue facet queries
type CatalogueRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewCatalogueRepository(db *gorm.DB, redis *redis.Client) *CatalogueRepository {
	repo := &CatalogueRepository{
		db:    db,
		redis: redis,
	}

	// Initialize CacheLayer with the existing Redis client
	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "tesseract:catalogue:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(tenantID string, prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s:%s", prefix, tenantID, hex.EncodeToString(hash[:]))
}

// CatalogueCacheKey is the cache key of an assembled catalogue page
func CatalogueCacheKey(tenantID string, params interface{}) string {
	return generateListCacheKey(tenantID, "catalogue:result", params)
}

// CacheJSON loads key into dest, computing and storing it with fn on a miss.
// Without redis fn is called directly.
func (r *CatalogueRepository) CacheJSON(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (any, error)) error {
	if r.cache != nil {
		return r.cache.GetOrSetJSON(ctx, key, dest, ttl, fn)
	}
	value, err := fn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// InvalidateCatalogue drops every cached catalogue page of a tenant
func (r *CatalogueRepository) InvalidateCatalogue(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("catalogue:result:%s:*", tenantID))
}

// invalidateTaxonomyCaches drops cached rubric and attribute lookups and the
// catalogue pages built from them
func (r *CatalogueRepository) invalidateTaxonomyCaches(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("rubric:%s:*", tenantID))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("rubric_attributes:%s:*", tenantID))
	r.InvalidateCatalogue(ctx, tenantID)
}

// RedisHealth checks the redis connection
func (r *CatalogueRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// CacheStats returns cache statistics
func (r *CatalogueRepository) CacheStats() *cache.CacheStats {
	if r.cache == nil {
		return nil
	}
	stats := r.cache.Stats()
	return &stats
}

// Ping checks database connectivity
func (r *CatalogueRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translateError maps driver errors to repository errors
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateSlug, pgErr.ConstraintName)
	}
	return err
}
