package main

import (
	"context"
	"errors"
	"time"

	"catalogue-service/internal/config"
	"catalogue-service/internal/facets"
	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"
	"catalogue-service/internal/services"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	warmRubrics []string
	warmLocales []string
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Pre-compute the first storefront page of rubrics",
	Long: `Run the storefront catalogue query of each rubric once per locale so the
result cache is filled before traffic arrives. Without --rubric every rubric of
the tenant is warmed; without --locale every supported locale is used.`,
	Args: cobra.NoArgs,
	RunE: runWarm,
}

func init() {
	warmCmd.Flags().StringSliceVar(&warmRubrics, "rubric", nil, "rubric slugs to warm (default: all)")
	warmCmd.Flags().StringSliceVar(&warmLocales, "locale", nil, "locales to warm (default: SUPPORTED_LOCALES)")
}

// catalogueWarmer is the part of the catalogue service warm needs
type catalogueWarmer interface {
	GetCatalogue(ctx context.Context, tenantID string, q services.CatalogueQuery) (*models.CatalogueResult, error)
}

func runWarm(cmd *cobra.Command, args []string) error {
	if tenantID == "" {
		return errors.New("--tenant is required")
	}
	cfg := config.Load()
	if cfg.CatalogueCacheTTL <= 0 {
		return errors.New("CATALOGUE_CACHE_TTL disables result caching, nothing to warm")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	ctx := cmd.Context()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	repo := repository.NewCatalogueRepository(db, redisClient)
	service := services.NewCatalogueService(repo, services.CatalogueConfig{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		DefaultLocale:   cfg.DefaultLocale,
		CacheTTL:        cfg.CatalogueCacheTTL,
		Facets: facets.Config{
			PriceBuckets: cfg.PriceHistogramBuckets,
			Concurrency:  cfg.FacetConcurrency,
		},
	}, logger)

	rubrics := warmRubrics
	if len(rubrics) == 0 {
		all, err := repo.ListRubrics(ctx, tenantID)
		if err != nil {
			return err
		}
		for _, r := range all {
			rubrics = append(rubrics, r.Slug)
		}
	}
	locales := warmLocales
	if len(locales) == 0 {
		locales = cfg.Locales()
	}

	warmed, failed := warm(ctx, service, tenantID, cfg.CatalogueBasePath, rubrics, locales)
	logger.WithFields(logrus.Fields{
		"warmed": warmed,
		"failed": failed,
	}).Info("Catalogue cache warmed")
	if failed > 0 {
		return errors.New("some rubrics failed to warm")
	}
	return nil
}

// warm requests the first storefront page of every rubric and locale pair.
// Failures are logged and counted; the remaining pairs are still warmed.
func warm(ctx context.Context, service catalogueWarmer, tenant, basePath string, rubrics, locales []string) (warmed, failed int) {
	for _, rubric := range rubrics {
		for _, locale := range locales {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{"rubric": rubric, "locale": locale})
			res, err := service.GetCatalogue(ctx, tenant, services.CatalogueQuery{
				Mode:     models.CatalogueModeStorefront,
				Segments: []string{filters.OptionSegment(filters.AttrRubric, rubric)},
				Locale:   locale,
				BasePath: basePath,
			})
			if err != nil {
				entry.WithError(err).Warn("Failed to warm rubric")
				failed++
				continue
			}
			entry.WithFields(logrus.Fields{
				"total":    res.Pagination.Total,
				"duration": time.Since(start).String(),
			}).Debug("Rubric warmed")
			warmed++
		}
	}
	return warmed, failed
}
