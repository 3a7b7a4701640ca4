package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogue-service/internal/clients"
	"catalogue-service/internal/config"
	"catalogue-service/internal/events"
	"catalogue-service/internal/facets"
	"catalogue-service/internal/handlers"
	"catalogue-service/internal/middleware"
	"catalogue-service/internal/repository"
	"catalogue-service/internal/services"
	"catalogue-service/internal/subscribers"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Catalogue API
// @version 1.0.0
// @description Faceted catalogue browsing, product and taxonomy management with multi-tenant support

// @host localhost:8088
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	catalogueRepo := repository.NewCatalogueRepository(db, redisClient)

	catalogueService := services.NewCatalogueService(catalogueRepo, services.CatalogueConfig{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		DefaultLocale:   cfg.DefaultLocale,
		CacheTTL:        cfg.CatalogueCacheTTL,
		ExportLimit:     cfg.ExportLimit,
		Facets: facets.Config{
			PriceBuckets: cfg.PriceHistogramBuckets,
			Concurrency:  cfg.FacetConcurrency,
		},
	}, logger)

	// Events are optional; handlers skip publishing when the publisher is nil
	var eventsPublisher *events.Publisher
	var approvalSubscriber *subscribers.ApprovalSubscriber
	if os.Getenv("NATS_URL") != "" {
		eventsPublisher, err = events.NewPublisher(logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
			eventsPublisher = nil
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}

		approvalSubscriber, err = subscribers.NewApprovalSubscriber(catalogueRepo, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize approval subscriber: %v", err)
			approvalSubscriber = nil
		} else if err := approvalSubscriber.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to start approval subscriber: %v", err)
		} else {
			log.Println("✓ Approval subscriber started")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if approvalSubscriber != nil {
			approvalSubscriber.Stop()
		}
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	catalogueHandler := handlers.NewCatalogueHandler(catalogueService, cfg.CatalogueBasePath)
	productsHandler := handlers.NewProductsHandler(catalogueRepo, eventsPublisher)
	shopProductsHandler := handlers.NewShopProductsHandler(catalogueRepo, eventsPublisher)
	taxonomyHandler := handlers.NewTaxonomyHandler(catalogueRepo)
	importHandler := handlers.NewImportHandler(catalogueRepo, catalogueRepo, cfg.DefaultLocale, eventsPublisher)
	approvalHandler := handlers.NewApprovalHandler(catalogueRepo, clients.NewApprovalClient(cfg.ApprovalServiceURL))
	healthHandler := handlers.NewHealthHandler(catalogueRepo)

	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalogue-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalogue-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	metrics := gosharedmw.InitGlobalMetrics("tesseract", "catalogue_service")

	staffServiceURL := os.Getenv("STAFF_SERVICE_URL")
	if staffServiceURL == "" {
		staffServiceURL = "http://staff-service:8080"
	}
	rbacMw := rbac.NewMiddlewareWithURL(staffServiceURL, nil)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalogue-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")
	switch cfg.Environment {
	case "development":
		api.Use(middleware.DevelopmentAuthMiddleware())
		api.Use(middleware.TenantMiddleware())
	case "standalone":
		// outside the mesh there are no x-jwt-claim-* headers to trust
		api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		api.Use(middleware.TenantMiddleware())
	default:
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: true,
			Logger:             logrus.NewEntry(logger).WithField("component", "istio_auth"),
		}))
	}
	api.Use(middleware.LocaleMiddleware(cfg.Locales()))

	v1 := api.Group("")
	{
		catalogue := v1.Group("/catalogue")
		{
			catalogue.POST("/query", rbacMw.RequirePermission(rbac.PermissionProductsRead), catalogueHandler.QueryCatalogue)
			catalogue.GET("/filters/decode", rbacMw.RequirePermission(rbac.PermissionProductsRead), catalogueHandler.DecodeFilters)
			catalogue.POST("/export", rbacMw.RequirePermission(rbac.PermissionProductsExport), catalogueHandler.ExportCatalogue)
		}

		products := v1.Group("/products")
		{
			products.GET("", rbacMw.RequirePermission(rbac.PermissionProductsRead), productsHandler.GetProducts)
			products.GET("/:id", rbacMw.RequirePermission(rbac.PermissionProductsRead), productsHandler.GetProduct)
			products.GET("/:id/shop-products", rbacMw.RequirePermission(rbac.PermissionProductsRead), shopProductsHandler.GetProductShopProducts)
			products.POST("", rbacMw.RequirePermission(rbac.PermissionProductsCreate), productsHandler.CreateProduct)
			products.GET("/import/template", rbacMw.RequirePermission(rbac.PermissionProductsCreate), importHandler.GetImportTemplate)
			products.POST("/import", rbacMw.RequirePermission(rbac.PermissionProductsCreate), importHandler.ImportProducts)
			products.PUT("/:id", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), productsHandler.UpdateProduct)
			products.PUT("/:id/status", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), productsHandler.UpdateProductStatus)
			products.POST("/:id/submit", rbacMw.RequirePermission(rbac.PermissionProductsUpdate), approvalHandler.SubmitProduct)
			products.DELETE("/:id", rbacMw.RequirePermission(rbac.PermissionProductsDelete), productsHandler.DeleteProduct)
		}

		shopProducts := v1.Group("/shop-products")
		{
			shopProducts.GET("/:id", rbacMw.RequirePermission(rbac.PermissionInventoryRead), shopProductsHandler.GetShopProduct)
			shopProducts.PUT("", rbacMw.RequirePermission(rbac.PermissionInventoryUpdate), shopProductsHandler.UpsertShopProduct)
			shopProducts.PUT("/:id", rbacMw.RequirePermission(rbac.PermissionInventoryUpdate), shopProductsHandler.UpdateShopProduct)
			shopProducts.DELETE("/:id", rbacMw.RequirePermission(rbac.PermissionInventoryUpdate), shopProductsHandler.DeleteShopProduct)
		}

		rubrics := v1.Group("/rubrics")
		{
			rubrics.GET("", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), taxonomyHandler.GetRubrics)
			rubrics.GET("/:slug/attributes", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), taxonomyHandler.GetRubricAttributes)
			rubrics.GET("/:slug/categories", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), taxonomyHandler.GetRubricCategories)
			rubrics.POST("", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), taxonomyHandler.CreateRubric)
			rubrics.PUT("/:slug/attributes", rbacMw.RequirePermission(rbac.PermissionCategoriesUpdate), taxonomyHandler.AssignRubricAttribute)
		}

		v1.POST("/attributes", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), taxonomyHandler.CreateAttribute)
		v1.GET("/brands", rbacMw.RequirePermission(rbac.PermissionCategoriesRead), taxonomyHandler.GetBrands)
		v1.POST("/brands", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), taxonomyHandler.CreateBrand)
		v1.POST("/categories", rbacMw.RequirePermission(rbac.PermissionCategoriesCreate), taxonomyHandler.CreateCategory)
	}

	// Public storefront endpoints: tenant context only, rate limited per tenant
	rateLimiter := middleware.NewTenantRateLimiter(cfg.StorefrontRateLimit, cfg.StorefrontRateBurst)
	storefront := router.Group("/api/v1/storefront")
	storefront.Use(middleware.TenantMiddleware())
	storefront.Use(rateLimiter.Middleware())
	storefront.Use(middleware.LocaleMiddleware(cfg.Locales()))
	{
		storefront.GET("/catalogue/*filters", catalogueHandler.GetStorefrontCatalogue)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Catalogue service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down catalogue-service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Catalogue service stopped")
}
