package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/auth"
	"github.com/pharmapos/backend/internal/infrastructure/cache"
	"github.com/pharmapos/backend/internal/infrastructure/config"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/persistence"
	"github.com/pharmapos/backend/internal/infrastructure/storage"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
	"github.com/pharmapos/backend/internal/interfaces/http/handler"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
	"github.com/pharmapos/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			PharmaPOS Ledger API
//	@version		1.0
//	@description	Ledger integrity checks, compatibility scoring and funding analysis for pharmacy POS ledgers

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry is set up before anything that logs per request so the
	// bridged logger reaches every component.
	otelProviders, err := telemetry.Setup(ctx, telemetry.Settings{
		ServiceName:     cfg.Telemetry.ServiceName,
		Collector:       cfg.Telemetry.CollectorEndpoint,
		Insecure:        cfg.Telemetry.Insecure,
		Traces:          cfg.Telemetry.Enabled,
		SamplingRatio:   cfg.Telemetry.SamplingRatio,
		Metrics:         cfg.Telemetry.Enabled,
		MetricsInterval: cfg.Telemetry.MetricsInterval,
		Logs:            cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to set up OpenTelemetry", zap.Error(err))
	}
	log = otelProviders.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting PharmaPOS ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", zap.Error(err))
	} else if profiler.IsEnabled() {
		otelProviders.EnableSpanProfiles()
	}

	defer func() {
		if profiler != nil {
			if err := profiler.Stop(); err != nil {
				log.Warn("Error stopping profiler", zap.Error(err))
			}
		}
		if err := otelProviders.Shutdown(context.Background()); err != nil {
			log.Warn("Error shutting down OpenTelemetry", zap.Error(err))
		}
	}()

	// Database with zap-backed GORM logging and query tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	dbOpts := []persistence.DatabaseOption{persistence.WithGormLogger(gormLog)}
	if cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithPlugins(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)))
	}
	db, err := persistence.NewDatabase(ctx, &cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	compatCache, err := cache.NewCompatibilityCacheFactory(cfg.Redis, cfg.Integrity,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Integrity.AllowInMemoryFallback),
	).CreateCache()
	if err != nil {
		log.Fatal("Failed to create compatibility cache", zap.Error(err))
	}
	defer func() {
		if err := compatCache.Close(); err != nil {
			log.Warn("Error closing compatibility cache", zap.Error(err))
		}
	}()

	integrityMetrics, err := telemetry.NewIntegrityMetrics(otelProviders.Meter(telemetry.MeterName), log)
	if err != nil {
		log.Fatal("Failed to create integrity metrics", zap.Error(err))
	}

	// Ledger engine
	loader := persistence.NewGormSnapshotLoader(db.DB)
	scorer := ledger.NewCompatibilityScorer(ledger.WithConsistencyProbe(loader))
	engine := ledger.NewIntegrityService(loader,
		ledger.WithCompatibilityScorer(scorer),
		ledger.WithParallelValidators(cfg.Integrity.ParallelValidators),
		ledger.WithValidatorRunner(telemetry.ProfileValidator),
	)

	integrityOpts := []ledgerapp.IntegrityServiceOption{
		ledgerapp.WithIntegrityLogger(log),
		ledgerapp.WithIntegrityMetrics(integrityMetrics),
	}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3ReportArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create report archive", zap.Error(err))
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := archive.EnsureBucket(bucketCtx); err != nil {
			log.Warn("Report archive bucket check failed", zap.String("bucket", archive.Bucket()), zap.Error(err))
		}
		cancel()
		integrityOpts = append(integrityOpts, ledgerapp.WithReportArchive(archive))
		log.Info("Integrity report archiving enabled", zap.String("bucket", archive.Bucket()))
	}

	integrityService := ledgerapp.NewIntegrityService(engine, integrityOpts...)
	compatibilityService := ledgerapp.NewCompatibilityService(compatCache, scorer,
		ledgerapp.WithCompatibilityLogger(log),
		ledgerapp.WithCompatibilityMetrics(integrityMetrics),
		ledgerapp.WithSnapshotLoader(loader),
	)
	fundingService := ledgerapp.NewFundingService(loader, log)
	accountService := ledgerapp.NewAccountService(persistence.NewGormAccountRepository(db.DB), loader,
		ledgerapp.WithAccountLogger(log),
		ledgerapp.WithAccountMetrics(integrityMetrics),
		ledgerapp.WithAccountCompatibilityService(compatibilityService),
	)
	transactionService := ledgerapp.NewTransactionService(persistence.NewGormTransactionGroupRepository(db.DB),
		ledgerapp.WithTransactionLogger(log),
		ledgerapp.WithTransactionMetrics(integrityMetrics),
		ledgerapp.WithTransactionCompatibilityService(compatibilityService),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	httpEngine := gin.New()
	// cache keys carry an escaped slash between owner and organization
	httpEngine.UseRawPath = true

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := httpEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpEngine.Use(middleware.RequestID())
	httpEngine.Use(logger.Recovery(log))
	httpEngine.Use(logger.GinMiddleware(log))
	httpEngine.Use(middleware.Secure())
	httpEngine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	httpEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	httpEngine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	httpEngine.Use(middleware.SpanEnricher())
	httpEngine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		Providers: otelProviders,
		Enabled:   cfg.Telemetry.Enabled,
	}))

	systemOpts := []handler.SystemOption{
		handler.WithServiceName(cfg.App.Name),
		handler.WithDependencyCheck("database", db.Ping),
	}
	if redisCache, ok := compatCache.(*cache.RedisCompatibilityCache); ok {
		systemOpts = append(systemOpts, handler.WithDependencyCheck("redis", func(ctx context.Context) error {
			return redisCache.Client().Ping(ctx).Err()
		}))
	}
	systemHandler := handler.NewSystemHandler(systemOpts...)
	log.Info("Health checks registered", zap.Strings("dependencies", systemHandler.DependencyNames()))
	httpEngine.GET("/health", systemHandler.Health)

	r := router.NewRouter(httpEngine, router.WithAPIVersion("v1"))
	if cfg.HTTP.RequireAuth {
		r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService: auth.NewJWTService(cfg.JWT),
			SkipPathPrefixes: []string{
				"/api/v1/system",
			},
			Logger: log,
		}))
	} else {
		log.Warn("Authentication disabled, ledger scope is taken from request headers")
	}

	ledgerRoutes := router.NewLedgerRoutes(router.LedgerHandlers{
		Integrity:     handler.NewIntegrityHandler(integrityService),
		Compatibility: handler.NewCompatibilityHandler(compatibilityService),
		Funding:       handler.NewFundingHandler(fundingService),
		Account:       handler.NewAccountHandler(accountService),
		Transaction:   handler.NewTransactionHandler(transactionService),
	})
	ledgerRoutes.Use(middleware.LedgerScope(middleware.ScopeConfig{AllowHeaders: !cfg.HTTP.RequireAuth}))
	ledgerRoutes.Use(middleware.ProfilingLabels(cfg.Telemetry.ProfilingEnabled))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		ledgerRoutes.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	r.Register(ledgerRoutes)
	r.Register(router.NewSystemRoutes(systemHandler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
