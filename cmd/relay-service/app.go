package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"smsrelay/internal/config"
	"smsrelay/internal/constants"
	"smsrelay/internal/deduplication"
	"smsrelay/internal/extraction"
	"smsrelay/internal/logger"
	"smsrelay/internal/notification"
	"smsrelay/internal/pipeline"
	"smsrelay/internal/ratelimiting"
	"smsrelay/internal/store"
	"smsrelay/internal/validation"
	"smsrelay/pkg/bootstrap"
	"smsrelay/pkg/circuitbreaker"
	"smsrelay/pkg/health"
	"smsrelay/pkg/metrics"
	"smsrelay/pkg/middleware"
	"smsrelay/pkg/ratelimit"
	"smsrelay/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redisClient    *redis.Client
	store          store.AtomicStore
	memoryStore    *store.MemoryStore
	storeBreaker   *store.CircuitBreakerStore
	pushBreaker    *notification.CircuitBreakerTransport
	pipeline       *pipeline.Pipeline
	healthRegistry *health.CheckerRegistry
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
	stopBackground context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRelayMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.initHealth()

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

// initStore picks Redis when it is configured and the in-process store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if !a.dbConnector.RedisEnabled() {
		a.Logger.WarnwCtx(ctx, "Redis not configured, using in-memory store; counters and markers are per-instance")
		a.memoryStore = store.NewMemoryStore()
		a.store = a.memoryStore
		return nil
	}

	client, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = client

	a.storeBreaker = store.NewCircuitBreakerStore(store.NewRedisStore(client), a.Config.CircuitBreaker)
	a.store = a.storeBreaker
	return nil
}

func (a *App) initPipeline() error {
	bark, err := notification.NewBarkTransport(a.Config.Push)
	if err != nil {
		return err
	}

	var transport notification.Transport = bark
	if a.Config.CircuitBreaker.Enabled {
		cb := a.Config.CircuitBreaker
		a.pushBreaker = notification.NewCircuitBreakerTransport(bark, "push",
			circuitbreaker.DefaultConfig("push").
				WithThresholds(cb.MaxRequests, cb.Interval, cb.Timeout, cb.FailureRatio, cb.MinRequests))
		transport = a.pushBreaker
	}

	deps := pipeline.Dependencies{
		Validator:  validation.NewValidator(a.Config.Relay),
		Limiter:    ratelimiting.NewLimiter(a.store, a.Config.RateLimit, a.Logger),
		Extractor:  extraction.New(extraction.WithRuleHitHook(metrics.IncExtractionRuleHit)),
		Dedup:      deduplication.NewService(a.store, a.Config.Deduplication, a.Logger),
		Dispatcher: notification.NewDispatcher(transport, a.Config.Push, a.Logger),
	}

	a.pipeline = pipeline.New(deps, a.Logger,
		pipeline.WithDebug(a.Config.Relay.Debug),
		pipeline.WithTitle(a.Config.Push.Title),
	)
	return nil
}

func (a *App) initHealth() {
	a.healthRegistry = health.NewCheckerRegistry()

	if a.redisClient != nil {
		a.healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}

	if a.storeBreaker != nil && a.Config.CircuitBreaker.Enabled {
		a.healthRegistry.RegisterNonCritical(breakerChecker("store_circuit_breaker", a.storeBreaker.IsOpen))
	}

	if a.pushBreaker != nil {
		a.healthRegistry.RegisterNonCritical(breakerChecker("push_circuit_breaker", a.pushBreaker.IsOpen))
	}
}

func breakerChecker(name string, isOpen func() bool) health.Checker {
	return health.NewFuncChecker(name, func(ctx context.Context) error {
		if isOpen() {
			return errors.New("circuit breaker is open")
		}
		return nil
	})
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBackground = cancel

	if a.Config.Ingress.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Ingress.RPS,
			Burst:           a.Config.Ingress.Burst,
			CleanupInterval: time.Duration(a.Config.Ingress.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Ingress.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(bgCtx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Ingress rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := pipeline.NewHandler(a.pipeline, a.Config.Relay.MaxBodyBytes, a.Logger)
	handler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		h := a.healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, gin.H{
			"status":    healthStatus(h.Status),
			"timestamp": h.Timestamp.UnixMilli(),
			"checks":    h.Checks,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Not Found",
		})
	})

	a.router = router
	return nil
}

func healthStatus(s health.Status) string {
	if s == health.StatusHealthy {
		return "ok"
	}
	return string(s)
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.memoryStore != nil {
		g.Go(func() error {
			a.memoryStore.RunSweeper(gCtx, constants.StoreSweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.WithoutCancel(gCtx))
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()

		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.stopBackground != nil {
			a.stopBackground()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(shutdownCtx, a.redisClient)...)
		return errs
	})
}
