package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fiberdash/backend/api/handler"
	"github.com/fiberdash/backend/internal/config"
	"github.com/fiberdash/backend/internal/infrastructure/monitor"
	pgInfra "github.com/fiberdash/backend/internal/infrastructure/postgres"
	redisInfra "github.com/fiberdash/backend/internal/infrastructure/redis"
	"github.com/fiberdash/backend/internal/infrastructure/replication"
	"github.com/fiberdash/backend/internal/middleware"
	"github.com/fiberdash/backend/internal/router"
	"github.com/fiberdash/backend/internal/services"
	"github.com/fiberdash/backend/internal/services/lifecycle"
	"github.com/fiberdash/backend/pkg/httpcontext"
	"github.com/fiberdash/backend/pkg/logger"
	"github.com/fiberdash/backend/repository"
	"github.com/fiberdash/backend/repository/cookie"
	"github.com/fiberdash/backend/repository/localstore"
	"github.com/fiberdash/backend/repository/postgres"
	redisRepo "github.com/fiberdash/backend/repository/redis"
	"github.com/fiberdash/backend/repository/urlparam"
	authUC "github.com/fiberdash/backend/usecase/auth"
	profileUC "github.com/fiberdash/backend/usecase/profile"
	sessionUC "github.com/fiberdash/backend/usecase/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	queueStore, err := replication.Open(cfg.Replication.Path, "pending_writes")
	if err != nil {
		zapLogger.Fatal("failed to open replication queue", zap.Error(err))
	}
	manager.Register("replication_queue", func(ctx context.Context) error {
		return queueStore.Close()
	})

	mon := monitor.New(pool, redisClient, queueStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	// Session backends in priority order: database first, then cache, then
	// the client-bound fallbacks.
	backends := []repository.SessionBackend{
		postgres.NewSessionBackend(pool),
		redisRepo.NewSessionBackend(redisClient),
	}
	if cfg.Session.EnableCookie {
		backends = append(backends, cookie.NewSessionBackend(cfg.Session.CookieName, []byte(cfg.Session.CookieKey)))
	}
	if cfg.Session.EnableLocalStore {
		backends = append(backends, localstore.NewSessionBackend(cfg.Session.StoreHeader, []byte(cfg.Session.StoreKey)))
	}
	if cfg.Session.EnableURLRef {
		backends = append(backends, urlparam.NewSessionBackend(cfg.Session.RefParam, urlparam.DefaultRefHeader))
	}

	replicator := services.NewReplicator(
		queueStore,
		mon,
		backends,
		zapLogger,
		services.ReplicatorConfig{
			Interval:   cfg.Replication.SyncInterval,
			BatchSize:  cfg.Replication.BatchSize,
			MaxRetries: cfg.Replication.MaxRetry,
			MaxAge:     cfg.Replication.MaxAge,
		},
	)
	replicator.Start()
	manager.Register("replicator", func(ctx context.Context) error {
		replicator.Stop(ctx)
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)

	sessionManager := sessionUC.New(
		backends,
		services.NewReplicationBridge(replicator),
		auditRepo,
		sessionUC.Config{
			Timeout:            cfg.Session.Timeout,
			MaxSessionsPerUser: cfg.Session.MaxPerUser,
			FingerprintMode:    cfg.Session.FingerprintMode,
		},
		zapLogger,
	)

	sweeper := services.NewSweeper(sessionManager, zapLogger, services.SweeperConfig{
		Interval: cfg.Session.SweepInterval,
	})
	sweeper.Start()
	manager.Register("sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	authUseCase := authUC.New(userRepo, sessionManager, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	gate := middleware.SessionGate(sessionManager, ctxAdapter, zapLogger)
	r := router.New(handlers, gate)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
