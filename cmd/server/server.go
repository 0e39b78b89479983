package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	cfgpkg "CoParent/config"
	"CoParent/internal/cache"
	"CoParent/internal/catalog"
	"CoParent/internal/handler"
	"CoParent/internal/middleware"
	"CoParent/internal/queue"
	"CoParent/internal/repository"
	"CoParent/internal/router"
	"CoParent/internal/service"
	dbotel "CoParent/pkg/database"
	"CoParent/pkg/logger"
	"CoParent/pkg/metrics"
	mqotel "CoParent/pkg/mq"
	"CoParent/pkg/otel"
	redisotel "CoParent/pkg/redis"
	"CoParent/pkg/snowflake"
	"CoParent/storage"
	"CoParent/storage/database"
	"CoParent/storage/redis"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg := cfgpkg.Cfg

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	var serverOpts []config.Option
	var routeOpts router.Options
	if cfg.OTelEnabled {
		shutdown, err := otel.Setup(ctx, otel.Config{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTelEndpoint,
			SampleRatio:    cfg.OTelSampleRatio,
		},
			middleware.Init,
			func(metric.Meter) error { return metrics.InitMetrics() },
			dbotel.InitDatabaseMetrics,
			redisotel.InitRedisMetrics,
			mqotel.InitMQMetrics,
		)
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
			}
		}()

		tracerOpt, tracingMW := middleware.NewServerTracerConfig()
		serverOpts = append(serverOpts, tracerOpt)
		routeOpts.Tracing = tracingMW
	}

	cat, err := catalog.Load(cfg.CatalogName(), cfg.OnboardingCatalogPath)
	if err != nil {
		logger.Logger.Fatal("Failed to load question catalog", zap.Error(err))
	}

	components := storage.MQ
	if cfg.SessionStore == "postgres" {
		components |= storage.Database
	}
	if cfg.RateLimitEnabled {
		components |= storage.Redis
	}
	if err := storage.Init(components); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	opts := service.OnboardingOptions{
		Catalog:                 cat,
		Publisher:               queue.NewPublisher(),
		Phraser:                 newPhraser(ctx),
		RestartOnUnknownSession: cfg.OnboardingRestartUnknown,
	}
	if cfg.SessionStore == "postgres" {
		db := database.DB()
		opts.Sessions = repository.NewGormSessionStore(db, cat)
		opts.Accounts = repository.NewGormAccounts(db)
		opts.Profiles = repository.NewGormProfiles(db)
	} else {
		opts.Sessions = repository.NewMemorySessionStore(cat)
		opts.Accounts = repository.NewMemoryAccounts()
		opts.Profiles = repository.NewMemoryProfiles()
	}
	handler.SetOnboardingService(service.NewOnboardingService(opts))

	if cfg.RateLimitEnabled {
		routeOpts.AnswerLimiter = cache.NewSlidingWindow(redis.Client(), "ratelimit:answers", time.Minute, cfg.AnswerRateLimitPerMin)
	}

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	serverOpts = append(serverOpts,
		server.WithHostPorts(addr),
		// SSE 连接需要比普通请求更长的写超时
		server.WithWriteTimeout(cfg.StreamTimeout()+5*time.Second),
	)
	h := server.New(serverOpts...)
	router.Register(h, routeOpts)

	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("addr", addr),
		zap.String("environment", cfg.Environment),
		zap.String("session_store", cfg.SessionStore),
		zap.String("catalog", cat.Name()),
	)

	h.Spin()

	logger.Logger.Info("Server shut down")
}

// newPhraser genai 初始化失败时退回静态分块
func newPhraser(ctx context.Context) service.Phraser {
	cfg := cfgpkg.Cfg
	static := service.NewStaticPhraser(cfg.OnboardingChunkWords, cfg.ChunkDelay())
	if cfg.PhraserProvider != "genai" {
		return static
	}

	p, err := service.NewGenAIPhraser(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, static)
	if err != nil {
		logger.Logger.Warn("GenAI phraser unavailable, using static phrasing", zap.Error(err))
		return static
	}
	return p
}
