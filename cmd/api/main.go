package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mailburst/mailburst/internal/config"
	"github.com/mailburst/mailburst/internal/handler"
	"github.com/mailburst/mailburst/internal/infra/local"
	"github.com/mailburst/mailburst/internal/infra/postgresql"
	"github.com/mailburst/mailburst/internal/infra/postgresql/migrations"
	infraredis "github.com/mailburst/mailburst/internal/infra/redis"
	"github.com/mailburst/mailburst/internal/mailer"
	"github.com/mailburst/mailburst/internal/observability"
	"github.com/mailburst/mailburst/internal/ratelimit"
	"github.com/mailburst/mailburst/internal/repository"
	"github.com/mailburst/mailburst/internal/service"
	"github.com/mailburst/mailburst/internal/transport"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	var limiter ratelimit.RateLimiter
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			logger.Fatal("redis rate limiter init failed", zap.Error(err))
		}
	} else {
		logger.Info("no redis configured, using in-process rate limiter")
		limiter = local.NewTokenBucketLimiter(cfg.RateLimitPerSec)
	}

	chain, err := buildChain(cfg, logger)
	if err != nil {
		logger.Fatal("transport chain init failed", zap.Error(err))
	}

	repo := repository.NewGormJobRepo(db)

	engine, err := service.NewDispatchEngine(repo, chain, limiter, cfg.SendDelay(), logger)
	if err != nil {
		logger.Fatal("dispatch engine init failed", zap.Error(err))
	}

	query, err := service.NewJobQueryService(repo, cfg.SinkDir, logger)
	if err != nil {
		logger.Fatal("job query service init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	engine.SetMetrics(metrics)

	reportStaleJobs(query, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, chain)
	if err := handler.RegisterJobRoutes(app, engine, query); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		logger.Info("mailburst api started",
			zap.Int("port", cfg.APIPort),
			zap.Int("transports", len(chain.Transports())),
		)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := engine.Close(shutdownCtx); err != nil {
		logger.Error("dispatch engine drain failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func buildChain(cfg *config.Config, logger *zap.Logger) (*mailer.Chain, error) {
	names, err := cfg.Transports()
	if err != nil {
		return nil, err
	}

	transports := make([]mailer.Transport, 0, len(names))
	for _, name := range names {
		var (
			t   mailer.Transport
			err error
		)
		switch name {
		case "sendmail":
			t, err = mailer.NewSendmailTransport(cfg.SendmailPath)
		case "smtp":
			t, err = mailer.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		case "api":
			if cfg.MailerAPIURL == "" {
				logger.Warn("skipping api transport, MAILER_API_URL is not set")
				continue
			}
			t, err = mailer.NewAPITransport(cfg.MailerAPIURL)
		case "ses":
			if cfg.SESAccessKey == "" || cfg.SESSecretKey == "" {
				logger.Warn("skipping ses transport, credentials are not set")
				continue
			}
			t, err = mailer.NewSESTransport(context.Background(), cfg.SESAccessKey, cfg.SESSecretKey, cfg.SESRegion)
		case "file":
			t, err = mailer.NewFileSinkTransport(cfg.SinkDir)
		default:
			return nil, fmt.Errorf("unknown transport %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("transport %s init failed: %w", name, err)
		}
		transports = append(transports, t)
	}

	return mailer.NewChain(transports, cfg.SendTimeout(), logger)
}

// reportStaleJobs surfaces jobs a previous process left mid-batch. They are
// not resumed; the log line is the operator's cue to resubmit.
func reportStaleJobs(query *service.JobQueryService, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := query.CountProcessing(ctx)
	if err != nil {
		logger.Warn("could not count stale processing jobs", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Warn("found jobs stuck in processing from a previous run", zap.Int64("count", count))
	}
}
