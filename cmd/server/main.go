package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/autoparts-inventory/internal/adapter/handler"
	"github.com/rl1809/autoparts-inventory/internal/adapter/provider/openai"
	"github.com/rl1809/autoparts-inventory/internal/adapter/provider/whisper"
	"github.com/rl1809/autoparts-inventory/internal/adapter/storage"
	"github.com/rl1809/autoparts-inventory/internal/adapter/upload"
	"github.com/rl1809/autoparts-inventory/internal/config"
	"github.com/rl1809/autoparts-inventory/internal/core/service"
	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/observe"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml or /etc/autoparts/config.yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)

	// Metrics
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, cfg.App.Name, cfg.App.Version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("metrics shutdown failed", zap.Error(err))
			}
		}()
	}
	metrics := observe.DefaultMetrics()

	// Parts store
	db, store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info("connected to database", zap.String("driver", store.Driver()))

	// Redis
	var cache port.CacheRepository
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cache = storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL)
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Providers
	extractor, err := openai.NewExtractor(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.Extraction.Timeout,
		Metrics: metrics,
	}, cfg.OpenAI.MaxTokens)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	transcriber, err := newTranscriber(cfg, metrics)
	if err != nil {
		return fmt.Errorf("init transcriber: %w", err)
	}

	// Services
	commandOpts := []service.CommandOption{
		service.WithCommandMetrics(metrics),
		service.WithCommandLogger(log),
	}
	reconcileOpts := []service.ReconcileOption{
		service.WithReconcileMetrics(metrics),
		service.WithReconcileLogger(log),
	}
	if cache != nil {
		commandOpts = append(commandOpts, service.WithExtractionCache(cache, cfg.Extraction.CacheTTL))
		reconcileOpts = append(reconcileOpts, service.WithIdempotency(cache))
	}
	if cfg.Reconcile.Atomic {
		reconcileOpts = append(reconcileOpts, service.WithAtomic(store))
	}

	commands := service.NewCommandService(transcriber, extractor, commandOpts...)
	reconcile := service.NewReconcileService(store, reconcileOpts...)
	parts := service.NewPartService(store, log)

	stager, err := upload.NewStager(cfg.Upload.Dir, cfg.Upload.MaxSizeMB<<20)
	if err != nil {
		return err
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := handler.RouterConfig{
		MaxBodySize:   cfg.HTTP.MaxBodySize,
		MaxUploadSize: cfg.Upload.MaxSizeMB << 20,
		Metrics:       metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	httpHandler := handler.NewHTTPHandler(commands, reconcile, parts, stager, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpHandler.Router(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryServerInterceptor(log)))
		handler.RegisterInventoryCommandServer(grpcServer, handler.NewGRPCHandler(commands, reconcile, parts, log))

		g.Go(func() error {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		log.Info("HTTP server stopped")

		if grpcServer != nil {
			grpcServer.GracefulStop()
			log.Info("gRPC server stopped")
		}
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, *storage.SQLAdapter, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, storage.NewSQLiteAdapter(db), nil
	default:
		db, err := storage.OpenMySQL(ctx, storage.MySQLOptions{
			Host:            cfg.Host,
			Port:            cfg.Port,
			User:            cfg.User,
			Password:        cfg.Password,
			DBName:          cfg.DBName,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return db, storage.NewMySQLAdapter(db), nil
	}
}

func newTranscriber(cfg *config.Config, metrics *observe.Metrics) (port.Transcriber, error) {
	tc := cfg.Transcription
	if tc.Provider == "whisper" {
		return whisper.New(tc.WhisperBaseURL,
			whisper.WithPath(tc.WhisperPath),
			whisper.WithLanguage(tc.Language),
			whisper.WithTimeout(tc.Timeout),
			whisper.WithMetrics(metrics),
		)
	}
	return openai.NewTranscriber(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   tc.Model,
		Timeout: tc.Timeout,
		Metrics: metrics,
	}, tc.Language)
}
