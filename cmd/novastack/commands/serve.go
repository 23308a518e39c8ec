package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	app "github.com/novastack/service_layer/internal/app"
	"github.com/novastack/service_layer/internal/app/httpapi"
	"github.com/novastack/service_layer/internal/app/storage/postgres"
	"github.com/novastack/service_layer/internal/config"
	"github.com/novastack/service_layer/internal/middleware"
	"github.com/novastack/service_layer/internal/platform/migrations"
)

const pingTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and background wallet jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var stores app.Stores
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		rootLog.Warn("DATABASE_URL not set; using in-memory storage")
	} else {
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		closers = append(closers, db)
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		store := postgres.New(db)
		stores = app.Stores{Users: store, Startups: store, Investments: store}
	}

	var idempotency middleware.IdempotencyStore
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		redisStore, err := middleware.NewRedisIdempotencyStore(url)
		if err != nil {
			return err
		}
		closers = append(closers, redisStore)
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = redisStore.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		idempotency = redisStore
	} else {
		rootLog.Warn("REDIS_URL not set; idempotency keys are kept in memory")
	}

	application, err := app.New(stores, nil, cfg, rootLog)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(application, httpapi.Options{
		Addr:               cfg.Addr(),
		JWTSecret:          cfg.Auth.JWTSecret,
		AdminIDs:           cfg.AdminIDs(),
		AllowedOrigins:     cfg.AllowedOrigins(),
		RateLimitRPS:       cfg.Server.RateLimitRPS,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
		Idempotency:        idempotency,
		IdempotencyTTL:     cfg.Redis.IdempotencyTTL,
		HideInternalErrors: cfg.IsProduction(),
		AuditLogPath:       cfg.Server.AuditLogPath,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
	}, rootLog.Named("http"))
	if err != nil {
		return err
	}
	if err := application.Attach(server); err != nil {
		return err
	}

	if err := application.Start(ctx); err != nil {
		return err
	}
	rootLog.WithField("addr", cfg.Addr()).Info("novastack backend listening")

	<-ctx.Done()
	rootLog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+pingTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func openDB(ctx context.Context, dbc config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dbc.MaxOpenConns)
	}
	if dbc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dbc.MaxIdleConns)
	}
	if dbc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(dbc.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
