package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/indexfund/internal/api"
	"github.com/mtlprog/indexfund/internal/auth"
	"github.com/mtlprog/indexfund/internal/config"
	"github.com/mtlprog/indexfund/internal/database"
	"github.com/mtlprog/indexfund/internal/email"
	"github.com/mtlprog/indexfund/internal/fund"
	"github.com/mtlprog/indexfund/internal/store"
	"github.com/mtlprog/indexfund/internal/user"
	"github.com/mtlprog/indexfund/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.Config

	app := &cli.App{
		Name:  "indexfund",
		Usage: "index fund management backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "file with KEY=VALUE settings loaded before the environment is read",
				EnvVars: []string{"INDEXFUND_ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadEnvFile(c.String("env-file")); err != nil {
				return err
			}
			cfg = config.Load()
			setupLogging(cfg)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "create-admin",
				Usage: "create the superuser named by ADMIN_USER, ADMIN_EMAIL and ADMIN_PASSWORD",
				Action: func(c *cli.Context) error {
					return createAdmin(c.Context, cfg)
				},
			},
			{
				Name:  "audit-users",
				Usage: "report fund users that have no login credential",
				Action: func(c *cli.Context) error {
					return auditUsers(c.Context, cfg)
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func openDatabase(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.Gateway, error) {
	return store.Connect(ctx, store.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadyTimeout: cfg.RedisReadyTimeout,
	})
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	gateway, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer gateway.Close()

	credentials := auth.NewPgRepository(pool)
	tokens := auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userSvc := user.NewService(gateway, credentials)
	fundSvc := fund.NewService(gateway)

	if cfg.AuditInterval > 0 {
		auditWorker := worker.NewAuditWorker(userSvc, cfg.AuditInterval)
		go auditWorker.Run(ctx)
	}

	handler := api.NewHandler(userSvc, fundSvc, credentials, tokens)
	srv := api.NewServer(cfg.HTTPPort, handler, tokens)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func createAdmin(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateAdmin(); err != nil {
		return err
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	username := cfg.AdminUser
	if strings.Contains(username, "@") {
		username = email.Normalize(username)
	}

	repo := auth.NewPgRepository(pool)
	err = repo.CreateSuperuser(ctx, username, email.Normalize(cfg.AdminEmail), cfg.AdminPassword)
	if errors.Is(err, auth.ErrUserExists) {
		slog.Info("superuser already exists", "username", username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating superuser: %w", err)
	}
	slog.Info("superuser created", "username", username)
	return nil
}

func auditUsers(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	gateway, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer gateway.Close()

	report, err := user.NewService(gateway, auth.NewPgRepository(pool)).Audit(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if len(report.Missing) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d users have no credential", len(report.Missing), report.Checked), 2)
	}
	return nil
}
