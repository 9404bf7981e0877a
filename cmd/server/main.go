package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/db"
	"github.com/diewo77/multifactors/internal/integrations"
	"github.com/diewo77/multifactors/internal/logging"
	"github.com/diewo77/multifactors/internal/mail"
	"github.com/diewo77/multifactors/internal/policy"
	"github.com/diewo77/multifactors/internal/storage"
	"github.com/diewo77/multifactors/internal/view"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	seedEmail    string
	seedPassword string
)

var rootCmd = &cobra.Command{
	Use:          "multifactors",
	Short:        "Multifactors website and admin dashboard",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables from .env file
		_ = godotenv.Load()
		cfg = config.Load()

		var err error
		logger, err = logging.New(cfg.App.Dev)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run DB migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info("migrations completed")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote an approved admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		p, err := db.SeedAdmin(cmd.Context(), conn, seedEmail, seedPassword)
		if err != nil {
			return err
		}
		logger.Info("admin ready", zap.String("user_id", p.ID), zap.String("email", p.Email))
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "", "Admin email (required)")
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "Admin password (required)")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedAdminCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// buildApp assembles the HTTP handler from an open database.
func buildApp(conn *gorm.DB, cfg *config.Config, log *zap.Logger) (*App, error) {
	mailer, err := mail.New(cfg.Mail, log)
	if err != nil {
		return nil, err
	}
	catalog, err := integrations.Load()
	if err != nil {
		return nil, err
	}

	routerCfg := policy.NewRouterConfig(policy.Deps{
		DB:      conn,
		Config:  cfg,
		Mailer:  mailer,
		Storage: storage.NewDisk(cfg.Storage.Dir, cfg.Storage.PublicBaseURL),
		View:    view.New(cfg.App.Dev),
		Catalog: catalog,
		Log:     log,
	})
	return NewApp(routerCfg, log, AppOptions{
		AllowOrigins:     cfg.Server.AllowOrigins,
		StorageDir:       cfg.Storage.Dir,
		StoragePublicURL: cfg.Storage.PublicBaseURL,
	}), nil
}

func runServe(ctx context.Context) error {
	conn, err := db.Open(cfg.Database, logger)
	if err != nil {
		return err
	}

	// Run migrations on startup if enabled
	if cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info("migrations completed")
	}

	app, err := buildApp(conn, cfg, logger)
	if err != nil {
		return err
	}

	// Create server with config timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
