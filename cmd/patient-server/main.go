package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/patients/internal/config"
	"github.com/ehr/patients/internal/domain/patient"
	"github.com/ehr/patients/internal/platform/db"
	"github.com/ehr/patients/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient-server",
		Short: "Patient record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(storeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the patient collection",
	}

	// store init
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty patient collection if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, pool, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closePool(pool)

			if err := store.Init(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Patient collection ready (%s store).\n", cfg.StoreDriver)
			return nil
		},
	}
	cmd.AddCommand(initCmd)

	// store dump
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the patient collection as indented JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, pool, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closePool(pool)

			c, err := patient.NewService(store).Snapshot(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
	cmd.AddCommand(dumpCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openStore builds the configured patient store. pool is nil unless the
// postgres driver is selected; the caller closes it.
func openStore(ctx context.Context, cfg *config.Config) (patient.Store, *pgxpool.Pool, error) {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return patient.NewFileStore(cfg.DataFile), nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return patient.NewPGStore(pool), pool, nil
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

// newServer wires middleware and routes. pool is nil for the file store.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *patient.Service, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.PlainTextErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": cfg.APIVersion,
		})
	})

	h := patient.NewHandler(svc, cfg.APIVersion)
	e.GET("/health/store", h.StoreHealth)
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	h.RegisterRoutes(e.Group("/api"))
	return e
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg)

	// Store
	ctx := context.Background()
	store, pool, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closePool(pool)
	if pool != nil {
		logger.Info().Msg("connected to database")
	} else {
		logger.Info().Str("path", cfg.DataFile).Msg("using file store")
	}

	svc := patient.NewService(store)
	if n, err := svc.Count(ctx); err != nil {
		logger.Warn().Err(err).Msg("patient collection is not readable; run `patient-server store init`")
	} else {
		logger.Info().Int("patients", n).Msg("patient collection loaded")
	}

	e := newServer(cfg, logger, svc, pool)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", cfg.APIVersion).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
