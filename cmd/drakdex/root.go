package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/drakdex/internal/backend"
	"github.com/vbonduro/drakdex/internal/catalog"
	"github.com/vbonduro/drakdex/internal/compendium/cache"
	"github.com/vbonduro/drakdex/internal/compendium/remote"
	"github.com/vbonduro/drakdex/internal/config"
	"github.com/vbonduro/drakdex/internal/db"
	"github.com/vbonduro/drakdex/internal/logging"
	"github.com/vbonduro/drakdex/internal/service"
	"github.com/vbonduro/drakdex/internal/session"
	"github.com/vbonduro/drakdex/internal/store"
	"github.com/vbonduro/drakdex/internal/web"
	"github.com/vbonduro/drakdex/internal/web/templates"
)

var olderThan time.Duration

var rootCmd = &cobra.Command{
	Use:           "drakdex",
	Short:         "DrakDex catalog console",
	Long:          "DrakDex serves the web console for the tabletop RPG catalog of creatures, items, spells and NPCs.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web console (default)",
	RunE:  runServe,
}

var pruneCmd = &cobra.Command{
	Use:   "prune-sessions",
	Short: "Delete client storage of sessions idle for longer than --older-than",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "idle time after which a session is removed (default SESSION_MAX_AGE)")
}

// app holds what every subcommand opens.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	database *sql.DB
	close    func()
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		close: func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
			cleanup()
		},
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage := store.NewClientStorage(a.database)
	if n, err := storage.Prune(ctx, time.Now().Add(-cfg.SessionMaxAge)); err != nil {
		logger.Warn("failed to prune sessions", "error", err)
	} else if n > 0 {
		logger.Info("pruned idle sessions", "rows", n)
	}

	client, err := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	if err != nil {
		return err
	}
	monsters, err := cache.New(remote.New(client), cfg.CompendiumCacheSize)
	if err != nil {
		return err
	}
	dashboards, err := service.NewDashboardService(
		session.NewManager(storage, client, logger),
		storage,
		catalog.NewLoader(logger),
		monsters,
		cfg.DashboardCacheSize,
		logger,
	)
	if err != nil {
		return err
	}
	server, err := web.NewServer(dashboards, templates.FS, web.Options{
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
	}, logger)
	if err != nil {
		return err
	}

	httpServer := server.HTTPServer(cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr, "backend", cfg.BackendURL)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runPrune(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	age := olderThan
	if age <= 0 {
		age = a.cfg.SessionMaxAge
	}
	n, err := store.NewClientStorage(a.database).Prune(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d client storage rows older than %s\n", n, age)
	return nil
}
