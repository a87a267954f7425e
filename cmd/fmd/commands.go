package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"facilities-maintenance-backend/internal/api"
	"facilities-maintenance-backend/internal/db"
	"facilities-maintenance-backend/internal/logger"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the generation and escalation scheduler",
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate work orders for every due schedule once and exit",
	RunE:  runGenerate,
}

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation sweep and exit",
	RunE:  runEscalate,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Init migrates as part of connecting.
		_, err = db.Init(&cfg.Database)
		return err
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()
	a.pool.Start(poolCtx)

	schedulerDone := make(chan error, 1)
	go func() { schedulerDone <- a.scheduler.Run(ctx) }()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(a.deps, cfg.Server),
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Logger.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Logger.Info("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		logger.Logger.WithError(err).Error("HTTP server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Requests still running after a failed shutdown find the pool drained
	// and drop their notices.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := <-schedulerDone; err != nil {
		logger.Logger.WithError(err).Error("Scheduler stopped with error")
	}
	if err := a.pool.Drain(shutdownCtx); err != nil {
		logger.Logger.WithError(err).Warn("Undelivered escalation notices dropped")
	}

	logger.Logger.Info("Server gracefully stopped")
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	res, err := a.scheduler.GenerateOnce(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runEscalate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	a.pool.Start(context.Background())
	res, err := a.scheduler.SweepOnce(cmd.Context())
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if drainErr := a.pool.Drain(drainCtx); drainErr != nil {
		logger.Logger.WithError(drainErr).Warn("Undelivered escalation notices dropped")
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
