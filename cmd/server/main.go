package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/logging"
	"github.com/me/queuesim/internal/server"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database for recorded runs (empty disables persistence)")
	flag.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "Period of automatic simulation ticks")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Live simulations kept in memory (0 for no limit)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.NewLogger(level, format)

	// Open store and run migrations.
	var st store.Store
	opts := []server.Option{}
	if cfg.DBPath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open database: %v\n", err)
			os.Exit(1)
		}
		defer sqlStore.Close()

		if err := sqlStore.Migrate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
			os.Exit(1)
		}
		logger.Info("database ready", "path", cfg.DBPath)
		st = sqlStore
		opts = append(opts, server.WithStore(sqlStore))
	} else {
		logger.Info("run persistence disabled", "hint", "pass --db to record runs")
	}

	mgr := sim.NewManager(st, cfg.MaxSessions, logger)
	loop := sim.NewLoop(mgr, sim.Config{TickInterval: cfg.TickInterval}, logger)
	opts = append(opts, server.WithLoop(loop))

	srv := server.New(cfg, mgr, logger, opts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.StartLoop(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop the loop before the HTTP server.
	if err := loop.Stop(); err != nil {
		logger.Error("loop stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
