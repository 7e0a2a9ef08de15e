package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lox/holdemd/internal/config"
	"github.com/lox/holdemd/internal/engine"
	"github.com/lox/holdemd/internal/scheduler"
	"github.com/lox/holdemd/internal/server"
	"github.com/lox/holdemd/internal/store"
)

// version is set by ldflags during build
var version = "dev"

var CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Config   string           `short:"c" long:"config" default:"holdemd.hcl" help:"Path to HCL configuration file"`
	Addr     string           `short:"a" long:"addr" help:"Listen address (overrides config)"`
	LogLevel string           `short:"l" long:"log-level" help:"Log level (overrides config)"`
	DB       string           `long:"db" help:"SQLite database path (overrides config); 'memory' runs without persistence"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Vars{"version": version})

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}

	addr := cfg.Server.Addr()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.DB != "" {
		cfg.Server.DatabasePath = CLI.DB
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	clock := quartz.NewReal()

	var st store.Store
	var queue scheduler.Queue
	if cfg.Server.DatabasePath == "memory" {
		st = store.NewMemStore(clock)
		queue = scheduler.NewMemQueue()
	} else {
		sqlStore, err := store.NewSQLStore(cfg.Server.DatabasePath, clock)
		if err != nil {
			logger.Fatal("open database", "path", cfg.Server.DatabasePath, "error", err)
		}
		defer sqlStore.Close()

		sqlQueue, err := scheduler.NewSQLQueue(cfg.Server.DatabasePath)
		if err != nil {
			logger.Fatal("open task queue", "path", cfg.Server.DatabasePath, "error", err)
		}
		defer sqlQueue.Close()
		st, queue = sqlStore, sqlQueue
	}

	eng := engine.New(engine.Params{
		ShowdownAdmire:  cfg.Game.ShowdownAdmire(),
		WinByFoldReveal: cfg.Game.WinByFoldReveal(),
		NextHandDelay:   cfg.Game.NextHandDelay(),
		IdleClose:       cfg.Game.IdleClose(),
	})

	srv := server.New(server.Options{
		Addr:               addr,
		SweepInterval:      time.Duration(cfg.Server.SweepSeconds) * time.Second,
		SweepGrace:         time.Duration(cfg.Server.SweepGraceSec) * time.Second,
		DefaultTurnTimeout: cfg.Game.TurnTimeout(),
	}, st, eng, queue, clock, logger, prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting holdemd", "addr", addr, "db", cfg.Server.DatabasePath)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", "error", err)
	}
}
