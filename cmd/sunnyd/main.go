package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"sunny/internal/config"
	"sunny/internal/daemon"
	"sunny/internal/logging"
	"sunny/internal/sessions"
	"sunny/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := sessions.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return
	}
	defer store.Close()

	manager, err := workflow.NewManager(cfg, store, logger)
	if err != nil {
		logger.Error("build workflow manager", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("sunnyd shutting down", logging.String(logging.FieldComponent, "sunnyd"))
}
