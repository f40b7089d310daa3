package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-fetch/internal/app"
	"github.com/samvad-hq/samvad-fetch/internal/config"
	"github.com/samvad-hq/samvad-fetch/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fetcher failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// An optional positional argument overrides the jobs file.
	if len(os.Args) > 1 && os.Args[1] != "" {
		cfg.JobsFile = os.Args[1]
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("fetcher starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := app.NewFetcher(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize fetcher", "error", err.Error())
		return err
	}

	if err := fetcher.Run(ctx); err != nil {
		return fmt.Errorf("fetcher run: %w", err)
	}
	return nil
}
