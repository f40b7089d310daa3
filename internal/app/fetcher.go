package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/config"
	"github.com/samvad-hq/samvad-fetch/internal/logger"
	"github.com/samvad-hq/samvad-fetch/internal/runner"
	"github.com/samvad-hq/samvad-fetch/internal/storage"
	"github.com/samvad-hq/samvad-fetch/pkg/httpclient"
	"github.com/samvad-hq/samvad-fetch/pkg/jobs"
	"github.com/samvad-hq/samvad-fetch/pkg/publishers"
)

// Fetcher is the job runner runtime. It owns the transfer client, the result
// journal and the publishers, and runs the jobs once or on an interval.
type Fetcher struct {
	cfg      *config.Config
	jobReg   *jobs.Registry
	fanout   *publishers.Fanout
	service  *runner.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewFetcher builds a fetcher runtime from config files. A missing publishers
// file is not an error; results are then only journaled.
func NewFetcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := httpclient.New(httpclient.Config{
		Agent:      cfg.UserAgent,
		Cert:       cfg.CertPath,
		Headers:    cfg.DefaultHeaders,
		VerifyPeer: cfg.VerifyPeer,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("init http client: %w", err)
	}

	jobReg, err := jobs.LoadRegistry(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs registry: %w", err)
	}
	jobList := jobReg.All()
	jobIDs := make([]string, 0, len(jobList))
	for _, j := range jobList {
		jobIDs = append(jobIDs, j.ID)
	}
	log.InfoObj("jobs registry loaded", "jobs_meta", map[string]any{
		"count": len(jobIDs),
		"ids":   jobIDs,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ResultTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"result_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	service := runner.NewService(client, fanout, store, log, runner.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		ExecuteTimeout: cfg.ExecuteTimeout,
	})

	return &Fetcher{
		cfg:      cfg,
		jobReg:   jobReg,
		fanout:   fanout,
		service:  service,
		interval: cfg.RunInterval,
		log:      log,
		store:    store,
	}, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WarnObj("publishers file not found; results will only be journaled", "publishers_file", cfg.PublishersFile)
			return publishers.NewFanout(nil), nil
		}
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run executes the jobs once, or repeatedly on the configured interval until
// the context is cancelled. In run-once mode job failures are returned.
func (f *Fetcher) Run(ctx context.Context) error {
	if f == nil || f.service == nil {
		return fmt.Errorf("fetcher is not initialized")
	}
	defer f.close()

	list := f.jobReg.All()
	f.log.InfoObj("fetcher starting", "fetcher_state", map[string]any{
		"jobs_count":       len(list),
		"publishers_count": f.fanout.Size(),
		"run_interval":     f.interval.String(),
	})

	if f.interval <= 0 {
		return f.runOnce(ctx, list)
	}

	if err := f.runOnce(ctx, list); err != nil {
		f.log.ErrorObj("initial run failed", "error", err.Error())
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.InfoObj("fetcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := f.runOnce(ctx, list); err != nil {
				f.log.ErrorObj("scheduled run failed", "error", err.Error())
			}
		}
	}
}

func (f *Fetcher) runOnce(ctx context.Context, list []jobs.Job) error {
	start := time.Now()
	f.log.InfoObj("run started", "run_meta", map[string]any{
		"jobs_count": len(list),
		"started_at": start.UTC(),
	})
	err := f.service.Run(ctx, list)
	f.log.InfoObj("run completed", "run_meta", map[string]any{
		"jobs_count": len(list),
		"elapsed_ms": time.Since(start).Milliseconds(),
		"failed":     err != nil,
	})
	return err
}

func (f *Fetcher) close() {
	if f.store != nil {
		if err := f.store.Close(); err != nil {
			f.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
	if err := f.fanout.Close(); err != nil {
		f.log.ErrorObj("publisher close failed", "error", err.Error())
	}
}
