package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-fetch/internal/domain"
)

// Package storage keeps a local journal of the most recent result per job.

// Store journals transfer results.
type Store interface {
	Close() error
	SaveResult(result domain.TransferResult) error
	// LastResult returns the newest unexpired result for jobID; ok is false when none is kept.
	LastResult(jobID string) (result domain.TransferResult, ok bool, err error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultResultTTL       = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = defaultResultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                          { return nil }
func (noopStore) SaveResult(domain.TransferResult) error { return nil }
func (noopStore) LastResult(string) (domain.TransferResult, bool, error) {
	return domain.TransferResult{}, false, nil
}
