package cron

import (
	"context"
	"fmt"

	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// sweeper is satisfied by the license-check cache.
type sweeper interface {
	Sweep() int
	Len() int
}

// CacheSweepJobParams configures the cache sweep.
type CacheSweepJobParams struct {
	Logger *logger.Logger
	Cache  sweeper
}

type cacheSweepJob struct {
	logg  *logger.Logger
	cache sweeper
}

// NewCacheSweepJob constructs the job that evicts expired license-check
// entries. Lazy purging only reclaims keys that get read again; the sweep
// bounds memory for keys that never do.
func NewCacheSweepJob(params CacheSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	return &cacheSweepJob{logg: params.Logger, cache: params.Cache}, nil
}

func (j *cacheSweepJob) Name() string {
	return "license-check-cache-sweep"
}

func (j *cacheSweepJob) Run(ctx context.Context) error {
	removed := j.cache.Sweep()
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"removed":   removed,
		"remaining": j.cache.Len(),
	})
	j.logg.Info(logCtx, "cache sweep complete")
	return nil
}
