// Package scheduler runs periodic background maintenance for the asset pipeline
package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/asset-forge/app/logger"
)

// SceneEvictor removes cached scenes that were not served recently
type SceneEvictor interface {
	EvictStaleScenes(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SceneCacheEvictor periodically drops scene composites older than the cache TTL
type SceneCacheEvictor struct {
	evictor  SceneEvictor
	ttl      time.Duration
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
}

func NewSceneCacheEvictor(evictor SceneEvictor, ttl, interval time.Duration, log *logger.Logger) *SceneCacheEvictor {
	if interval <= 0 {
		interval = time.Hour
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SceneCacheEvictor{
		evictor:  evictor,
		ttl:      ttl,
		interval: interval,
		timeout:  time.Minute,
		log:      log.With("component", "scene_cache_evictor"),
	}
}

// Start launches the eviction loop in a background goroutine and returns a stop function.
// The first pass runs immediately.
func (s *SceneCacheEvictor) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *SceneCacheEvictor) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	evicted, err := s.evictor.EvictStaleScenes(runCtx, s.ttl)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("scene cache eviction failed", "ttl", s.ttl.String(), "error", err)
		return
	}
	if evicted > 0 {
		s.log.Info("evicted stale scene composites", "count", evicted, "ttl", s.ttl.String())
	}
}
