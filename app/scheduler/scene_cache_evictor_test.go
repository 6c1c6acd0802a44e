package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvictor struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakeEvictor) EvictStaleScenes(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, olderThan)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeEvictor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSceneCacheEvictor(t *testing.T) {
	t.Run("runs immediately and on every tick", func(t *testing.T) {
		ev := &fakeEvictor{}
		s := NewSceneCacheEvictor(ev, 2*time.Hour, 10*time.Millisecond, nil)

		stop := s.Start(context.Background())
		require.Eventually(t, func() bool { return ev.count() >= 3 }, time.Second, 5*time.Millisecond)
		stop()

		n := ev.count()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, n, ev.count(), "no passes after stop")

		ev.mu.Lock()
		defer ev.mu.Unlock()
		for _, ttl := range ev.calls {
			assert.Equal(t, 2*time.Hour, ttl)
		}
	})

	t.Run("keeps running after a failed pass", func(t *testing.T) {
		ev := &fakeEvictor{err: errors.New("database unavailable")}
		s := NewSceneCacheEvictor(ev, time.Hour, 10*time.Millisecond, nil)

		stop := s.Start(context.Background())
		defer stop()
		require.Eventually(t, func() bool { return ev.count() >= 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("defaults", func(t *testing.T) {
		s := NewSceneCacheEvictor(&fakeEvictor{}, 0, 0, nil)
		assert.Equal(t, time.Hour, s.interval)
		assert.Equal(t, 30*24*time.Hour, s.ttl)
	})
}
