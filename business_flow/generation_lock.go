package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/asset-forge/config"
	"github.com/redis/go-redis/v9"
)

const generationLockKeyPrefix = "lock:asset-generation:"

// redisKey prefixes key with the configured namespace
func redisKey(cfg config.CacheConfig, key string) string {
	prefix := cfg.RedisPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix + key
}

// generationLock serializes generate calls per asset across processes; a nil client disables it
type generationLock struct {
	rc       *redis.Client
	cacheCfg config.CacheConfig
	ttl      time.Duration
}

func newGenerationLock(rc *redis.Client, cacheCfg config.CacheConfig, ttl time.Duration) *generationLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &generationLock{rc: rc, cacheCfg: cacheCfg, ttl: ttl}
}

// acquire takes the lock for assetID and returns its release func
func (l *generationLock) acquire(ctx context.Context, assetID uint) (func(), error) {
	if l == nil || l.rc == nil {
		return func() {}, nil
	}

	lockKey := redisKey(l.cacheCfg, fmt.Sprintf("%s%d", generationLockKeyPrefix, assetID))

	// Acquire distributed lock (SETNX with TTL)
	ok, err := l.rc.SetNX(ctx, lockKey, "1", l.ttl).Result()
	if err != nil {
		return nil, NewDependencyError("GENERATION_LOCK_FAILED", "Failed to acquire generation lock", err)
	}
	if !ok {
		return nil, NewDependencyError("GENERATION_LOCK_BUSY", "Another generation is running for this asset", ErrGenerationInProgress)
	}

	return func() {
		_ = l.rc.Del(context.Background(), lockKey).Err()
	}, nil
}
