package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		notes []string
		want  string
	}{
		{name: "no notes", base: "  a red barn ", want: "a red barn"},
		{name: "blank notes are skipped", base: "a red barn", notes: []string{" ", ""}, want: "a red barn"},
		{
			name:  "notes in order",
			base:  "a red barn",
			notes: []string{"add a rooster", " bigger doors "},
			want:  "a red barn\n\nREVIEWER FEEDBACK (must address):\n- add a rooster\n- bigger doors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPrompt(tt.base, tt.notes))
		})
	}
}

func TestStorageKeys(t *testing.T) {
	record := &models.AssetRecord{
		Category:      models.CategoryBuildingSprite,
		AssetKey:      "bakery",
		Variant:       2,
		PromptVersion: 3,
	}

	draft := privateImageKey(record)
	assert.Equal(t, "building_sprite/bakery/2/draft-v3.png", draft)
	assert.Equal(t, "building_sprite/bakery/2/draft-v3-nobg.png", backgroundRemovedKey(draft))
	assert.Equal(t, "building_sprite/bakery/2.png", publicImageKey(record))

	hash := models.AvatarHash([]string{"b", "a"})
	assert.Equal(t, "composites/avatar/player-1/default/"+hash+".png", avatarCompositeKey("player-1", "default", hash))

	sceneKey := sceneCompositeKey("plaza", "player-1", hash, hash)
	assert.Equal(t, fmt.Sprintf("composites/scene/plaza/player-1/%s-%s.png", hash[:16], hash[:16]), sceneKey)
	assert.Equal(t, "short", shortHash("short"))
}

func TestErrorClassification(t *testing.T) {
	inner := NewStorageError("PUBLIC_STORE_WRITE_FAILED", "Failed to write public image", errors.New("disk full"))
	wrapped := fmt.Errorf("publish: %w", inner)

	assert.Equal(t, KindStorage, ErrorKindOf(wrapped))
	assert.Equal(t, "PUBLIC_STORE_WRITE_FAILED", ErrorCodeOf(wrapped))
	assert.True(t, IsStorageError(wrapped))
	assert.Equal(t, "Failed to write public image: disk full", inner.Error())

	assert.Equal(t, KindInternal, ErrorKindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), ErrorKindOf(nil))
	assert.Empty(t, ErrorCodeOf(errors.New("boom")))

	notFound := NewNotFoundError("ASSET_NOT_FOUND", "asset 7 not found", ErrAssetNotFound)
	assert.True(t, IsAssetNotFound(notFound))
	assert.True(t, errors.Is(notFound, ErrAssetNotFound))
}

func TestRedisKeyAndNilLock(t *testing.T) {
	assert.Equal(t, "forge:lock:asset-generation:1", redisKey(config.CacheConfig{RedisPrefix: "forge"}, generationLockKeyPrefix+"1"))
	assert.Equal(t, "forge:x", redisKey(config.CacheConfig{RedisPrefix: "forge:"}, "x"))
	assert.Equal(t, "x", redisKey(config.CacheConfig{}, "x"))

	lock := newGenerationLock(nil, config.CacheConfig{}, 0)
	release, err := lock.acquire(context.Background(), 1)
	require.NoError(t, err)
	release()
}
