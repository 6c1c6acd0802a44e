package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLayerIDs(t *testing.T) {
	assert.Equal(t, []string{"bg1", "body1", "hat3"}, NormalizeLayerIDs([]string{" hat3", "bg1", "", "body1", "body1 ", "bg1"}))
	assert.Empty(t, NormalizeLayerIDs(nil))
}

func TestAvatarHash(t *testing.T) {
	base := AvatarHash([]string{"bg1", "body1"})

	assert.Len(t, base, 64)
	assert.Equal(t, base, AvatarHash([]string{"body1", "bg1"}), "order does not matter")
	assert.Equal(t, base, AvatarHash([]string{"bg1", "body1", "body1"}), "repeated ids do not matter")
	assert.Equal(t, base, AvatarHash([]string{" bg1", "", "body1"}))
	assert.NotEqual(t, base, AvatarHash([]string{"bg1", "body2"}))
}

func TestTemplateHash(t *testing.T) {
	fg := "fg/plaza.png"

	assert.Equal(t, TemplateHash("bg/plaza.png", nil), TemplateHash("bg/plaza.png", nil))
	assert.NotEqual(t, TemplateHash("bg/plaza.png", nil), TemplateHash("bg/plaza.png", &fg))
	assert.NotEqual(t, TemplateHash("bg/plaza.png", &fg), TemplateHash("bg/market.png", &fg))
}
