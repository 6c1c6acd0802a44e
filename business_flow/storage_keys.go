package businessflow

import (
	"fmt"
	"strings"

	"github.com/amirphl/asset-forge/models"
)

// privateImageKey is the draft location of one prompt version
func privateImageKey(record *models.AssetRecord) string {
	return fmt.Sprintf("%s/%s/%d/draft-v%d.png", record.Category, record.AssetKey, record.Variant, record.PromptVersion)
}

// backgroundRemovedKey sits next to the draft it was derived from
func backgroundRemovedKey(privateKey string) string {
	return strings.TrimSuffix(privateKey, ".png") + "-nobg.png"
}

// publicImageKey is stable across publish runs so re-publishing overwrites in place
func publicImageKey(record *models.AssetRecord) string {
	return fmt.Sprintf("%s/%s/%d.png", record.Category, record.AssetKey, record.Variant)
}

func avatarCompositeKey(subjectID, avatarContext, avatarHash string) string {
	return fmt.Sprintf("composites/avatar/%s/%s/%s.png", subjectID, avatarContext, avatarHash)
}

func sceneCompositeKey(templateID, subjectID, templateHash, avatarHash string) string {
	return fmt.Sprintf("composites/scene/%s/%s/%s-%s.png", templateID, subjectID, shortHash(templateHash), shortHash(avatarHash))
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
