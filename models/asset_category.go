package models

import "sort"

// Asset category names
const (
	CategoryBuildingRef     = "building_ref"
	CategoryBuildingSprite  = "building_sprite"
	CategoryCharacterRef    = "character_ref"
	CategoryCharacterSprite = "character_sprite"
	CategoryAvatarLayer     = "avatar_layer"
	CategorySceneBackground = "scene_background"
	CategorySceneForeground = "scene_foreground"
)

// AssetCategory describes how assets of one category are derived and post-processed
type AssetCategory struct {
	Name                      string `json:"name"`
	DisplayName               string `json:"display_name"`
	ParentCategory            string `json:"parent_category,omitempty"`
	RequiresBackgroundRemoval bool   `json:"requires_background_removal"`
	TargetWidth               int    `json:"target_width"`
	TargetHeight              int    `json:"target_height"`
}

// IsDerived reports whether the category is generated from an approved parent reference
func (c AssetCategory) IsDerived() bool {
	return c.ParentCategory != ""
}

var assetCategories = map[string]AssetCategory{
	CategoryBuildingRef: {
		Name:         CategoryBuildingRef,
		DisplayName:  "Building reference",
		TargetWidth:  1024,
		TargetHeight: 1024,
	},
	CategoryBuildingSprite: {
		Name:                      CategoryBuildingSprite,
		DisplayName:               "Building sprite",
		ParentCategory:            CategoryBuildingRef,
		RequiresBackgroundRemoval: true,
		TargetWidth:               256,
		TargetHeight:              256,
	},
	CategoryCharacterRef: {
		Name:         CategoryCharacterRef,
		DisplayName:  "Character reference",
		TargetWidth:  1024,
		TargetHeight: 1024,
	},
	CategoryCharacterSprite: {
		Name:                      CategoryCharacterSprite,
		DisplayName:               "Character sprite",
		ParentCategory:            CategoryCharacterRef,
		RequiresBackgroundRemoval: true,
		TargetWidth:               256,
		TargetHeight:              256,
	},
	CategoryAvatarLayer: {
		Name:                      CategoryAvatarLayer,
		DisplayName:               "Avatar layer",
		RequiresBackgroundRemoval: true,
		TargetWidth:               512,
		TargetHeight:              512,
	},
	CategorySceneBackground: {
		Name:         CategorySceneBackground,
		DisplayName:  "Scene background",
		TargetWidth:  1920,
		TargetHeight: 1080,
	},
	CategorySceneForeground: {
		Name:                      CategorySceneForeground,
		DisplayName:               "Scene foreground",
		RequiresBackgroundRemoval: true,
		TargetWidth:               1920,
		TargetHeight:              1080,
	},
}

// LookupCategory returns the metadata registered for name
func LookupCategory(name string) (AssetCategory, bool) {
	c, ok := assetCategories[name]
	return c, ok
}

// ChildCategoryOf returns the category that derives from parent, if one is registered
func ChildCategoryOf(parent string) (AssetCategory, bool) {
	for _, c := range Categories() {
		if c.ParentCategory == parent {
			return c, true
		}
	}
	return AssetCategory{}, false
}

// Categories lists all registered categories ordered by name
func Categories() []AssetCategory {
	out := make([]AssetCategory, 0, len(assetCategories))
	for _, c := range assetCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
