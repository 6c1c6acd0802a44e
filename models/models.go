package models

// AllModels lists every persisted entity in migration order
func AllModels() []any {
	return []any{
		&AssetRecord{},
		&RejectionRecord{},
		&QueueEntry{},
		&AuditLog{},
		&BuildingConfiguration{},
		&AvatarCompositeCacheEntry{},
		&SceneTemplate{},
		&SceneComposedCacheEntry{},
	}
}
