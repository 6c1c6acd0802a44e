package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// AvatarCompositeRepositoryImpl implements AvatarCompositeRepository interface
type AvatarCompositeRepositoryImpl struct {
	*BaseRepository[models.AvatarCompositeCacheEntry, struct{}]
}

// NewAvatarCompositeRepository creates a new avatar composite repository
func NewAvatarCompositeRepository(db *gorm.DB) AvatarCompositeRepository {
	return &AvatarCompositeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AvatarCompositeCacheEntry, struct{}](db),
	}
}

// BySubjectContext retrieves the composite of a subject for one context
func (r *AvatarCompositeRepositoryImpl) BySubjectContext(ctx context.Context, subjectID, avatarContext string) (*models.AvatarCompositeCacheEntry, error) {
	db := r.getDB(ctx)

	var entry models.AvatarCompositeCacheEntry
	err := db.Where("subject_id = ? AND context = ?", subjectID, avatarContext).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find avatar composite for %s/%s: %w", subjectID, avatarContext, err)
	}

	return &entry, nil
}

// ListBySubject returns every context composite of a subject
func (r *AvatarCompositeRepositoryImpl) ListBySubject(ctx context.Context, subjectID string) ([]*models.AvatarCompositeCacheEntry, error) {
	db := r.getDB(ctx)

	var entries []*models.AvatarCompositeCacheEntry
	if err := db.Where("subject_id = ?", subjectID).Order("context ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list avatar composites for %s: %w", subjectID, err)
	}

	return entries, nil
}

// Upsert replaces the entry for (subject, context), creating it when absent
func (r *AvatarCompositeRepositoryImpl) Upsert(ctx context.Context, entry *models.AvatarCompositeCacheEntry) error {
	return r.write(ctx, func(db *gorm.DB) error {
		var existing models.AvatarCompositeCacheEntry
		err := db.Where("subject_id = ? AND context = ?", entry.SubjectID, entry.Context).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to create avatar composite: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load avatar composite: %w", err)
		}

		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		if err := db.Save(entry).Error; err != nil {
			return fmt.Errorf("failed to update avatar composite: %w", err)
		}
		return nil
	})
}
