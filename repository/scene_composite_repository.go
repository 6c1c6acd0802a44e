package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// SceneCompositeRepositoryImpl implements SceneCompositeRepository interface
type SceneCompositeRepositoryImpl struct {
	*BaseRepository[models.SceneComposedCacheEntry, models.SceneComposedCacheEntryFilter]
}

// NewSceneCompositeRepository creates a new scene composite repository
func NewSceneCompositeRepository(db *gorm.DB) SceneCompositeRepository {
	return &SceneCompositeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SceneComposedCacheEntry, models.SceneComposedCacheEntryFilter](db),
	}
}

// ByTemplateSubject retrieves the cached composite of a subject in a template
func (r *SceneCompositeRepositoryImpl) ByTemplateSubject(ctx context.Context, templateID, subjectID string) (*models.SceneComposedCacheEntry, error) {
	db := r.getDB(ctx)

	var entry models.SceneComposedCacheEntry
	err := db.Where("scene_template_id = ? AND subject_id = ?", templateID, subjectID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find scene composite for %s/%s: %w", templateID, subjectID, err)
	}

	return &entry, nil
}

// Upsert replaces the entry for (template, subject), creating it when absent
func (r *SceneCompositeRepositoryImpl) Upsert(ctx context.Context, entry *models.SceneComposedCacheEntry) error {
	return r.write(ctx, func(db *gorm.DB) error {
		var existing models.SceneComposedCacheEntry
		err := db.Where("scene_template_id = ? AND subject_id = ?", entry.SceneTemplateID, entry.SubjectID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to create scene composite: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load scene composite: %w", err)
		}

		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		if err := db.Save(entry).Error; err != nil {
			return fmt.Errorf("failed to update scene composite: %w", err)
		}
		return nil
	})
}

// Touch records a cache hit
func (r *SceneCompositeRepositoryImpl) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.SceneComposedCacheEntry{}).
			Where("id = ?", id).
			UpdateColumn("last_accessed_at", at).Error
		if err != nil {
			return fmt.Errorf("failed to touch scene composite %d: %w", id, err)
		}
		return nil
	})
}

func (r *SceneCompositeRepositoryImpl) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	return r.deleteWhere(ctx, "subject_id = ?", subjectID)
}

func (r *SceneCompositeRepositoryImpl) DeleteByTemplate(ctx context.Context, templateID string) (int64, error) {
	return r.deleteWhere(ctx, "scene_template_id = ?", templateID)
}

// DeleteAccessedBefore removes entries whose last hit is older than cutoff
func (r *SceneCompositeRepositoryImpl) DeleteAccessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(ctx, "last_accessed_at < ?", cutoff)
}

func (r *SceneCompositeRepositoryImpl) deleteWhere(ctx context.Context, cond string, args ...any) (int64, error) {
	var deleted int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where(cond, args...).Delete(&models.SceneComposedCacheEntry{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete scene composites: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *SceneCompositeRepositoryImpl) ByFilter(ctx context.Context, filter models.SceneComposedCacheEntryFilter, orderBy string, limit, offset int) ([]*models.SceneComposedCacheEntry, error) {
	db := r.getDB(ctx)

	var entries []*models.SceneComposedCacheEntry
	query := paginate(r.applyFilter(db, filter), orderBy, limit, offset)

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to find scene composites: %w", err)
	}

	return entries, nil
}

func (r *SceneCompositeRepositoryImpl) Count(ctx context.Context, filter models.SceneComposedCacheEntryFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.SceneComposedCacheEntry{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count scene composites: %w", err)
	}

	return count, nil
}

func (r *SceneCompositeRepositoryImpl) applyFilter(db *gorm.DB, filter models.SceneComposedCacheEntryFilter) *gorm.DB {
	if filter.SceneTemplateID != nil {
		db = db.Where("scene_template_id = ?", *filter.SceneTemplateID)
	}
	if filter.SubjectID != nil {
		db = db.Where("subject_id = ?", *filter.SubjectID)
	}
	if filter.AccessedBefore != nil {
		db = db.Where("last_accessed_at < ?", *filter.AccessedBefore)
	}

	return db
}
