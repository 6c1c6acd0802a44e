package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/asset-forge/models"
	"gorm.io/gorm"
)

// SceneTemplateRepositoryImpl implements SceneTemplateRepository interface
type SceneTemplateRepositoryImpl struct {
	*BaseRepository[models.SceneTemplate, struct{}]
}

// NewSceneTemplateRepository creates a new scene template repository
func NewSceneTemplateRepository(db *gorm.DB) SceneTemplateRepository {
	return &SceneTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SceneTemplate, struct{}](db),
	}
}

// ByKey retrieves a template by its string identifier
func (r *SceneTemplateRepositoryImpl) ByKey(ctx context.Context, id string) (*models.SceneTemplate, error) {
	db := r.getDB(ctx)

	var template models.SceneTemplate
	err := db.Where("id = ?", id).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find scene template %s: %w", id, err)
	}

	return &template, nil
}

func (r *SceneTemplateRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.SceneTemplate, error) {
	db := r.getDB(ctx)

	var templates []*models.SceneTemplate
	if err := paginate(db, "id ASC", limit, offset).Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list scene templates: %w", err)
	}

	return templates, nil
}

func (r *SceneTemplateRepositoryImpl) Update(ctx context.Context, template *models.SceneTemplate) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Save(template).Error; err != nil {
			return fmt.Errorf("failed to update scene template %s: %w", template.ID, err)
		}
		return nil
	})
}
