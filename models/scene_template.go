package models

import (
	"errors"
	"time"
)

// AvatarSlot is the rectangle inside a scene where the avatar composite is placed
type AvatarSlot struct {
	X      int `gorm:"not null;default:0" json:"x"`
	Y      int `gorm:"not null;default:0" json:"y"`
	Width  int `gorm:"not null;default:0" json:"width"`
	Height int `gorm:"not null;default:0" json:"height"`
}

// Validate checks slot geometry against the scene canvas; zero canvas dimensions skip bounds checks
func (s AvatarSlot) Validate(canvasWidth, canvasHeight int) error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.New("avatar slot width and height must be positive")
	}
	if s.X < 0 || s.Y < 0 {
		return errors.New("avatar slot position must not be negative")
	}
	if canvasWidth > 0 && s.X+s.Width > canvasWidth {
		return errors.New("avatar slot exceeds scene width")
	}
	if canvasHeight > 0 && s.Y+s.Height > canvasHeight {
		return errors.New("avatar slot exceeds scene height")
	}
	return nil
}

// SceneTemplate describes the layers a scene composite is built from
type SceneTemplate struct {
	ID            string     `gorm:"primaryKey;size:128" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	BackgroundKey string     `gorm:"size:512;not null" json:"background_key"`
	ForegroundKey *string    `gorm:"size:512" json:"foreground_key,omitempty"`
	AvatarSlot    AvatarSlot `gorm:"embedded;embeddedPrefix:avatar_slot_" json:"avatar_slot"`
	Width         int        `gorm:"not null;default:0" json:"width"`
	Height        int        `gorm:"not null;default:0" json:"height"`
	UpdatedBy     *string    `gorm:"size:255" json:"updated_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the table name for the model
func (SceneTemplate) TableName() string {
	return "scene_templates"
}

// TemplateHash hashes the template's current layer keys
func (t *SceneTemplate) TemplateHash() string {
	return TemplateHash(t.BackgroundKey, t.ForegroundKey)
}

// LayersDiffer reports whether background or foreground keys differ from other
func (t *SceneTemplate) LayersDiffer(backgroundKey string, foregroundKey *string) bool {
	return t.TemplateHash() != TemplateHash(backgroundKey, foregroundKey)
}
