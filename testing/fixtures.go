// Package testing provides test utilities and database setup for the asset pipeline
package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAsset inserts an asset record in the given status with a random key
func (tf *TestFixtures) CreateTestAsset(category string, status models.AssetStatus) (*models.AssetRecord, error) {
	key := fmt.Sprintf("asset-%d", rand.Intn(100000000))
	prompt := fmt.Sprintf("a %s for %s", category, key)

	asset := &models.AssetRecord{
		Category:      category,
		AssetKey:      key,
		Variant:       1,
		BasePrompt:    prompt,
		CurrentPrompt: prompt,
		Status:        status,
	}

	if status == models.AssetStatusAwaitingReview || status == models.AssetStatusApproved {
		asset.PrivateStorageKey = utils.ToPtr(fmt.Sprintf("%s/%s/1/draft-v1.png", category, key))
	}
	if status == models.AssetStatusApproved {
		asset.ApprovedAt = utils.UTCNowPtr()
		asset.ApprovedBy = utils.ToPtr("fixture-reviewer")
	}

	if err := tf.DB.DB.Create(asset).Error; err != nil {
		return nil, fmt.Errorf("failed to create test asset: %w", err)
	}

	return asset, nil
}

// CreateTestQueueEntry inserts a queue entry for an asset
func (tf *TestFixtures) CreateTestQueueEntry(assetID uint, attempts, maxAttempts int, status models.QueueStatus) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		AssetID:     assetID,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Status:      status,
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test queue entry: %w", err)
	}

	return entry, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(assetID *uint, action string, success bool) (*models.AuditLog, error) {
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		AssetID:   assetID,
		Action:    action,
		Actor:     "fixture-reviewer",
		Success:   &success,
		IPAddress: &ipAddress,
		UserAgent: &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// CreateTestSceneTemplate inserts a 1920x1080 template with a centred avatar slot
func (tf *TestFixtures) CreateTestSceneTemplate(id string) (*models.SceneTemplate, error) {
	template := &models.SceneTemplate{
		ID:            id,
		Name:          "Template " + id,
		BackgroundKey: "scene_background/" + id + "/1.png",
		AvatarSlot:    models.AvatarSlot{X: 860, Y: 440, Width: 200, Height: 200},
		Width:         1920,
		Height:        1080,
	}

	if err := tf.DB.DB.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create test scene template: %w", err)
	}

	return template, nil
}
