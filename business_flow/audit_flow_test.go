package businessflow_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/amirphl/asset-forge/app/dto"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGetRecentAudit(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	first := p.generate(t, models.CategoryBuildingRef, "bank", "a bank")
	second := p.generate(t, models.CategoryBuildingRef, "farm", "a farm")
	_, err := p.fixtures.CreateTestAuditLog(&second.ID, models.AuditActionGenerationFailed, false)
	require.NoError(t, err)

	all, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{})
	require.NoError(t, err)
	require.Len(t, all.Entries, 5)
	assert.Equal(t, models.AuditActionGenerationFailed, all.Entries[0].Action)
	assert.False(t, all.Entries[0].Success)
	require.NotNil(t, all.Entries[0].ErrorMessage)

	limited, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited.Entries, 2)
	assert.Equal(t, all.Entries[0].ID, limited.Entries[0].ID)

	byAsset, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{AssetID: &first.ID})
	require.NoError(t, err)
	require.Len(t, byAsset.Entries, 2)
	for _, e := range byAsset.Entries {
		require.NotNil(t, e.AssetID)
		assert.Equal(t, first.ID, *e.AssetID)
	}

	byAction, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{Action: utils.ToPtr(models.AuditActionGenerationRequested)})
	require.NoError(t, err)
	assert.Len(t, byAction.Entries, 2)

	byActor, err := p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{Actor: utils.ToPtr("fixture-reviewer")})
	require.NoError(t, err)
	assert.Len(t, byActor.Entries, 1)

	for _, limit := range []int{-1, utils.MaxAuditLimit + 1} {
		_, err = p.audit.GetRecentAudit(ctx, &dto.GetRecentAuditRequest{Limit: limit})
		requireKind(t, err, businessflow.KindValidation, "INVALID_AUDIT_LIMIT")
	}
}

func TestExportAudit(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	asset := p.generate(t, models.CategoryCharacterRef, "knight", "a knight")

	resp, err := p.audit.ExportAudit(ctx, &dto.GetRecentAuditRequest{AssetID: &asset.ID})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Filename, "audit_log_"))
	assert.True(t, strings.HasSuffix(resp.Filename, ".xlsx"))

	xl, err := excelize.OpenReader(bytes.NewReader(resp.Data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("audit")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two entries")
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "action", rows[0][2])
	assert.Equal(t, models.AuditActionGenerationSucceeded, rows[1][2])
	assert.Equal(t, models.AuditActionGenerationRequested, rows[2][2])
	assert.Equal(t, "true", rows[1][7])
}
