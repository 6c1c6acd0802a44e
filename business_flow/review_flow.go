package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"gorm.io/gorm"
)

// ReviewFlow handles reviewer decisions and prompt bookkeeping
type ReviewFlow interface {
	Approve(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	Reject(ctx context.Context, req *dto.RejectAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	Regenerate(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	ResetPrompt(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
	RestartGeneration(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error)
}

// ReviewFlowImpl implements ReviewFlow
type ReviewFlowImpl struct {
	db            *gorm.DB
	orchestrator  *GenerationOrchestrator
	rejectionRepo repository.RejectionRecordRepository
}

func NewReviewFlow(db *gorm.DB, orchestrator *GenerationOrchestrator, rejectionRepo repository.RejectionRecordRepository) ReviewFlow {
	return &ReviewFlowImpl{
		db:            db,
		orchestrator:  orchestrator,
		rejectionRepo: rejectionRepo,
	}
}

// Approve marks an asset awaiting review as approved
func (f *ReviewFlowImpl) Approve(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	var record *models.AssetRecord
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		record, err = f.orchestrator.getAsset(txCtx, req.AssetID)
		if err != nil {
			return err
		}
		if record.Status != models.AssetStatusAwaitingReview {
			return NewDependencyError("INVALID_ASSET_STATUS",
				fmt.Sprintf("only assets awaiting review can be approved, asset is %s", record.Status),
				ErrInvalidAssetStatus)
		}

		now := utils.UTCNow()
		record.Status = models.AssetStatusApproved
		record.ApprovedAt = &now
		record.ApprovedBy = utils.ToPtr(actorOrSystem(req.Actor))
		record.ErrorMessage = nil
		if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
			return err
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionAssetApproved,
			AssetID: &record.ID,
			Actor:   req.Actor,
			Details: map[string]any{"prompt_version": record.PromptVersion},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	reviewDecisionsTotal.WithLabelValues(record.Category, "approved").Inc()

	return &dto.AssetResponse{
		Message: "Asset approved",
		Asset:   ToAssetDTO(record),
	}, nil
}

// Reject records the reviewer's reason and, unless disabled, folds it into the next prompt
func (f *ReviewFlowImpl) Reject(ctx context.Context, req *dto.RejectAssetRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, NewValidationError("REJECTION_REASON_REQUIRED", "rejection reason is required", ErrRejectionReasonEmpty)
	}
	incorporate := req.IncorporateFeedback == nil || *req.IncorporateFeedback

	var record *models.AssetRecord
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		record, err = f.orchestrator.getAsset(txCtx, req.AssetID)
		if err != nil {
			return err
		}
		if record.Status != models.AssetStatusAwaitingReview {
			return NewDependencyError("INVALID_ASSET_STATUS",
				fmt.Sprintf("only assets awaiting review can be rejected, asset is %s", record.Status),
				ErrInvalidAssetStatus)
		}

		rejection := &models.RejectionRecord{
			AssetID:                  record.ID,
			Reason:                   reason,
			PromptSnapshot:           record.CurrentPrompt,
			PromptVersionAtRejection: record.PromptVersion,
			IncorporatedFeedback:     incorporate,
			RejectedBy:               actorOrSystem(req.Actor),
		}
		if err := f.rejectionRepo.Save(txCtx, rejection); err != nil {
			return NewBusinessError("REJECTION_SAVE_FAILED", "Failed to save rejection", err)
		}

		record.RejectionCount++
		record.PromptVersion++
		record.Status = models.AssetStatusRejected
		if incorporate {
			notes := append(record.Feedback(), reason)
			record.SetFeedback(notes)
			record.CurrentPrompt = buildPrompt(record.BasePrompt, notes)
		}
		if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
			return err
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionAssetRejected,
			AssetID: &record.ID,
			Actor:   req.Actor,
			Details: map[string]any{
				"reason":                reason,
				"incorporated_feedback": incorporate,
				"prompt_version":        record.PromptVersion,
				"rejection_count":       record.RejectionCount,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	reviewDecisionsTotal.WithLabelValues(record.Category, "rejected").Inc()

	return &dto.AssetResponse{
		Message: "Asset rejected",
		Asset:   ToAssetDTO(record),
	}, nil
}

// Regenerate runs another attempt with the current prompt; promptVersion is left as is
func (f *ReviewFlowImpl) Regenerate(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	record, err := f.orchestrator.getAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if !record.Status.CanRegenerate() {
		return nil, NewDependencyError("INVALID_ASSET_STATUS",
			fmt.Sprintf("only rejected or failed assets can be regenerated, asset is %s", record.Status),
			ErrInvalidAssetStatus)
	}

	err = createAuditLog(ctx, f.orchestrator.auditRepo, auditEntry{
		Action:  models.AuditActionAssetRegenerated,
		AssetID: &record.ID,
		Actor:   req.Actor,
		Details: map[string]any{
			"from_status":    record.Status.String(),
			"prompt_version": record.PromptVersion,
		},
	}, metadata)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LOG_FAILED", "Failed to record regeneration", err)
	}

	record, entry, err := f.orchestrator.generate(ctx, record.ID, req.Actor, metadata)
	if err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Asset regenerated and awaiting review",
		Asset:   ToAssetDTO(record),
		Queue:   ToQueueEntryDTO(entry),
	}, nil
}

// ResetPrompt discards accumulated feedback without touching status
func (f *ReviewFlowImpl) ResetPrompt(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	var record *models.AssetRecord
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		record, err = f.orchestrator.getAsset(txCtx, req.AssetID)
		if err != nil {
			return err
		}
		if !record.Status.CanResetPrompt() {
			return NewDependencyError("INVALID_ASSET_STATUS",
				fmt.Sprintf("prompt can only be reset on rejected or approved assets, asset is %s", record.Status),
				ErrInvalidAssetStatus)
		}

		discarded := len(record.Feedback())
		record.CurrentPrompt = record.BasePrompt
		record.SetFeedback(nil)
		record.PromptVersion++
		if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
			return err
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionPromptReset,
			AssetID: &record.ID,
			Actor:   req.Actor,
			Details: map[string]any{
				"discarded_notes": discarded,
				"prompt_version":  record.PromptVersion,
			},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Prompt reset to base prompt",
		Asset:   ToAssetDTO(record),
	}, nil
}

// RestartGeneration clears the attempt counter so an exhausted asset can be regenerated.
// A GENERATING asset whose attempt started longer ago than the generation lock TTL is moved to FAILED.
func (f *ReviewFlowImpl) RestartGeneration(ctx context.Context, req *dto.AssetActionRequest, metadata *ClientMetadata) (*dto.AssetResponse, error) {
	var record *models.AssetRecord
	var entry *models.QueueEntry
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		record, err = f.orchestrator.getAsset(txCtx, req.AssetID)
		if err != nil {
			return err
		}
		entry, err = f.orchestrator.ensureQueueEntry(txCtx, record.ID, nil)
		if err != nil {
			return err
		}

		abandoned := false
		if record.Status == models.AssetStatusGenerating {
			if !f.orchestrator.generationAbandoned(entry, utils.UTCNow()) {
				return NewDependencyError("ASSET_GENERATION_IN_PROGRESS", "asset is currently generating", ErrGenerationInProgress)
			}
			message := "generation abandoned before an outcome was recorded"
			record.Status = models.AssetStatusFailed
			record.ErrorMessage = &message
			if err := f.orchestrator.updateAsset(txCtx, record); err != nil {
				return err
			}
			abandoned = true
		}

		previous := entry.Attempts
		entry.Attempts = 0
		entry.Status = models.QueueStatusQueued
		entry.LastError = nil
		entry.StartedAt = nil
		entry.FinishedAt = nil
		if err := f.orchestrator.queueRepo.Update(txCtx, entry); err != nil {
			return NewBusinessError("QUEUE_UPDATE_FAILED", "Failed to update generation queue entry", err)
		}

		return createAuditLog(txCtx, f.orchestrator.auditRepo, auditEntry{
			Action:  models.AuditActionGenerationRestarted,
			AssetID: &record.ID,
			Actor:   req.Actor,
			Details: map[string]any{"previous_attempts": previous, "abandoned_generation": abandoned},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	return &dto.AssetResponse{
		Message: "Generation attempts reset",
		Asset:   ToAssetDTO(record),
		Queue:   ToQueueEntryDTO(entry),
	}, nil
}
