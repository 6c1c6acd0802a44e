package businessflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/asset-forge/app/logger"
	"github.com/amirphl/asset-forge/app/services"
	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// outcomeRecordTimeout bounds the transaction that stores a generation result
const outcomeRecordTimeout = 15 * time.Second

// GenerationOrchestrator owns the PENDING/REJECTED/FAILED -> GENERATING -> AWAITING_REVIEW/FAILED
// transition. Each step commits its own short transaction; the generation service is called
// with no transaction open.
type GenerationOrchestrator struct {
	db           *gorm.DB
	assetRepo    repository.AssetRecordRepository
	queueRepo    repository.QueueEntryRepository
	auditRepo    repository.AuditLogRepository
	generator    services.ImageGenerator
	privateStore services.BlobStore
	lock         *generationLock
	pipelineCfg  config.PipelineConfig
	timeout      time.Duration
	log          *logger.Logger
}

// NewGenerationOrchestrator wires the orchestrator; rc may be nil to disable the per-asset lock
func NewGenerationOrchestrator(
	db *gorm.DB,
	assetRepo repository.AssetRecordRepository,
	queueRepo repository.QueueEntryRepository,
	auditRepo repository.AuditLogRepository,
	generator services.ImageGenerator,
	privateStore services.BlobStore,
	rc *redis.Client,
	cacheCfg config.CacheConfig,
	pipelineCfg config.PipelineConfig,
	generationTimeout time.Duration,
	log *logger.Logger,
) *GenerationOrchestrator {
	if pipelineCfg.MaxGenerationAttempts <= 0 {
		pipelineCfg.MaxGenerationAttempts = utils.DefaultMaxGenerationAttempts
	}
	if generationTimeout <= 0 {
		generationTimeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GenerationOrchestrator{
		db:           db,
		assetRepo:    assetRepo,
		queueRepo:    queueRepo,
		auditRepo:    auditRepo,
		generator:    generator,
		privateStore: privateStore,
		lock:         newGenerationLock(rc, cacheCfg, pipelineCfg.GenerationLockTTL),
		pipelineCfg:  pipelineCfg,
		timeout:      generationTimeout,
		log:          log,
	}
}

// upsertParams identifies the record to create or refresh
type upsertParams struct {
	Category      string
	AssetKey      string
	Variant       int
	BasePrompt    string
	ParentAssetID *uint
	Priority      *int
}

// getAsset loads a record or returns a NotFoundError
func (o *GenerationOrchestrator) getAsset(ctx context.Context, id uint) (*models.AssetRecord, error) {
	record, err := o.assetRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("ASSET_LOOKUP_FAILED", "Failed to load asset", err)
	}
	if record == nil {
		return nil, NewNotFoundError("ASSET_NOT_FOUND", fmt.Sprintf("asset %d not found", id), ErrAssetNotFound)
	}
	return record, nil
}

// upsert creates the record for (category, assetKey, variant) or resets the existing one to PENDING
// with the given prompt
func (o *GenerationOrchestrator) upsert(ctx context.Context, p upsertParams, actor string, metadata *ClientMetadata) (*models.AssetRecord, *models.QueueEntry, error) {
	p.Category = strings.TrimSpace(p.Category)
	p.AssetKey = strings.TrimSpace(p.AssetKey)
	p.BasePrompt = strings.TrimSpace(p.BasePrompt)
	if p.Variant == 0 {
		p.Variant = 1
	}

	category, ok := models.LookupCategory(p.Category)
	if !ok {
		return nil, nil, NewValidationError("UNKNOWN_CATEGORY", fmt.Sprintf("unknown asset category %q", p.Category), ErrUnknownCategory)
	}
	if category.IsDerived() && p.ParentAssetID == nil {
		return nil, nil, NewDependencyError("PARENT_REQUIRED",
			fmt.Sprintf("category %s is derived from %s; generate it from an approved parent", category.Name, category.ParentCategory),
			ErrParentRequired)
	}
	if p.AssetKey == "" {
		return nil, nil, NewValidationError("ASSET_KEY_REQUIRED", "asset key is required", nil)
	}
	if p.Variant < 1 {
		return nil, nil, NewValidationError("INVALID_VARIANT", "variant must be at least 1", nil)
	}
	if p.BasePrompt == "" {
		return nil, nil, NewValidationError("PROMPT_REQUIRED", "base prompt is required", ErrPromptRequired)
	}

	var record *models.AssetRecord
	var entry *models.QueueEntry
	err := repository.WithTransaction(ctx, o.db, func(txCtx context.Context) error {
		existing, err := o.assetRepo.ByIdentity(txCtx, p.Category, p.AssetKey, p.Variant)
		if err != nil {
			return NewBusinessError("ASSET_LOOKUP_FAILED", "Failed to load asset", err)
		}

		created := existing == nil
		if created {
			record = &models.AssetRecord{
				Category:      p.Category,
				AssetKey:      p.AssetKey,
				Variant:       p.Variant,
				BasePrompt:    p.BasePrompt,
				CurrentPrompt: p.BasePrompt,
				PromptVersion: 1,
				Status:        models.AssetStatusPending,
				ParentAssetID: p.ParentAssetID,
			}
			if err := o.assetRepo.Save(txCtx, record); err != nil {
				return NewDependencyError("ASSET_CONCURRENT_MODIFICATION", "Failed to create asset record", errors.Join(ErrConcurrentAssetChange, err))
			}
		} else {
			record = existing
			if record.Status == models.AssetStatusGenerating {
				return NewDependencyError("ASSET_GENERATION_IN_PROGRESS", "asset is currently generating", ErrGenerationInProgress)
			}
			if record.BasePrompt != p.BasePrompt {
				record.PromptVersion++
			}
			record.BasePrompt = p.BasePrompt
			record.CurrentPrompt = p.BasePrompt
			record.SetFeedback(nil)
			record.Status = models.AssetStatusPending
			record.ApprovedAt = nil
			record.ApprovedBy = nil
			record.ErrorMessage = nil
			if p.ParentAssetID != nil {
				record.ParentAssetID = p.ParentAssetID
			}
			if err := o.updateAsset(txCtx, record); err != nil {
				return err
			}
		}

		entry, err = o.ensureQueueEntry(txCtx, record.ID, p.Priority)
		if err != nil {
			return err
		}

		return createAuditLog(txCtx, o.auditRepo, auditEntry{
			Action:  models.AuditActionGenerationRequested,
			AssetID: &record.ID,
			Actor:   actor,
			Details: map[string]any{
				"category":       record.Category,
				"asset_key":      record.AssetKey,
				"variant":        record.Variant,
				"prompt_version": record.PromptVersion,
				"created":        created,
			},
		}, metadata)
	})
	if err != nil {
		return nil, nil, err
	}

	return record, entry, nil
}

// ensureQueueEntry returns the asset's queue entry, creating it when missing
func (o *GenerationOrchestrator) ensureQueueEntry(ctx context.Context, assetID uint, priority *int) (*models.QueueEntry, error) {
	entry, err := o.queueRepo.ByAssetID(ctx, assetID)
	if err != nil {
		return nil, NewBusinessError("QUEUE_LOOKUP_FAILED", "Failed to load generation queue entry", err)
	}

	if entry == nil {
		entry = &models.QueueEntry{
			AssetID:     assetID,
			Priority:    o.pipelineCfg.DefaultQueuePriority,
			MaxAttempts: o.pipelineCfg.MaxGenerationAttempts,
			Status:      models.QueueStatusQueued,
		}
		if priority != nil {
			entry.Priority = *priority
		}
		if err := o.queueRepo.Save(ctx, entry); err != nil {
			return nil, NewBusinessError("QUEUE_CREATE_FAILED", "Failed to create generation queue entry", err)
		}
		return entry, nil
	}

	if priority != nil && entry.Priority != *priority {
		entry.Priority = *priority
		if err := o.queueRepo.Update(ctx, entry); err != nil {
			return nil, NewBusinessError("QUEUE_UPDATE_FAILED", "Failed to update generation queue entry", err)
		}
	}
	return entry, nil
}

// generationAbandoned reports whether a processing entry started longer ago than the lock TTL
func (o *GenerationOrchestrator) generationAbandoned(entry *models.QueueEntry, now time.Time) bool {
	if entry == nil || entry.StartedAt == nil {
		return true
	}
	return now.Sub(*entry.StartedAt) > o.lock.ttl
}

// updateAsset maps a lost optimistic race to a DependencyError
func (o *GenerationOrchestrator) updateAsset(ctx context.Context, record *models.AssetRecord) error {
	if err := o.assetRepo.Update(ctx, record); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return NewDependencyError("ASSET_CONCURRENT_MODIFICATION", "asset was modified by another request, reload and retry", errors.Join(ErrConcurrentAssetChange, err))
		}
		return NewBusinessError("ASSET_UPDATE_FAILED", "Failed to update asset", err)
	}
	return nil
}

// generate runs one generation attempt for the asset with its current prompt
func (o *GenerationOrchestrator) generate(ctx context.Context, assetID uint, actor string, metadata *ClientMetadata) (*models.AssetRecord, *models.QueueEntry, error) {
	release, err := o.lock.acquire(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	record, err := o.getAsset(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	if !record.Status.CanGenerate() {
		return nil, nil, NewDependencyError("INVALID_ASSET_STATUS",
			fmt.Sprintf("cannot generate asset in status %s", record.Status),
			ErrInvalidAssetStatus)
	}

	entry, err := o.ensureQueueEntry(ctx, record.ID, nil)
	if err != nil {
		return nil, nil, err
	}
	if entry.Exhausted() {
		return nil, nil, NewDependencyError("GENERATION_ATTEMPTS_EXHAUSTED",
			fmt.Sprintf("generation failed %d of %d allowed attempts; restart generation to try again", entry.Attempts, entry.MaxAttempts),
			ErrAttemptsExhausted)
	}

	// Step 1: mark GENERATING
	startedAt := utils.UTCNow()
	err = repository.WithTransaction(ctx, o.db, func(txCtx context.Context) error {
		record.Status = models.AssetStatusGenerating
		record.ErrorMessage = nil
		if err := o.updateAsset(txCtx, record); err != nil {
			return err
		}

		entry.Status = models.QueueStatusProcessing
		entry.StartedAt = &startedAt
		entry.FinishedAt = nil
		if err := o.queueRepo.Update(txCtx, entry); err != nil {
			return NewBusinessError("QUEUE_UPDATE_FAILED", "Failed to update generation queue entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Step 2: external call, no transaction held
	data, genErr := o.callGenerator(ctx, record)

	var storageKey string
	var storeErr error
	if genErr == nil {
		storageKey = privateImageKey(record)
		if err := o.privateStore.Put(ctx, storageKey, data, http.DetectContentType(data)); err != nil {
			storeErr = err
		}
	}

	// Step 3: record the outcome even when the caller's context is already done
	outcomeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeRecordTimeout)
	defer cancel()
	if genErr != nil || storeErr != nil {
		return o.recordFailure(outcomeCtx, record, entry, genErr, storeErr, actor, metadata)
	}
	return o.recordSuccess(outcomeCtx, record, entry, storageKey, actor, metadata)
}

func (o *GenerationOrchestrator) callGenerator(ctx context.Context, record *models.AssetRecord) ([]byte, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	data, err := o.generator.Generate(genCtx, record.CurrentPrompt)
	generationDuration.WithLabelValues(record.Category).Observe(time.Since(start).Seconds())

	if err == nil && len(data) == 0 {
		err = errors.New("generation service returned no image")
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("request ended before generation finished: %w", err)
		case errors.Is(genCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("generation timed out after %s: %w", o.timeout, err)
		}
	}
	return data, err
}

func (o *GenerationOrchestrator) recordSuccess(ctx context.Context, record *models.AssetRecord, entry *models.QueueEntry, storageKey, actor string, metadata *ClientMetadata) (*models.AssetRecord, *models.QueueEntry, error) {
	finishedAt := utils.UTCNow()
	err := repository.WithTransaction(ctx, o.db, func(txCtx context.Context) error {
		record.Status = models.AssetStatusAwaitingReview
		record.PrivateStorageKey = &storageKey
		record.BackgroundRemoved = false
		record.ErrorMessage = nil
		if err := o.updateAsset(txCtx, record); err != nil {
			return err
		}

		entry.Status = models.QueueStatusCompleted
		entry.FinishedAt = &finishedAt
		entry.LastError = nil
		if err := o.queueRepo.Update(txCtx, entry); err != nil {
			return NewBusinessError("QUEUE_UPDATE_FAILED", "Failed to update generation queue entry", err)
		}

		return createAuditLog(txCtx, o.auditRepo, auditEntry{
			Action:  models.AuditActionGenerationSucceeded,
			AssetID: &record.ID,
			Actor:   actor,
			Details: map[string]any{
				"prompt_version": record.PromptVersion,
				"storage_key":    storageKey,
				"attempts":       entry.Attempts,
			},
		}, metadata)
	})
	if err != nil {
		o.log.Error("Failed to record generation success",
			"asset_id", record.ID, "category", record.Category, "error", err)
		return nil, nil, err
	}

	generationAttemptsTotal.WithLabelValues(record.Category, outcomeLabel(nil)).Inc()
	o.log.Info("Asset generated",
		"asset_id", record.ID, "category", record.Category, "prompt_version", record.PromptVersion)
	return record, entry, nil
}

func (o *GenerationOrchestrator) recordFailure(ctx context.Context, record *models.AssetRecord, entry *models.QueueEntry, genErr, storeErr error, actor string, metadata *ClientMetadata) (*models.AssetRecord, *models.QueueEntry, error) {
	cause := genErr
	var flowErr *BusinessError
	if genErr != nil {
		flowErr = NewExternalServiceError("GENERATION_FAILED", "Image generation failed", genErr)
	} else {
		cause = storeErr
		flowErr = NewStorageError("PRIVATE_STORE_WRITE_FAILED", "Failed to store generated image", storeErr)
	}

	message := utils.TruncateString(cause.Error(), 2000)
	finishedAt := utils.UTCNow()
	err := repository.WithTransaction(ctx, o.db, func(txCtx context.Context) error {
		record.Status = models.AssetStatusFailed
		record.ErrorMessage = &message
		if err := o.updateAsset(txCtx, record); err != nil {
			return err
		}

		if entry.Attempts < entry.MaxAttempts {
			entry.Attempts++
		}
		entry.Status = models.QueueStatusFailed
		entry.LastError = &message
		entry.FinishedAt = &finishedAt
		if err := o.queueRepo.Update(txCtx, entry); err != nil {
			return NewBusinessError("QUEUE_UPDATE_FAILED", "Failed to update generation queue entry", err)
		}

		return createAuditLog(txCtx, o.auditRepo, auditEntry{
			Action:  models.AuditActionGenerationFailed,
			AssetID: &record.ID,
			Actor:   actor,
			Details: map[string]any{
				"prompt_version": record.PromptVersion,
				"attempts":       entry.Attempts,
				"max_attempts":   entry.MaxAttempts,
			},
			Err: cause,
		}, metadata)
	})
	if err != nil {
		o.log.Error("Failed to record generation failure",
			"asset_id", record.ID, "category", record.Category, "cause", cause, "error", err)
		return nil, nil, err
	}

	generationAttemptsTotal.WithLabelValues(record.Category, outcomeLabel(cause)).Inc()
	o.log.Warn("Asset generation failed",
		"asset_id", record.ID, "category", record.Category,
		"attempts", entry.Attempts, "max_attempts", entry.MaxAttempts, "error", cause)
	return record, entry, flowErr
}
