package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	"github.com/amirphl/asset-forge/utils"
	"github.com/xuri/excelize/v2"
)

// AuditFlow reads the append-only audit log
type AuditFlow interface {
	GetRecentAudit(ctx context.Context, req *dto.GetRecentAuditRequest) (*dto.RecentAuditResponse, error)
	ExportAudit(ctx context.Context, req *dto.GetRecentAuditRequest) (*dto.ExportAuditResponse, error)
}

// AuditFlowImpl implements AuditFlow
type AuditFlowImpl struct {
	auditRepo repository.AuditLogRepository
}

func NewAuditFlow(auditRepo repository.AuditLogRepository) AuditFlow {
	return &AuditFlowImpl{auditRepo: auditRepo}
}

const auditSheetName = "audit"

func (f *AuditFlowImpl) listAudit(ctx context.Context, req *dto.GetRecentAuditRequest, defaultLimit int) ([]*models.AuditLog, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 || limit > utils.MaxAuditLimit {
		return nil, NewValidationError("INVALID_AUDIT_LIMIT",
			fmt.Sprintf("limit must be between 1 and %d", utils.MaxAuditLimit), nil)
	}

	filter := models.AuditLogFilter{AssetID: req.AssetID}
	if req.Action != nil && strings.TrimSpace(*req.Action) != "" {
		filter.Action = utils.ToPtr(strings.TrimSpace(*req.Action))
	}
	if req.Actor != nil && strings.TrimSpace(*req.Actor) != "" {
		filter.Actor = utils.ToPtr(strings.TrimSpace(*req.Actor))
	}

	logs, err := f.auditRepo.ListRecent(ctx, filter, limit)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LIST_FAILED", "Failed to list audit log", err)
	}
	return logs, nil
}

// GetRecentAudit returns the newest entries first
func (f *AuditFlowImpl) GetRecentAudit(ctx context.Context, req *dto.GetRecentAuditRequest) (*dto.RecentAuditResponse, error) {
	logs, err := f.listAudit(ctx, req, utils.DefaultAuditLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.AuditLogDTO, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, ToAuditLogDTO(l))
	}
	return &dto.RecentAuditResponse{Entries: entries}, nil
}

// ExportAudit writes the matching entries to a single-sheet xlsx workbook
func (f *AuditFlowImpl) ExportAudit(ctx context.Context, req *dto.GetRecentAuditRequest) (*dto.ExportAuditResponse, error) {
	logs, err := f.listAudit(ctx, req, utils.MaxAuditLimit)
	if err != nil {
		return nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), auditSheetName); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare audit workbook", err)
	}

	header := []string{"id", "created_at", "action", "asset_id", "target_type", "target_id", "actor", "success", "error_message", "request_id", "ip", "details"}
	_ = xl.SetSheetRow(auditSheetName, "A1", &header)

	for i, l := range logs {
		assetID := ""
		if l.AssetID != nil {
			assetID = strconv.FormatUint(uint64(*l.AssetID), 10)
		}
		details := ""
		if len(l.Details) > 0 {
			if raw, err := json.Marshal(l.DetailsMap()); err == nil {
				details = string(raw)
			}
		}
		row := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			formatTime(l.CreatedAt),
			l.Action,
			assetID,
			utils.Deref(l.TargetType),
			utils.Deref(l.TargetID),
			l.Actor,
			strconv.FormatBool(!l.IsFailed()),
			utils.Deref(l.ErrorMessage),
			utils.Deref(l.RequestID),
			utils.Deref(l.IPAddress),
			details,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(auditSheetName, cellRef, &row)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write audit workbook", err)
	}

	return &dto.ExportAuditResponse{
		Filename: fmt.Sprintf("audit_log_%s.xlsx", utils.UTCNow().Format("20060102T150405Z")),
		Data:     buf.Bytes(),
	}, nil
}
