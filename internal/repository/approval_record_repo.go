package repository

import (
	"context"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRecordRepository is append-only: records are inserted in the
// same transaction as the report update they document and are never
// touched again.
type ApprovalRecordRepository interface {
	Append(ctx context.Context, record *model.ApprovalRecord) error
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]model.ApprovalRecord, error)
	CountByReport(ctx context.Context, reportID uuid.UUID) (int64, error)
}

type approvalRecordRepository struct {
	db *gorm.DB
}

func NewApprovalRecordRepository(db *gorm.DB) ApprovalRecordRepository {
	return &approvalRecordRepository{db: db}
}

func (r *approvalRecordRepository) Append(ctx context.Context, record *model.ApprovalRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *approvalRecordRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]model.ApprovalRecord, error) {
	var records []model.ApprovalRecord
	if err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *approvalRecordRepository) CountByReport(ctx context.Context, reportID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).
		Model(&model.ApprovalRecord{}).
		Where("report_id = ?", reportID).
		Count(&total).Error
	return total, err
}
