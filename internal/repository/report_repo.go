package repository

import (
	"context"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportFilter narrows report listings.
type ReportFilter struct {
	WorkflowStatus string
	RigNumber      int // 0 = all rigs
	Category       string
}

// ReportRepository is the store access for NPT reports. FindByIDForUpdate
// takes a row lock and must be called inside a transaction; it is what
// serializes two approvers racing on the same pending report.
type ReportRepository interface {
	Create(ctx context.Context, report *model.NptReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.NptReport, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NptReport, error)
	Update(ctx context.Context, report *model.NptReport) error
	List(ctx context.Context, filter ReportFilter, page, limit int) ([]model.NptReport, int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.NptReport) error {
	return GetDB(ctx, r.db).Create(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.NptReport, error) {
	var report model.NptReport
	if err := GetDB(ctx, r.db).Preload("Initiator").First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NptReport, error) {
	var report model.NptReport
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) Update(ctx context.Context, report *model.NptReport) error {
	return GetDB(ctx, r.db).Save(report).Error
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter, page, limit int) ([]model.NptReport, int64, error) {
	db := GetDB(ctx, r.db)

	apply := func(q *gorm.DB) *gorm.DB {
		if filter.WorkflowStatus != "" {
			q = q.Where("workflow_status = ?", filter.WorkflowStatus)
		}
		if filter.RigNumber != 0 {
			q = q.Where("rig_number = ?", filter.RigNumber)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		return q
	}

	var total int64
	if err := apply(db.Model(&model.NptReport{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	var reports []model.NptReport
	if err := apply(db.Preload("Initiator")).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reports).Error; err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}
