package repository

import (
	"context"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PeriodRepository is the store access for period reports, their day
// slices and their stage events. FindByKeyForUpdate locks the period row
// so slice upserts and totals recomputation serialize per period.
type PeriodRepository interface {
	Create(ctx context.Context, period *model.PeriodReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PeriodReport, error)
	FindByKey(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error)
	FindByKeyForUpdate(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error)
	Update(ctx context.Context, period *model.PeriodReport) error
	ListByStatuses(ctx context.Context, statuses []string) ([]model.PeriodReport, error)

	UpsertDaySlice(ctx context.Context, slice *model.DaySlice) error
	ListDaySlices(ctx context.Context, periodID uuid.UUID) ([]model.DaySlice, error)
	SumHoursByCategory(ctx context.Context, periodID uuid.UUID) (map[string]decimal.Decimal, error)

	AppendStageEvent(ctx context.Context, event *model.StageEvent) error
	ListStageEvents(ctx context.Context, periodID uuid.UUID) ([]model.StageEvent, error)
	LatestStageEvent(ctx context.Context, periodID uuid.UUID) (*model.StageEvent, error)
}

type periodRepository struct {
	db *gorm.DB
}

func NewPeriodRepository(db *gorm.DB) PeriodRepository {
	return &periodRepository{db: db}
}

func (r *periodRepository) Create(ctx context.Context, period *model.PeriodReport) error {
	return GetDB(ctx, r.db).Create(period).Error
}

func (r *periodRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PeriodReport, error) {
	var period model.PeriodReport
	if err := GetDB(ctx, r.db).Preload("Creator").First(&period, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepository) FindByKey(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error) {
	var period model.PeriodReport
	err := GetDB(ctx, r.db).
		Preload("Creator").
		First(&period, "period_key = ? AND rig_number = ?", periodKey, rig).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepository) FindByKeyForUpdate(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error) {
	var period model.PeriodReport
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&period, "period_key = ? AND rig_number = ?", periodKey, rig).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepository) Update(ctx context.Context, period *model.PeriodReport) error {
	return GetDB(ctx, r.db).Save(period).Error
}

func (r *periodRepository) ListByStatuses(ctx context.Context, statuses []string) ([]model.PeriodReport, error) {
	var periods []model.PeriodReport
	err := GetDB(ctx, r.db).
		Where("status IN ?", statuses).
		Order("submitted_at ASC").
		Find(&periods).Error
	if err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *periodRepository) UpsertDaySlice(ctx context.Context, slice *model.DaySlice) error {
	return GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "period_report_id"}, {Name: "slice_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"hours", "category", "report_ids", "day_status", "updated_at",
			}),
		}).
		Create(slice).Error
}

func (r *periodRepository) ListDaySlices(ctx context.Context, periodID uuid.UUID) ([]model.DaySlice, error) {
	var slices []model.DaySlice
	err := GetDB(ctx, r.db).
		Where("period_report_id = ?", periodID).
		Order("slice_date ASC").
		Find(&slices).Error
	if err != nil {
		return nil, err
	}
	return slices, nil
}

func (r *periodRepository) SumHoursByCategory(ctx context.Context, periodID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Category string
		Total    decimal.Decimal
	}
	err := GetDB(ctx, r.db).
		Model(&model.DaySlice{}).
		Select("category, COALESCE(SUM(hours), 0) AS total").
		Where("period_report_id = ?", periodID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.Category] = row.Total
	}
	return totals, nil
}

func (r *periodRepository) AppendStageEvent(ctx context.Context, event *model.StageEvent) error {
	return GetDB(ctx, r.db).Create(event).Error
}

func (r *periodRepository) ListStageEvents(ctx context.Context, periodID uuid.UUID) ([]model.StageEvent, error) {
	var events []model.StageEvent
	err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("period_report_id = ?", periodID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *periodRepository) LatestStageEvent(ctx context.Context, periodID uuid.UUID) (*model.StageEvent, error) {
	var event model.StageEvent
	err := GetDB(ctx, r.db).
		Where("period_report_id = ?", periodID).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}
