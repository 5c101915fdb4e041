package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type UpsertDaySliceRequest struct {
	// PeriodKey and RigNumber come from the route, not the body.
	PeriodKey string          `json:"-"` // "2025-05"
	RigNumber int             `json:"-"`
	SliceDate time.Time       `json:"slice_date" binding:"required"`
	Hours     decimal.Decimal `json:"hours" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	ReportIDs []string        `json:"report_ids"`
	DayStatus string          `json:"day_status"`
}

type PeriodActionRequest struct {
	Comment string `json:"comment"`
}

// --- Interface ---

// PeriodService is the lifecycle aggregator: it rolls day slices into
// monthly period reports and drives their Draft→Submitted→
// Approved/Rejected lifecycle, independent of per-report approval. Every
// transition appends a stage event in the same transaction.
type PeriodService interface {
	UpsertDaySlice(ctx context.Context, req UpsertDaySliceRequest, callerID string) (*model.PeriodReport, error)
	Submit(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error)
	StartReview(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error)
	Approve(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error)
	Reject(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error)
	Resubmit(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error)

	GetPeriod(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error)
	ListDaySlices(ctx context.Context, periodKey string, rig int) ([]model.DaySlice, error)
	History(ctx context.Context, periodKey string, rig int) ([]model.StageEvent, error)
}

type periodService struct {
	periods       repository.PeriodRepository
	notifications repository.NotificationRepository
	roster        RosterService
	txManager     repository.TransactionManager
	events        EventPublisher
	now           func() time.Time
}

func NewPeriodService(
	periods repository.PeriodRepository,
	notifications repository.NotificationRepository,
	roster RosterService,
	txManager repository.TransactionManager,
	events EventPublisher,
) PeriodService {
	return &periodService{
		periods:       periods,
		notifications: notifications,
		roster:        roster,
		txManager:     txManager,
		events:        events,
		now:           time.Now,
	}
}

// --- Implementation ---

func (s *periodService) UpsertDaySlice(ctx context.Context, req UpsertDaySliceRequest, callerID string) (*model.PeriodReport, error) {
	if req.Hours.IsNegative() {
		return nil, fmt.Errorf("%w: hours must not be negative", model.ErrValidation)
	}
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid caller id", model.ErrValidation)
	}

	var period *model.PeriodReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		period, findErr = s.periods.FindByKeyForUpdate(txCtx, req.PeriodKey, req.RigNumber)
		if findErr != nil {
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load period report: %w", findErr)
			}
			// First write for this (period, rig) creates the report in Draft.
			period = &model.PeriodReport{
				PeriodKey: req.PeriodKey,
				RigNumber: req.RigNumber,
				Status:    model.PeriodDraft,
				SlaDays:   model.DefaultSlaDays,
				CreatedBy: &caller,
			}
			if createErr := s.periods.Create(txCtx, period); createErr != nil {
				return fmt.Errorf("failed to create period report: %w", createErr)
			}
		}
		if period.Status == model.PeriodApproved {
			return fmt.Errorf("%w: period %s rig %d is approved and locked", model.ErrInvalidTransition, req.PeriodKey, req.RigNumber)
		}

		slice := &model.DaySlice{
			PeriodReportID: period.ID,
			SliceDate:      req.SliceDate,
			Hours:          req.Hours,
			Category:       NormalizeCategory(req.Category),
			DayStatus:      req.DayStatus,
		}
		if slice.DayStatus == "" {
			slice.DayStatus = "reported"
		}
		if len(req.ReportIDs) > 0 {
			raw, marshalErr := json.Marshal(req.ReportIDs)
			if marshalErr != nil {
				return fmt.Errorf("failed to encode report ids: %w", marshalErr)
			}
			slice.ReportIDs = string(raw)
		}
		if upsertErr := s.periods.UpsertDaySlice(txCtx, slice); upsertErr != nil {
			return fmt.Errorf("failed to upsert day slice: %w", upsertErr)
		}

		// Recompute-after-write under the period row lock. Touches only the
		// totals, never the status.
		return s.recomputeTotals(txCtx, period)
	})
	if err != nil {
		return nil, err
	}

	return period, nil
}

func (s *periodService) Submit(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error) {
	return s.transition(ctx, periodKey, rig, callerID, func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error) {
		if period.Status != model.PeriodDraft {
			return "", fmt.Errorf("%w: submit requires a Draft period, status is %s", model.ErrInvalidTransition, period.Status)
		}
		if err := s.requireCreator(period, caller); err != nil {
			return "", err
		}
		now := s.now()
		period.Status = model.PeriodSubmitted
		period.SubmittedAt = &now
		if err := s.notifyApprovers(txCtx, period, model.RuleSubmitted,
			fmt.Sprintf("Period report %s for rig %d submitted for review", period.PeriodKey, period.RigNumber)); err != nil {
			return "", err
		}
		return model.StageSubmitted, nil
	}, req.Comment)
}

func (s *periodService) StartReview(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error) {
	return s.transition(ctx, periodKey, rig, callerID, func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error) {
		if period.Status != model.PeriodSubmitted {
			return "", fmt.Errorf("%w: review starts from Submitted, status is %s", model.ErrInvalidTransition, period.Status)
		}
		if err := s.requireApprover(txCtx, period, caller); err != nil {
			return "", err
		}
		period.Status = model.PeriodInReview
		return model.StageReviewStarted, nil
	}, req.Comment)
}

func (s *periodService) Approve(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error) {
	return s.transition(ctx, periodKey, rig, callerID, func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error) {
		if !period.Open() {
			return "", fmt.Errorf("%w: approve requires Submitted or In_Review, status is %s", model.ErrInvalidTransition, period.Status)
		}
		if err := s.requireApprover(txCtx, period, caller); err != nil {
			return "", err
		}
		now := s.now()
		period.Status = model.PeriodApproved
		period.ApprovedBy = &caller
		period.ApprovedAt = &now
		if err := s.notifyCreator(txCtx, period, model.RuleApprovalComplete,
			fmt.Sprintf("Period report %s for rig %d approved", period.PeriodKey, period.RigNumber)); err != nil {
			return "", err
		}
		return model.StageApproved, nil
	}, req.Comment)
}

func (s *periodService) Reject(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error) {
	if req.Comment == "" {
		return nil, fmt.Errorf("%w: reject requires a reason", model.ErrValidation)
	}
	return s.transition(ctx, periodKey, rig, callerID, func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error) {
		if !period.Open() {
			return "", fmt.Errorf("%w: reject requires Submitted or In_Review, status is %s", model.ErrInvalidTransition, period.Status)
		}
		if err := s.requireApprover(txCtx, period, caller); err != nil {
			return "", err
		}
		period.Status = model.PeriodRejected
		period.RejectionReason = req.Comment
		if err := s.notifyCreator(txCtx, period, model.RuleRejected,
			fmt.Sprintf("Period report %s for rig %d rejected: %s", period.PeriodKey, period.RigNumber, req.Comment)); err != nil {
			return "", err
		}
		return model.StageRejected, nil
	}, req.Comment)
}

func (s *periodService) Resubmit(ctx context.Context, periodKey string, rig int, callerID string, req PeriodActionRequest) (*model.PeriodReport, error) {
	return s.transition(ctx, periodKey, rig, callerID, func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error) {
		if period.Status != model.PeriodRejected {
			return "", fmt.Errorf("%w: resubmit requires a Rejected period, status is %s", model.ErrInvalidTransition, period.Status)
		}
		if err := s.requireCreator(period, caller); err != nil {
			return "", err
		}
		now := s.now()
		period.Status = model.PeriodSubmitted
		period.RejectionReason = ""
		period.SubmittedAt = &now
		if err := s.notifyApprovers(txCtx, period, model.RuleSubmitted,
			fmt.Sprintf("Period report %s for rig %d resubmitted for review", period.PeriodKey, period.RigNumber)); err != nil {
			return "", err
		}
		return model.StageResubmitted, nil
	}, req.Comment)
}

func (s *periodService) GetPeriod(ctx context.Context, periodKey string, rig int) (*model.PeriodReport, error) {
	period, err := s.periods.FindByKey(ctx, periodKey, rig)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: period %s rig %d", model.ErrNotFound, periodKey, rig)
		}
		return nil, fmt.Errorf("failed to load period report: %w", err)
	}
	return period, nil
}

func (s *periodService) ListDaySlices(ctx context.Context, periodKey string, rig int) ([]model.DaySlice, error) {
	period, err := s.GetPeriod(ctx, periodKey, rig)
	if err != nil {
		return nil, err
	}
	return s.periods.ListDaySlices(ctx, period.ID)
}

func (s *periodService) History(ctx context.Context, periodKey string, rig int) ([]model.StageEvent, error) {
	period, err := s.GetPeriod(ctx, periodKey, rig)
	if err != nil {
		return nil, err
	}
	return s.periods.ListStageEvents(ctx, period.ID)
}

// --- Internals ---

// transition runs one period lifecycle action: lock the period row, let
// decide validate and mutate it, then persist the update and append the
// stage event decide names, all in one transaction.
func (s *periodService) transition(
	ctx context.Context,
	periodKey string, rig int, callerID string,
	decide func(txCtx context.Context, period *model.PeriodReport, caller uuid.UUID) (string, error),
	comment string,
) (*model.PeriodReport, error) {
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid caller id", model.ErrValidation)
	}

	var period *model.PeriodReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		period, findErr = s.periods.FindByKeyForUpdate(txCtx, periodKey, rig)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: period %s rig %d", model.ErrNotFound, periodKey, rig)
			}
			return fmt.Errorf("failed to load period report: %w", findErr)
		}

		stage, decideErr := decide(txCtx, period, caller)
		if decideErr != nil {
			return decideErr
		}

		if updateErr := s.periods.Update(txCtx, period); updateErr != nil {
			return fmt.Errorf("failed to update period report: %w", updateErr)
		}
		event := &model.StageEvent{
			PeriodReportID: period.ID,
			Stage:          stage,
			ActorID:        &caller,
			Comment:        comment,
		}
		if appendErr := s.periods.AppendStageEvent(txCtx, event); appendErr != nil {
			return fmt.Errorf("failed to append stage event: %w", appendErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish("period_lifecycle", period)
	}
	return period, nil
}

func (s *periodService) recomputeTotals(ctx context.Context, period *model.PeriodReport) error {
	totals, err := s.periods.SumHoursByCategory(ctx, period.ID)
	if err != nil {
		return fmt.Errorf("failed to sum day slice hours: %w", err)
	}
	if err := period.SetHoursByCategory(totals); err != nil {
		return fmt.Errorf("failed to encode category totals: %w", err)
	}
	if err := s.periods.Update(ctx, period); err != nil {
		return fmt.Errorf("failed to store recomputed totals: %w", err)
	}
	return nil
}

func (s *periodService) requireCreator(period *model.PeriodReport, caller uuid.UUID) error {
	if period.CreatedBy == nil || *period.CreatedBy != caller {
		return fmt.Errorf("%w: only the period creator may do this", model.ErrUnauthorized)
	}
	return nil
}

// requireApprover accepts any caller who resolves as the effective holder
// of at least one approver role on the period's rig.
func (s *periodService) requireApprover(ctx context.Context, period *model.PeriodReport, caller uuid.UUID) error {
	holders, err := s.roster.ApproverRoleHolders(ctx, period.RigNumber, s.now())
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if holder == caller {
			return nil
		}
	}
	return fmt.Errorf("%w: caller holds no approver role on rig %d", model.ErrUnauthorized, period.RigNumber)
}

func (s *periodService) notifyApprovers(ctx context.Context, period *model.PeriodReport, rule, message string) error {
	holders, err := s.roster.ApproverRoleHolders(ctx, period.RigNumber, s.now())
	if err != nil {
		return err
	}
	for _, holder := range holders {
		notification := &model.Notification{
			RecipientID: holder,
			RefID:       period.ID,
			RefType:     model.RefPeriod,
			RuleTag:     rule,
			Message:     message,
			Channel:     model.ChannelInApp,
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}
	return nil
}

func (s *periodService) notifyCreator(ctx context.Context, period *model.PeriodReport, rule, message string) error {
	if period.CreatedBy == nil {
		return nil
	}
	notification := &model.Notification{
		RecipientID: *period.CreatedBy,
		RefID:       period.ID,
		RefType:     model.RefPeriod,
		RuleTag:     rule,
		Message:     message,
		Channel:     model.ChannelInApp,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}
