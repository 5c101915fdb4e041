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

type CreateReportRequest struct {
	Category    string          `json:"category" binding:"required"`
	RigNumber   int             `json:"rig_number" binding:"required"`
	ReportDate  time.Time       `json:"report_date" binding:"required"`
	Hours       decimal.Decimal `json:"hours" binding:"required"`
	System      string          `json:"system"`
	Equipment   string          `json:"equipment"`
	Contractor  string          `json:"contractor"`
	Description string          `json:"description"`
}

type ActionRequest struct {
	Comment string `json:"comment"`
	// Patch carries the field edits of a request_changes action, keyed by
	// json field name.
	Patch map[string]interface{} `json:"patch,omitempty"`
}

// EventPublisher pushes workflow events to connected dashboards. Optional;
// a nil publisher disables broadcasting.
type EventPublisher interface {
	Publish(event string, payload interface{})
}

// --- Interface ---

// WorkflowService is the approval state machine for NPT reports. Every
// mutating action runs one transaction holding a row lock on the report:
// validate caller against the role the report is pending at, transition,
// and append exactly one approval record. Two racing approvers resolve to
// one winner; the loser sees an explicit error, never a silent no-op.
type WorkflowService interface {
	CreateReport(ctx context.Context, req CreateReportRequest, creatorID string) (*model.NptReport, error)
	Initiate(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error)
	Approve(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error)
	Reject(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error)
	RequestChanges(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error)

	GetReport(ctx context.Context, reportID string) (*model.NptReport, error)
	ListReports(ctx context.Context, filter repository.ReportFilter, page, limit int) ([]model.NptReport, int64, error)
	AuditTrail(ctx context.Context, reportID string) ([]model.ApprovalRecord, error)
}

type workflowService struct {
	reports       repository.ReportRepository
	records       repository.ApprovalRecordRepository
	notifications repository.NotificationRepository
	roster        RosterService
	txManager     repository.TransactionManager
	events        EventPublisher
	now           func() time.Time
}

func NewWorkflowService(
	reports repository.ReportRepository,
	records repository.ApprovalRecordRepository,
	notifications repository.NotificationRepository,
	roster RosterService,
	txManager repository.TransactionManager,
	events EventPublisher,
) WorkflowService {
	return &workflowService{
		reports:       reports,
		records:       records,
		notifications: notifications,
		roster:        roster,
		txManager:     txManager,
		events:        events,
		now:           time.Now,
	}
}

// --- Implementation ---

func (s *workflowService) CreateReport(ctx context.Context, req CreateReportRequest, creatorID string) (*model.NptReport, error) {
	if req.Hours.IsNegative() {
		return nil, fmt.Errorf("%w: hours must not be negative", model.ErrValidation)
	}

	report := &model.NptReport{
		Category:       NormalizeCategory(req.Category),
		RigNumber:      req.RigNumber,
		ReportDate:     req.ReportDate,
		Hours:          req.Hours,
		System:         req.System,
		Equipment:      req.Equipment,
		Contractor:     req.Contractor,
		Description:    req.Description,
		WorkflowStatus: model.WorkflowDraft,
	}
	if creatorID != "" {
		creator, err := uuid.Parse(creatorID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid creator id", model.ErrValidation)
		}
		report.InitiatedBy = &creator
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

func (s *workflowService) Initiate(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error) {
	return s.act(ctx, reportID, callerID, func(txCtx context.Context, report *model.NptReport, caller uuid.UUID) (*model.ApprovalRecord, error) {
		if report.WorkflowStatus != model.WorkflowDraft {
			return nil, fmt.Errorf("%w: initiate requires a draft report, status is %s", model.ErrInvalidTransition, report.WorkflowStatus)
		}

		path := ResolveWorkflowPath(report.Category)
		now := s.now()

		// The initiator must hold the first role of the path.
		first, err := s.roster.EffectiveApproverAt(txCtx, report.RigNumber, path[0], now)
		if err != nil {
			return nil, err
		}
		if first != caller {
			return nil, fmt.Errorf("%w: initiate requires the %s role on rig %d", model.ErrUnauthorized, path[0], report.RigNumber)
		}

		// The workflow cannot start if nobody can act on the next stage.
		if _, err := s.roster.EffectiveApproverAt(txCtx, report.RigNumber, path[1], now); err != nil {
			return nil, err
		}

		if err := report.SetPathRoles(path); err != nil {
			return nil, fmt.Errorf("failed to snapshot workflow path: %w", err)
		}
		nextRole := path[1]
		report.WorkflowStatus = model.PendingStatus(nextRole)
		report.CurrentApproverRole = &nextRole
		report.InitiatedBy = &caller
		report.InitiatedAt = &now

		return &model.ApprovalRecord{
			ReportID:   report.ID,
			ActorID:    caller,
			ActingRole: path[0],
			Action:     model.ActionInitiate,
			Comment:    req.Comment,
		}, nil
	})
}

func (s *workflowService) Approve(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error) {
	return s.act(ctx, reportID, callerID, func(txCtx context.Context, report *model.NptReport, caller uuid.UUID) (*model.ApprovalRecord, error) {
		role, err := s.requirePendingApprover(txCtx, report, caller)
		if err != nil {
			return nil, err
		}

		path, err := report.PathRoles()
		if err != nil {
			return nil, fmt.Errorf("failed to decode workflow path: %w", err)
		}
		idx := roleIndex(path, role)
		if idx < 0 {
			return nil, fmt.Errorf("%w: pending role %s is not on the snapshotted path", model.ErrInvalidTransition, role)
		}

		if idx+1 < len(path) {
			nextRole := path[idx+1]
			// Block rather than skip a role nobody can act for.
			if _, err := s.roster.EffectiveApproverAt(txCtx, report.RigNumber, nextRole, s.now()); err != nil {
				return nil, err
			}
			report.WorkflowStatus = model.PendingStatus(nextRole)
			report.CurrentApproverRole = &nextRole
		} else {
			report.WorkflowStatus = model.WorkflowApproved
			report.CurrentApproverRole = nil
			if report.InitiatedBy != nil {
				notification := &model.Notification{
					RecipientID: *report.InitiatedBy,
					RefID:       report.ID,
					RefType:     model.RefReport,
					RuleTag:     model.RuleApprovalComplete,
					Message:     fmt.Sprintf("NPT report for rig %d on %s is fully approved", report.RigNumber, report.ReportDate.Format("2006-01-02")),
					Channel:     model.ChannelInApp,
				}
				if err := s.notifications.Create(txCtx, notification); err != nil {
					return nil, fmt.Errorf("failed to enqueue notification: %w", err)
				}
			}
		}

		return &model.ApprovalRecord{
			ReportID:   report.ID,
			ActorID:    caller,
			ActingRole: role,
			Action:     model.ActionApprove,
			Comment:    req.Comment,
		}, nil
	})
}

func (s *workflowService) Reject(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error) {
	if req.Comment == "" {
		return nil, fmt.Errorf("%w: reject requires a comment", model.ErrValidation)
	}
	return s.act(ctx, reportID, callerID, func(txCtx context.Context, report *model.NptReport, caller uuid.UUID) (*model.ApprovalRecord, error) {
		role, err := s.requirePendingApprover(txCtx, report, caller)
		if err != nil {
			return nil, err
		}

		report.WorkflowStatus = model.WorkflowRejected
		report.CurrentApproverRole = nil
		report.RejectionReason = req.Comment

		if report.InitiatedBy != nil {
			notification := &model.Notification{
				RecipientID: *report.InitiatedBy,
				RefID:       report.ID,
				RefType:     model.RefReport,
				RuleTag:     model.RuleRejected,
				Message:     fmt.Sprintf("NPT report for rig %d was rejected: %s", report.RigNumber, req.Comment),
				Channel:     model.ChannelInApp,
			}
			if err := s.notifications.Create(txCtx, notification); err != nil {
				return nil, fmt.Errorf("failed to enqueue notification: %w", err)
			}
		}

		return &model.ApprovalRecord{
			ReportID:   report.ID,
			ActorID:    caller,
			ActingRole: role,
			Action:     model.ActionReject,
			Comment:    req.Comment,
		}, nil
	})
}

func (s *workflowService) RequestChanges(ctx context.Context, reportID, callerID string, req ActionRequest) (*model.NptReport, error) {
	if len(req.Patch) == 0 {
		return nil, fmt.Errorf("%w: request_changes requires a field patch", model.ErrValidation)
	}
	return s.act(ctx, reportID, callerID, func(txCtx context.Context, report *model.NptReport, caller uuid.UUID) (*model.ApprovalRecord, error) {
		role, err := s.requirePendingApprover(txCtx, report, caller)
		if err != nil {
			return nil, err
		}

		// Annotation-and-patch, not a transition: the status stays put and
		// the edited fields land in the audit trail with their prior values.
		edited, previous, err := applyReportPatch(report, req.Patch)
		if err != nil {
			return nil, err
		}

		editedRaw, err := json.Marshal(edited)
		if err != nil {
			return nil, fmt.Errorf("failed to encode edited fields: %w", err)
		}
		previousRaw, err := json.Marshal(previous)
		if err != nil {
			return nil, fmt.Errorf("failed to encode previous values: %w", err)
		}

		return &model.ApprovalRecord{
			ReportID:       report.ID,
			ActorID:        caller,
			ActingRole:     role,
			Action:         model.ActionRequestChanges,
			Comment:        req.Comment,
			EditedFields:   string(editedRaw),
			PreviousValues: string(previousRaw),
		}, nil
	})
}

func (s *workflowService) GetReport(ctx context.Context, reportID string) (*model.NptReport, error) {
	id, err := uuid.Parse(reportID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid report id", model.ErrValidation)
	}
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: report %s", model.ErrNotFound, reportID)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return report, nil
}

func (s *workflowService) ListReports(ctx context.Context, filter repository.ReportFilter, page, limit int) ([]model.NptReport, int64, error) {
	return s.reports.List(ctx, filter, page, limit)
}

func (s *workflowService) AuditTrail(ctx context.Context, reportID string) ([]model.ApprovalRecord, error) {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.records.ListByReport(ctx, report.ID)
}

// --- Internals ---

// act runs one workflow action: lock the report row, let decide validate
// and mutate it, then persist the update and its approval record in the
// same transaction. decide returns the single record to append.
func (s *workflowService) act(
	ctx context.Context,
	reportID, callerID string,
	decide func(txCtx context.Context, report *model.NptReport, caller uuid.UUID) (*model.ApprovalRecord, error),
) (*model.NptReport, error) {
	id, err := uuid.Parse(reportID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid report id", model.ErrValidation)
	}
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid caller id", model.ErrValidation)
	}

	var report *model.NptReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		report, findErr = s.reports.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: report %s", model.ErrNotFound, reportID)
			}
			return fmt.Errorf("failed to load report: %w", findErr)
		}

		record, decideErr := decide(txCtx, report, caller)
		if decideErr != nil {
			return decideErr
		}

		if updateErr := s.reports.Update(txCtx, report); updateErr != nil {
			return fmt.Errorf("failed to update report: %w", updateErr)
		}
		if appendErr := s.records.Append(txCtx, record); appendErr != nil {
			return fmt.Errorf("failed to append approval record: %w", appendErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish("report_workflow", report)
	}
	return report, nil
}

// requirePendingApprover checks that the report is pending and that the
// caller resolves, through the delegation ledger, to the role the report
// is pending at. Closest-role fallbacks are deliberately absent.
func (s *workflowService) requirePendingApprover(ctx context.Context, report *model.NptReport, caller uuid.UUID) (string, error) {
	if model.IsTerminalStatus(report.WorkflowStatus) {
		return "", fmt.Errorf("%w: workflow already closed as %s", model.ErrInvalidTransition, report.WorkflowStatus)
	}
	if report.CurrentApproverRole == nil {
		return "", fmt.Errorf("%w: report is not pending approval", model.ErrInvalidTransition)
	}

	role := *report.CurrentApproverRole
	resolved, err := s.roster.EffectiveApproverAt(ctx, report.RigNumber, role, s.now())
	if err != nil {
		return "", err
	}
	if resolved != caller {
		return "", fmt.Errorf("%w: action requires the %s role on rig %d", model.ErrUnauthorized, role, report.RigNumber)
	}
	return role, nil
}

func roleIndex(path []string, role string) int {
	for i, r := range path {
		if r == role {
			return i
		}
	}
	return -1
}

// applyReportPatch applies a request_changes field patch and returns the
// edited field names with their pre-edit values for the audit record.
func applyReportPatch(report *model.NptReport, patch map[string]interface{}) ([]string, map[string]interface{}, error) {
	edited := make([]string, 0, len(patch))
	previous := make(map[string]interface{}, len(patch))

	for field, value := range patch {
		switch field {
		case "description":
			text, ok := value.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: description must be a string", model.ErrValidation)
			}
			previous[field] = report.Description
			report.Description = text
		case "system":
			text, ok := value.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: system must be a string", model.ErrValidation)
			}
			previous[field] = report.System
			report.System = text
		case "equipment":
			text, ok := value.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: equipment must be a string", model.ErrValidation)
			}
			previous[field] = report.Equipment
			report.Equipment = text
		case "contractor":
			text, ok := value.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: contractor must be a string", model.ErrValidation)
			}
			previous[field] = report.Contractor
			report.Contractor = text
		case "hours":
			hours, err := decimalFromPatchValue(value)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: hours must be numeric", model.ErrValidation)
			}
			if hours.IsNegative() {
				return nil, nil, fmt.Errorf("%w: hours must not be negative", model.ErrValidation)
			}
			previous[field] = report.Hours.String()
			report.Hours = hours
		default:
			return nil, nil, fmt.Errorf("%w: field %q cannot be patched", model.ErrValidation, field)
		}
		edited = append(edited, field)
	}

	return edited, previous, nil
}

func decimalFromPatchValue(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", value)
	}
}
