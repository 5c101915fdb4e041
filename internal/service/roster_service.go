package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type AssignRoleRequest struct {
	RigNumber   int    `json:"rig_number" binding:"required"`
	Role        string `json:"role" binding:"required"`
	PrincipalID string `json:"principal_id" binding:"required"`
}

type CreateDelegationRequest struct {
	DelegatorID string     `json:"delegator_id" binding:"required"`
	DelegateID  string     `json:"delegate_id" binding:"required"`
	StartsAt    time.Time  `json:"starts_at" binding:"required"`
	EndsAt      time.Time  `json:"ends_at" binding:"required"`
	RigNumber   *int       `json:"rig_number"`
	Role        *string    `json:"role"`
}

// --- Interface ---

// RosterService is the role directory plus the delegation ledger: it
// answers "who currently acts for (rig, role)" and owns the mutations,
// all of which deactivate rather than delete prior rows.
type RosterService interface {
	// EffectiveApprover resolves the principal authorized to act for
	// (rig, role) right now, after applying delegations.
	EffectiveApprover(ctx context.Context, rig int, role string) (uuid.UUID, error)
	// EffectiveApproverAt is the point-in-time variant; the result depends
	// only on assignment and delegation state at the given instant.
	EffectiveApproverAt(ctx context.Context, rig int, role string, at time.Time) (uuid.UUID, error)
	// ApproverRoleHolders returns the distinct principals holding any
	// approver role on the rig, delegations applied.
	ApproverRoleHolders(ctx context.Context, rig int, at time.Time) ([]uuid.UUID, error)

	AssignRole(ctx context.Context, req AssignRoleRequest) (*model.RoleAssignment, error)
	RevokeRole(ctx context.Context, rig int, role string) error
	ListAssignments(ctx context.Context, rig int) ([]model.RoleAssignment, error)

	CreateDelegation(ctx context.Context, req CreateDelegationRequest) (*model.Delegation, error)
	RevokeDelegation(ctx context.Context, id string) error
	ListDelegations(ctx context.Context, rig int) ([]model.Delegation, error)
}

type rosterService struct {
	roster    repository.RosterRepository
	txManager repository.TransactionManager
}

func NewRosterService(roster repository.RosterRepository, txManager repository.TransactionManager) RosterService {
	return &rosterService{roster: roster, txManager: txManager}
}

// --- Resolution ---

func (s *rosterService) EffectiveApprover(ctx context.Context, rig int, role string) (uuid.UUID, error) {
	return s.EffectiveApproverAt(ctx, rig, role, time.Now())
}

func (s *rosterService) EffectiveApproverAt(ctx context.Context, rig int, role string, at time.Time) (uuid.UUID, error) {
	// Scoped delegations are pinned to (rig, role) directly, so they apply
	// even while the role has no nominal holder.
	scoped, err := s.roster.ScopedDelegations(ctx, rig, role, at)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up scoped delegations: %w", err)
	}
	if len(scoped) > 0 {
		return pickDelegate(scoped, rig, role, at), nil
	}

	assignment, err := s.roster.AssignmentAt(ctx, rig, role, at)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("%w: no assignment for role %q on rig %d", model.ErrValidation, role, rig)
		}
		return uuid.Nil, fmt.Errorf("failed to look up role assignment: %w", err)
	}

	unscoped, err := s.roster.UnscopedDelegationsFrom(ctx, assignment.PrincipalID, at)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up delegations: %w", err)
	}
	if len(unscoped) > 0 {
		return pickDelegate(unscoped, rig, role, at), nil
	}
	return assignment.PrincipalID, nil
}

func pickDelegate(candidates []model.Delegation, rig int, role string, at time.Time) uuid.UUID {
	if len(candidates) > 1 {
		// A correctly maintained ledger never has two simultaneous
		// delegations for one scope; resolution stays deterministic by
		// taking the most recently created one.
		log.Printf("anomaly: %d overlapping delegations for rig %d role %s at %s; using most recent",
			len(candidates), rig, role, at.Format(time.RFC3339))
	}
	return candidates[0].DelegateID
}

func (s *rosterService) ApproverRoleHolders(ctx context.Context, rig int, at time.Time) ([]uuid.UUID, error) {
	assignments, err := s.roster.ActiveAssignmentsForRig(ctx, rig)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for rig %d: %w", rig, err)
	}

	seen := make(map[uuid.UUID]bool)
	var holders []uuid.UUID
	for _, assignment := range assignments {
		principal, err := s.EffectiveApproverAt(ctx, rig, assignment.Role, at)
		if err != nil {
			return nil, err
		}
		if !seen[principal] {
			seen[principal] = true
			holders = append(holders, principal)
		}
	}
	return holders, nil
}

// --- Mutations ---

func (s *rosterService) AssignRole(ctx context.Context, req AssignRoleRequest) (*model.RoleAssignment, error) {
	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid principal id", model.ErrValidation)
	}

	assignment := &model.RoleAssignment{
		RigNumber:   req.RigNumber,
		Role:        req.Role,
		PrincipalID: principalID,
		IsActive:    true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, findErr := s.roster.ActiveAssignment(txCtx, req.RigNumber, req.Role)
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check current assignment: %w", findErr)
		}
		if current != nil {
			if deactErr := s.roster.DeactivateAssignment(txCtx, current.ID, time.Now()); deactErr != nil {
				return fmt.Errorf("failed to deactivate previous assignment: %w", deactErr)
			}
		}
		if createErr := s.roster.CreateAssignment(txCtx, assignment); createErr != nil {
			return fmt.Errorf("failed to create role assignment: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

func (s *rosterService) RevokeRole(ctx context.Context, rig int, role string) error {
	assignment, err := s.roster.ActiveAssignment(ctx, rig, role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no active assignment for role %q on rig %d", model.ErrNotFound, role, rig)
		}
		return fmt.Errorf("failed to look up role assignment: %w", err)
	}
	return s.roster.DeactivateAssignment(ctx, assignment.ID, time.Now())
}

func (s *rosterService) ListAssignments(ctx context.Context, rig int) ([]model.RoleAssignment, error) {
	return s.roster.ActiveAssignmentsForRig(ctx, rig)
}

func (s *rosterService) CreateDelegation(ctx context.Context, req CreateDelegationRequest) (*model.Delegation, error) {
	delegatorID, err := uuid.Parse(req.DelegatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid delegator id", model.ErrValidation)
	}
	delegateID, err := uuid.Parse(req.DelegateID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid delegate id", model.ErrValidation)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: delegation window must end after it starts", model.ErrValidation)
	}
	if delegatorID == delegateID {
		return nil, fmt.Errorf("%w: cannot delegate to oneself", model.ErrValidation)
	}
	// Scope must name both rig and role or neither.
	if (req.RigNumber == nil) != (req.Role == nil) {
		return nil, fmt.Errorf("%w: delegation scope needs both rig and role", model.ErrValidation)
	}

	delegation := &model.Delegation{
		DelegatorID: delegatorID,
		DelegateID:  delegateID,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		RigNumber:   req.RigNumber,
		Role:        req.Role,
		IsActive:    true,
	}
	if err := s.roster.CreateDelegation(ctx, delegation); err != nil {
		return nil, fmt.Errorf("failed to create delegation: %w", err)
	}
	return delegation, nil
}

func (s *rosterService) RevokeDelegation(ctx context.Context, id string) error {
	delegationID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid delegation id", model.ErrValidation)
	}
	return s.roster.RevokeDelegation(ctx, delegationID, time.Now())
}

func (s *rosterService) ListDelegations(ctx context.Context, rig int) ([]model.Delegation, error) {
	return s.roster.ListDelegations(ctx, rig)
}
