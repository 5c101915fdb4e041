package repository

import (
	"context"
	"time"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RosterRepository stores role assignments and delegations. Both are
// versioned: revocation and reassignment deactivate rows instead of
// deleting them, so the history stays queryable. The at-variant queries
// filter on the version timestamps, never on the live is_active flag, so
// the answer for a past instant is unaffected by later mutations.
type RosterRepository interface {
	ActiveAssignment(ctx context.Context, rig int, role string) (*model.RoleAssignment, error)
	// AssignmentAt returns the assignment that held (rig, role) at the
	// given instant: created by then and not yet deactivated then.
	AssignmentAt(ctx context.Context, rig int, role string, at time.Time) (*model.RoleAssignment, error)
	ActiveAssignmentsForRig(ctx context.Context, rig int) ([]model.RoleAssignment, error)
	CreateAssignment(ctx context.Context, assignment *model.RoleAssignment) error
	DeactivateAssignment(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateDelegation(ctx context.Context, delegation *model.Delegation) error
	RevokeDelegation(ctx context.Context, id uuid.UUID, at time.Time) error
	// ScopedDelegations returns delegations pinned to (rig, role) that are
	// effective at the given instant (created by then, not revoked by
	// then, window containing it), most recently created first.
	ScopedDelegations(ctx context.Context, rig int, role string, at time.Time) ([]model.Delegation, error)
	// UnscopedDelegationsFrom returns unscoped delegations issued by the
	// given delegator effective at the given instant, most recent first.
	UnscopedDelegationsFrom(ctx context.Context, delegatorID uuid.UUID, at time.Time) ([]model.Delegation, error)
	ListDelegations(ctx context.Context, rig int) ([]model.Delegation, error)
}

type rosterRepository struct {
	db *gorm.DB
}

func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) ActiveAssignment(ctx context.Context, rig int, role string) (*model.RoleAssignment, error) {
	var assignment model.RoleAssignment
	err := GetDB(ctx, r.db).
		Where("rig_number = ? AND role = ? AND is_active = ?", rig, role, true).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *rosterRepository) AssignmentAt(ctx context.Context, rig int, role string, at time.Time) (*model.RoleAssignment, error) {
	var assignment model.RoleAssignment
	err := GetDB(ctx, r.db).
		Where("rig_number = ? AND role = ?", rig, role).
		Where("created_at <= ? AND (deactivated_at IS NULL OR deactivated_at > ?)", at, at).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *rosterRepository) ActiveAssignmentsForRig(ctx context.Context, rig int) ([]model.RoleAssignment, error) {
	var assignments []model.RoleAssignment
	err := GetDB(ctx, r.db).
		Preload("Principal").
		Where("rig_number = ? AND is_active = ?", rig, true).
		Order("role ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *rosterRepository) CreateAssignment(ctx context.Context, assignment *model.RoleAssignment) error {
	return GetDB(ctx, r.db).Create(assignment).Error
}

func (r *rosterRepository) DeactivateAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).
		Model(&model.RoleAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *rosterRepository) CreateDelegation(ctx context.Context, delegation *model.Delegation) error {
	return GetDB(ctx, r.db).Create(delegation).Error
}

func (r *rosterRepository) RevokeDelegation(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).
		Model(&model.Delegation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "revoked_at": at}).Error
}

func (r *rosterRepository) ScopedDelegations(ctx context.Context, rig int, role string, at time.Time) ([]model.Delegation, error) {
	var delegations []model.Delegation
	err := GetDB(ctx, r.db).
		Where("rig_number = ? AND role = ?", rig, role).
		Where("created_at <= ? AND (revoked_at IS NULL OR revoked_at > ?)", at, at).
		Where("starts_at <= ? AND ends_at > ?", at, at).
		Order("created_at DESC").
		Find(&delegations).Error
	if err != nil {
		return nil, err
	}
	return delegations, nil
}

func (r *rosterRepository) UnscopedDelegationsFrom(ctx context.Context, delegatorID uuid.UUID, at time.Time) ([]model.Delegation, error) {
	var delegations []model.Delegation
	err := GetDB(ctx, r.db).
		Where("delegator_id = ? AND rig_number IS NULL AND role IS NULL", delegatorID).
		Where("created_at <= ? AND (revoked_at IS NULL OR revoked_at > ?)", at, at).
		Where("starts_at <= ? AND ends_at > ?", at, at).
		Order("created_at DESC").
		Find(&delegations).Error
	if err != nil {
		return nil, err
	}
	return delegations, nil
}

func (r *rosterRepository) ListDelegations(ctx context.Context, rig int) ([]model.Delegation, error) {
	var delegations []model.Delegation
	query := GetDB(ctx, r.db).Preload("Delegator").Preload("Delegate")
	if rig != 0 {
		query = query.Where("rig_number = ? OR rig_number IS NULL", rig)
	}
	if err := query.Order("created_at DESC").Find(&delegations).Error; err != nil {
		return nil, err
	}
	return delegations, nil
}
