package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleAssignment maps a (rig, role) pair to the principal who nominally
// holds it. Reassignment deactivates the previous row and inserts a new
// one, so past "who held this role when" questions stay answerable.
// At most one row per (rig, role) is active at a time.
type RoleAssignment struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RigNumber     int        `gorm:"not null;index:idx_rig_role" json:"rig_number"`
	Role          string     `gorm:"type:varchar(40);not null;index:idx_rig_role" json:"role"`
	PrincipalID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"principal_id"`
	Principal     *User      `gorm:"foreignKey:PrincipalID" json:"principal,omitempty"`
	IsActive      bool       `gorm:"not null;default:true;index" json:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a *RoleAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Delegation is a time-bounded override of a role assignment: while active
// and within [StartsAt, EndsAt), approvals that would go to the delegator
// go to the delegate instead. Scope may be restricted to one (rig, role);
// an unscoped delegation covers every role the delegator holds.
type Delegation struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DelegatorID uuid.UUID  `gorm:"type:uuid;not null;index" json:"delegator_id"`
	Delegator   *User      `gorm:"foreignKey:DelegatorID" json:"delegator,omitempty"`
	DelegateID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"delegate_id"`
	Delegate    *User      `gorm:"foreignKey:DelegateID" json:"delegate,omitempty"`
	StartsAt    time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time  `gorm:"not null" json:"ends_at"` // exclusive
	RigNumber   *int       `gorm:"index" json:"rig_number,omitempty"`
	Role        *string    `gorm:"type:varchar(40)" json:"role,omitempty"`
	IsActive    bool       `gorm:"not null;default:true;index" json:"is_active"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (d *Delegation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Covers reports whether the delegation is effective at the given
// instant: created by then, not revoked by then, and inside its window.
// Resolution for a past instant therefore cannot be changed by later
// ledger mutations.
func (d *Delegation) Covers(at time.Time) bool {
	if d.CreatedAt.After(at) {
		return false
	}
	if d.RevokedAt != nil && !d.RevokedAt.After(at) {
		return false
	}
	return !at.Before(d.StartsAt) && at.Before(d.EndsAt)
}

// Scoped reports whether the delegation is restricted to one (rig, role).
func (d *Delegation) Scoped() bool {
	return d.RigNumber != nil && d.Role != nil
}
