package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workflow actions recorded in the audit trail.
const (
	ActionInitiate       = "initiate"
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionRequestChanges = "request_changes"
)

// ApprovalRecord is the append-only audit entry for a report workflow
// action: who acted, under which role, and what they changed. Rows are
// never updated or deleted; this is the system of record for
// "who approved what".
type ApprovalRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID    uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	ActorID     uuid.UUID `gorm:"type:uuid;not null;index" json:"actor_id"`
	Actor       *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	ActingRole  string    `gorm:"type:varchar(40);not null" json:"acting_role"`
	Action      string    `gorm:"type:varchar(30);not null;index" json:"action"`
	Comment     string    `gorm:"type:text" json:"comment"`
	// Field-level audit for request_changes: names of fields changed by
	// this action and their values before the edit. Empty otherwise.
	EditedFields   string    `gorm:"type:jsonb" json:"edited_fields,omitempty"`
	PreviousValues string    `gorm:"type:jsonb" json:"previous_values,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (r *ApprovalRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
