package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workflow status values for an NPT report. A pending report carries the
// role that must act next, e.g. "pending:ds".
const (
	WorkflowDraft    = "draft"
	WorkflowApproved = "approved"
	WorkflowRejected = "rejected"

	workflowPendingPrefix = "pending:"
)

// Approver role identifiers used in workflow paths and role assignments.
const (
	RoleToolPusher = "tool_pusher"
	RoleDS         = "ds"  // drilling supervisor
	RoleOSE        = "ose" // operations support engineer
	RolePME        = "pme" // plant maintenance engineer
)

// PendingStatus renders the composite pending status for a role.
func PendingStatus(role string) string {
	return workflowPendingPrefix + role
}

// PendingRole extracts the role from a "pending:<role>" status, or "" if the
// status is not a pending one.
func PendingRole(status string) string {
	if strings.HasPrefix(status, workflowPendingPrefix) {
		return strings.TrimPrefix(status, workflowPendingPrefix)
	}
	return ""
}

// IsTerminalStatus reports whether no further workflow action is allowed.
func IsTerminalStatus(status string) bool {
	return status == WorkflowApproved || status == WorkflowRejected
}

// NptReport is the approvable unit: one non-productive-time record.
// Status is mutated only through the workflow service's actions; the
// workflow path is snapshotted at initiation and never rewritten.
type NptReport struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Category            string          `gorm:"type:varchar(50);not null;index" json:"category"` // drilling, e.maintenance, ...
	RigNumber           int             `gorm:"not null;index" json:"rig_number"`                // organizational unit
	ReportDate          time.Time       `gorm:"type:date;not null" json:"report_date"`
	Hours               decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"hours"`
	System              string          `gorm:"type:varchar(100)" json:"system"`
	Equipment           string          `gorm:"type:varchar(100)" json:"equipment"`
	Contractor          string          `gorm:"type:varchar(100)" json:"contractor"`
	Description         string          `gorm:"type:text" json:"description"`
	WorkflowStatus      string          `gorm:"type:varchar(40);not null;default:'draft';index" json:"workflow_status"`
	CurrentApproverRole *string         `gorm:"type:varchar(40)" json:"current_approver_role"` // nil unless pending
	WorkflowPath        string          `gorm:"type:jsonb" json:"workflow_path"`               // role sequence snapshot
	InitiatedBy         *uuid.UUID      `gorm:"type:uuid;index" json:"initiated_by"`
	Initiator           *User           `gorm:"foreignKey:InitiatedBy" json:"initiator,omitempty"`
	InitiatedAt         *time.Time      `json:"initiated_at"`
	RejectionReason     string          `gorm:"type:text" json:"rejection_reason"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (r *NptReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PathRoles decodes the snapshotted workflow path.
func (r *NptReport) PathRoles() ([]string, error) {
	if r.WorkflowPath == "" {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(r.WorkflowPath), &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// SetPathRoles stores the resolved role sequence as the immutable snapshot.
func (r *NptReport) SetPathRoles(roles []string) error {
	raw, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	r.WorkflowPath = string(raw)
	return nil
}
