package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification rule tags.
const (
	RuleOverSla          = "over_sla"
	RuleStalled          = "stalled"
	RuleApprovalComplete = "approval_complete"
	RuleSubmitted        = "submitted"
	RuleRejected         = "rejected"
)

// Notification reference kinds.
const (
	RefReport = "report"
	RefPeriod = "period"
)

// Notification delivery channels. The engine only enqueues rows; delivery
// is a collaborator concern.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Notification is a queued message for a principal about a report or
// period. Sweep-emitted rows carry a DedupKey (ref + rule + recipient +
// time bucket) so repeated sweeps over a still-overdue period collapse to
// one row per bucket.
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Recipient   *User     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	RefID       uuid.UUID `gorm:"type:uuid;not null;index" json:"ref_id"`
	RefType     string    `gorm:"type:varchar(10);not null" json:"ref_type"`
	RuleTag     string    `gorm:"type:varchar(30);not null;index" json:"rule_tag"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Channel     string    `gorm:"type:varchar(20);not null;default:'in_app'" json:"channel"`
	IsRead      bool      `gorm:"not null;default:false;index" json:"is_read"`
	DedupKey    *string   `gorm:"type:varchar(160);uniqueIndex" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
