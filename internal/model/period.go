package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Period report lifecycle statuses.
const (
	PeriodDraft     = "Draft"
	PeriodSubmitted = "Submitted"
	PeriodInReview  = "In_Review"
	PeriodApproved  = "Approved"
	PeriodRejected  = "Rejected"
)

// Period lifecycle stages recorded as StageEvents. Transitions use the
// target status name; review opening gets its own stage.
const (
	StageSubmitted     = "submitted"
	StageReviewStarted = "review_started"
	StageApproved      = "approved"
	StageRejected      = "rejected"
	StageResubmitted   = "resubmitted"
)

// DefaultSlaDays is the review SLA applied to a lazily created period.
const DefaultSlaDays = 7

// PeriodReport rolls one month of day-level NPT entries for a rig into a
// single review unit with its own Draft→Submitted→Approved/Rejected
// lifecycle, independent of per-report approval. Created lazily by the
// first Day Slice write for its (period, rig).
type PeriodReport struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodKey       string          `gorm:"type:varchar(7);not null;uniqueIndex:idx_period_rig" json:"period_key"` // "2025-05"
	RigNumber       int             `gorm:"not null;uniqueIndex:idx_period_rig" json:"rig_number"`
	Status          string          `gorm:"type:varchar(20);not null;default:'Draft';index" json:"status"`
	SlaDays         int             `gorm:"not null;default:7" json:"sla_days"`
	CategoryHours   string          `gorm:"type:jsonb" json:"category_hours"` // category -> summed hours
	TotalHours      decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0" json:"total_hours"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid;index" json:"created_by"`
	Creator         *User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	SubmittedAt     *time.Time      `json:"submitted_at"`
	ApprovedBy      *uuid.UUID      `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *PeriodReport) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Open reports whether the period still awaits a review decision.
func (p *PeriodReport) Open() bool {
	return p.Status == PeriodSubmitted || p.Status == PeriodInReview
}

// HoursByCategory decodes the aggregate totals map.
func (p *PeriodReport) HoursByCategory() (map[string]decimal.Decimal, error) {
	if p.CategoryHours == "" {
		return map[string]decimal.Decimal{}, nil
	}
	var totals map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(p.CategoryHours), &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// SetHoursByCategory stores the recomputed aggregate totals.
func (p *PeriodReport) SetHoursByCategory(totals map[string]decimal.Decimal) error {
	raw, err := json.Marshal(totals)
	if err != nil {
		return err
	}
	p.CategoryHours = string(raw)
	sum := decimal.Zero
	for _, h := range totals {
		sum = sum.Add(h)
	}
	p.TotalHours = sum
	return nil
}

// StageEvent is the append-only audit entry for a period report lifecycle
// transition, the period-level analogue of ApprovalRecord.
type StageEvent struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodReportID uuid.UUID  `gorm:"type:uuid;not null;index" json:"period_report_id"`
	Stage          string     `gorm:"type:varchar(30);not null" json:"stage"`
	ActorID        *uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	Actor          *User      `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Comment        string     `gorm:"type:text" json:"comment"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}

func (e *StageEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// DaySlice is one calendar day's contribution to a period report. Slices
// are upserted by (period report, date); period totals are the sum of
// slice hours grouped by category.
type DaySlice struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodReportID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_period_date" json:"period_report_id"`
	SliceDate      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_period_date" json:"slice_date"`
	Hours          decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"hours"`
	Category       string          `gorm:"type:varchar(50);not null" json:"category"`
	ReportIDs      string          `gorm:"type:jsonb" json:"report_ids"` // underlying detail report ids
	DayStatus      string          `gorm:"type:varchar(20);not null;default:'reported'" json:"day_status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (s *DaySlice) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
