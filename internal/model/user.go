package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a principal: someone who can initiate reports or act in an
// approver role. Role here is the account's base role claim carried in the
// JWT; who may approve a given report is decided by the role roster and
// delegation ledger, not by this field.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	Role      string         `gorm:"type:varchar(50);not null" json:"role"` // admin, tool_pusher, ds, ose, pme
	RigNumber int            `gorm:"index" json:"rig_number"`               // home organizational unit
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
