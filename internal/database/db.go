package database

import (
	"log"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.NptReport{},
		&model.ApprovalRecord{},
		&model.RoleAssignment{},
		&model.Delegation{},
		&model.PeriodReport{},
		&model.StageEvent{},
		&model.DaySlice{},
		&model.Notification{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
