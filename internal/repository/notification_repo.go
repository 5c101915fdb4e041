package repository

import (
	"context"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository enqueues notifications. CreateDeduped is used by
// the SLA/stall sweep: an insert that conflicts on the dedup key is
// silently skipped, so repeated sweeps within one time bucket emit at
// most one row per recipient.
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	// CreateDeduped inserts unless a row with the same dedup key already
	// exists. Returns true when a row was actually inserted.
	CreateDeduped(ctx context.Context, notification *model.Notification) (bool, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return GetDB(ctx, r.db).Create(notification).Error
}

func (r *notificationRepository) CreateDeduped(ctx context.Context, notification *model.Notification) (bool, error) {
	result := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(notification)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	var notifications []model.Notification
	fetch := db.Where("recipient_id = ?", recipientID)
	if unreadOnly {
		fetch = fetch.Where("is_read = ?", false)
	}
	if err := fetch.Order("created_at DESC").Offset(offset).Limit(limit).Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	result := GetDB(ctx, r.db).
		Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
