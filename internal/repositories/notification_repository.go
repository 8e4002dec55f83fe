package repositories

import (
	"errors"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	SaveNotification(notification *models.Notification) error
	// FindConsolidated returns the live FOLLOW_REQUEST/NEW_FOLLOWER row
	// for the pair, if any.
	FindConsolidated(senderID, recipientID uint) (*models.Notification, error)
	// DeleteBetween removes notifications of the given types with
	// sender/recipient in either direction between the two users.
	DeleteBetween(userA, userB uint, types []string) error
	DeleteFromSender(senderID, recipientID uint, types []string) error
	GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error)
	GetUnread(recipientID uint) ([]models.Notification, error)
	GetUnreadCount(recipientID uint) (int64, error)
	MarkAsRead(notificationID, recipientID uint) error
	MarkAllAsRead(recipientID uint) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(notification *models.Notification) error {
	if err := r.db.Create(notification).Error; err != nil {
		return apperr.Internal("creating notification", err)
	}
	return nil
}

func (r *postgresNotificationRepository) SaveNotification(notification *models.Notification) error {
	if err := r.db.Save(notification).Error; err != nil {
		return apperr.Internal("saving notification", err)
	}
	return nil
}

func (r *postgresNotificationRepository) FindConsolidated(senderID, recipientID uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.Where("sender_id = ? AND recipient_id = ? AND type IN ?",
		senderID, recipientID, models.ConsolidatedTypes).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("notification not found")
		}
		return nil, apperr.Internal("loading notification", err)
	}
	return &notification, nil
}

func (r *postgresNotificationRepository) DeleteBetween(userA, userB uint, types []string) error {
	err := r.db.Where("type IN ? AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
		types, userA, userB, userB, userA).
		Delete(&models.Notification{}).Error
	if err != nil {
		return apperr.Internal("deleting notifications", err)
	}
	return nil
}

func (r *postgresNotificationRepository) DeleteFromSender(senderID, recipientID uint, types []string) error {
	err := r.db.Where("sender_id = ? AND recipient_id = ? AND type IN ?", senderID, recipientID, types).
		Delete(&models.Notification{}).Error
	if err != nil {
		return apperr.Internal("deleting notifications", err)
	}
	return nil
}

func (r *postgresNotificationRepository) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	if err := r.db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("counting notifications", err)
	}

	offset := (page - 1) * limit
	err := r.db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, apperr.Internal("loading notifications", err)
	}

	return notifications, total, nil
}

func (r *postgresNotificationRepository) GetUnread(recipientID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Where("recipient_id = ? AND is_read = false", recipientID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, apperr.Internal("loading unread notifications", err)
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = false", recipientID).Count(&count).Error
	if err != nil {
		return 0, apperr.Internal("counting unread notifications", err)
	}
	return count, nil
}

func (r *postgresNotificationRepository) MarkAsRead(notificationID, recipientID uint) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return apperr.Internal("marking notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(recipientID uint) error {
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Update("is_read", true).Error
	if err != nil {
		return apperr.Internal("marking notifications read", err)
	}
	return nil
}
