package services

import (
	"gorm.io/gorm"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/pagination"
)

type notificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB) NotificationServicer {
	return &notificationService{db: db}
}

// ListNotifications returns the user's notifications, newest first.
func (s *notificationService) ListNotifications(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Notification], error) {
	q := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.Notification](q, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
