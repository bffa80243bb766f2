package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/notify"
)

// AdminPanelMessage is shown to administrators on the panel.
const AdminPanelMessage = "You have access to this page"

type adminService struct {
	db          *gorm.DB
	userService UserServicer
	dispatcher  notify.Dispatcher
}

// NewAdminService creates a new AdminServicer.
func NewAdminService(db *gorm.DB, userService UserServicer, dispatcher notify.Dispatcher) AdminServicer {
	if dispatcher == nil {
		dispatcher = notify.Discard{}
	}
	return &adminService{db: db, userService: userService, dispatcher: dispatcher}
}

// Panel counts the stored entities.
func (s *adminService) Panel() (*AdminPanel, error) {
	panel := &AdminPanel{Message: AdminPanelMessage}

	counts := []struct {
		query *gorm.DB
		dst   *int64
	}{
		{s.db.Model(&models.User{}), &panel.Users},
		{s.db.Model(&models.Category{}), &panel.Categories},
		{s.db.Model(&models.Transaction{}), &panel.Transactions},
		{s.db.Model(&models.Transaction{}).Where("applied_at IS NULL"), &panel.PlannedDue},
		{s.db.Model(&models.Notification{}), &panel.Notifications},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return panel, nil
}

// Broadcast mails text to every user with an email address and returns the
// number of recipients. Delivery failures are logged by the dispatcher.
func (s *adminService) Broadcast(ctx context.Context, subject, text string) (int, error) {
	if text == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "text is required")
	}

	var users []models.User
	if err := s.db.Where("email IS NOT NULL AND email <> ''").Order("id").Find(&users).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	intents := make([]notify.Intent, 0, len(users))
	for i := range users {
		intents = append(intents, notify.ForUser(&users[i], subject, text))
	}
	s.dispatcher.Dispatch(ctx, intents...)

	return len(intents), nil
}

// DeleteEntity removes an entity by kind and id.
func (s *adminService) DeleteEntity(kind models.EntityKind, id uint) error {
	switch kind {
	case models.EntityUser:
		return s.userService.DeleteUser(id)

	case models.EntityCategory:
		var category models.Category
		if err := s.db.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrCategoryNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return deleteCategory(s.db, &category)

	case models.EntityTransaction:
		result := s.db.Delete(kind.NewModel(), id)
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrTransactionNotFound
		}
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrUnknownEntity, "unknown entity kind: "+string(kind))
}
