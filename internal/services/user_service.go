package services

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// SignUp registers a new user with a zero balance.
func (s *userService) SignUp(username, password string, email *string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "username and password are required")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateUsername
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Username: username,
		Password: string(hashedPassword),
		Email:    normalizeEmail(email),
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// Authenticate returns the user when the credentials match.
func (s *userService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// UpdateSettings changes the email and threshold settings.
func (s *userService) UpdateSettings(userID uint, update SettingsUpdate) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Email != nil {
		updates["email"] = normalizeEmail(update.Email)
	}
	if update.ThresholdEnabled != nil {
		updates["threshold_enabled"] = *update.ThresholdEnabled
	}
	if update.ThresholdValue != nil {
		if update.ThresholdValue.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "threshold value must not be negative")
		}
		switch err := ledger.CheckMoney(*update.ThresholdValue); {
		case errors.Is(err, ledger.ErrMoneyPrecision):
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "threshold value must have at most two decimal places")
		case errors.Is(err, ledger.ErrMoneyRange):
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "threshold value must be less than "+ledger.MaxMoney.String())
		}
		updates["threshold_value"] = *update.ThresholdValue
	}

	if len(updates) > 0 {
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetUserByID(userID)
}

// DeleteUser removes the user with all categories, transactions and
// notifications. Soft-deleted transactions are removed too.
func (s *userService) DeleteUser(userID uint) error {
	if _, err := s.GetUserByID(userID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Category{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// EnsureAdmin creates the admin account or promotes an existing user with
// the same username. The password of an existing user is not changed.
func (s *userService) EnsureAdmin(username, password, email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	switch {
	case err == nil:
		if !user.IsAdmin {
			if err := s.db.Model(&user).Update("is_admin", true).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			user.IsAdmin = true
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	created, err := s.SignUp(username, password, &email)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(created).Update("is_admin", true).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	created.IsAdmin = true
	return created, nil
}

// normalizeEmail trims the address and maps blank input to nil.
func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*email))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
