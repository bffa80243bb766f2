package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"budgetapi/internal/models"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal and fails the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// Date returns midnight UTC of the given calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password and a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithName(t, db, fmt.Sprintf("user%d", nextID()))
}

// CreateTestUserWithName creates a user with the given username and no email.
func CreateTestUserWithName(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestUserWithEmail creates a user that receives email notifications.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	if err := db.Model(user).Update("email", email).Error; err != nil {
		t.Fatalf("failed to set test user email: %v", err)
	}
	user.Email = &email
	return user
}

// SetThreshold enables the user's threshold at the given value.
func SetThreshold(t *testing.T, db *gorm.DB, user *models.User, value string) {
	t.Helper()

	limit := Dec(t, value)
	if err := db.Model(user).Updates(map[string]interface{}{
		"threshold_enabled": true,
		"threshold_value":   limit,
	}).Error; err != nil {
		t.Fatalf("failed to set threshold: %v", err)
	}
	user.ThresholdEnabled = true
	user.ThresholdValue = limit
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID uint) *models.Category {
	t.Helper()
	return CreateTestCategoryWithName(t, db, userID, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryWithName creates a category with the given name.
func CreateTestCategoryWithName(t *testing.T, db *gorm.DB, userID uint, name string) *models.Category {
	t.Helper()

	category := &models.Category{UserID: userID, Name: name}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreatePlannedTransaction inserts a planned transaction directly, without
// touching the balance. It takes the user's next free number.
func CreatePlannedTransaction(t *testing.T, db *gorm.DB, userID, categoryID uint, amount string, isIncome bool, planned time.Time) *models.Transaction {
	t.Helper()

	var maxNumber int
	if err := db.Unscoped().Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&maxNumber).Error; err != nil {
		t.Fatalf("failed to read max number: %v", err)
	}

	tx := &models.Transaction{
		Number:      maxNumber + 1,
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      Dec(t, amount),
		IsIncome:    isIncome,
		PlannedDate: &planned,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create planned transaction: %v", err)
	}
	return tx
}

// ReloadUser reads the user back from the database.
func ReloadUser(t *testing.T, db *gorm.DB, userID uint) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("failed to reload user %d: %v", userID, err)
	}
	return &user
}

// CountNotifications returns how many in-app notifications a user has.
func CountNotifications(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count notifications: %v", err)
	}
	return n
}
