package testutil

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	apperrors "budgetapi/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertBalance reloads the user and compares the stored balance with want
// numerically, so "20" matches 20.00.
func AssertBalance(t *testing.T, db *gorm.DB, userID uint, want string) {
	t.Helper()

	got := ReloadUser(t, db, userID).Balance
	if !got.Equal(Dec(t, want)) {
		t.Errorf("expected balance %s for user %d, got %s", want, userID, got)
	}
}
