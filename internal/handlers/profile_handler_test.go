package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/services"
)

func setupProfileRouter(handler *ProfileHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(1))
	auth.GET("/profile", handler.GetProfile)
	auth.PUT("/profile/settings", handler.UpdateSettings)
	auth.DELETE("/profile", handler.DeleteProfile)
	return r
}

func TestProfileHandler_GetProfile(t *testing.T) {
	t.Run("returns 200 with user profile", func(t *testing.T) {
		email := "alice@example.com"
		userSvc := &mockUserService{
			getUserByIDFn: func(id uint) (*models.User, error) {
				return &models.User{Base: models.Base{ID: id}, Username: "alice", Email: &email}, nil
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		if user["username"] != "alice" || user["email"] != email {
			t.Errorf("unexpected profile %v", user)
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		r := gin.New()
		r.GET("/profile", NewProfileHandler(&mockUserService{}).GetProfile)

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when user not found", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(_ uint) (*models.User, error) {
				return nil, apperrors.ErrUserNotFound
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "GET", "/profile", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestProfileHandler_UpdateSettings(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got services.SettingsUpdate
		userSvc := &mockUserService{
			updateSettingsFn: func(userID uint, update services.SettingsUpdate) (*models.User, error) {
				got = update
				return &models.User{Base: models.Base{ID: userID}, ThresholdEnabled: true}, nil
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "PUT", "/profile/settings", `{"threshold_enabled":true,"threshold_value":"250.5"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Email != nil {
			t.Errorf("expected email untouched, got %q", *got.Email)
		}
		if got.ThresholdEnabled == nil || !*got.ThresholdEnabled {
			t.Error("expected threshold_enabled=true")
		}
		if got.ThresholdValue == nil || got.ThresholdValue.String() != "250.5" {
			t.Errorf("unexpected threshold value %v", got.ThresholdValue)
		}
	})

	t.Run("accepts numeric threshold and empty email", func(t *testing.T) {
		var got services.SettingsUpdate
		userSvc := &mockUserService{
			updateSettingsFn: func(userID uint, update services.SettingsUpdate) (*models.User, error) {
				got = update
				return &models.User{Base: models.Base{ID: userID}}, nil
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "PUT", "/profile/settings", `{"email":"","threshold_value":10}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Email == nil || *got.Email != "" {
			t.Error("expected empty email to be passed through for clearing")
		}
		if got.ThresholdValue == nil || got.ThresholdValue.IntPart() != 10 {
			t.Errorf("unexpected threshold value %v", got.ThresholdValue)
		}
	})

	t.Run("returns 400 on invalid email", func(t *testing.T) {
		r := setupProfileRouter(NewProfileHandler(&mockUserService{}))

		rec := doRequest(r, "PUT", "/profile/settings", `{"email":"not-an-email"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on malformed threshold", func(t *testing.T) {
		r := setupProfileRouter(NewProfileHandler(&mockUserService{}))

		rec := doRequest(r, "PUT", "/profile/settings", `{"threshold_value":"lots"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("propagates service validation", func(t *testing.T) {
		userSvc := &mockUserService{
			updateSettingsFn: func(_ uint, _ services.SettingsUpdate) (*models.User, error) {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "threshold must not be negative")
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "PUT", "/profile/settings", `{"threshold_value":"-1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestProfileHandler_DeleteProfile(t *testing.T) {
	t.Run("deletes the authenticated user", func(t *testing.T) {
		var deleted uint
		userSvc := &mockUserService{
			deleteUserFn: func(userID uint) error {
				deleted = userID
				return nil
			},
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "DELETE", "/profile", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deleted != 1 {
			t.Errorf("expected user 1 deleted, got %d", deleted)
		}
	})

	t.Run("returns 404 when already gone", func(t *testing.T) {
		userSvc := &mockUserService{
			deleteUserFn: func(_ uint) error { return apperrors.ErrUserNotFound },
		}
		r := setupProfileRouter(NewProfileHandler(userSvc))

		rec := doRequest(r, "DELETE", "/profile", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "USER_NOT_FOUND")
	})
}
