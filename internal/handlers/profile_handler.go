package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/services"
)

// ProfileHandler handles the authenticated user's own account
type ProfileHandler struct {
	userService services.UserServicer
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(userService services.UserServicer) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

// UpdateSettingsRequest represents the profile settings payload. Omitted
// fields are left unchanged; an empty email removes the address.
type UpdateSettingsRequest struct {
	Email            *string          `json:"email" binding:"omitempty,max=255,email|len=0"`
	ThresholdEnabled *bool            `json:"threshold_enabled"`
	ThresholdValue   *decimal.Decimal `json:"threshold_value" swaggertype:"string"`
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile, balance and threshold settings
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// UpdateSettings changes the email and threshold settings
// @Summary     Update profile settings
// @Description Update the email address and the threshold notification settings
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateSettingsRequest true "Settings to change"
// @Success     200 {object} UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile/settings [put]
func (h *ProfileHandler) UpdateSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.UpdateSettings(userID, services.SettingsUpdate{
		Email:            req.Email,
		ThresholdEnabled: req.ThresholdEnabled,
		ThresholdValue:   req.ThresholdValue,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// DeleteProfile deletes the user together with all of their data
// @Summary     Delete account
// @Description Delete the authenticated user, their categories, transactions and notifications
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "User deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /profile [delete]
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.userService.DeleteUser(userID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
