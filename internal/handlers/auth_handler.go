package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/services"
)

// TokenIssuer creates access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(user *models.User) (string, error)
	TTL() time.Duration
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	userService services.UserServicer
	tokens      TokenIssuer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens}
}

// SignUpRequest represents the registration request payload
type SignUpRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=64"`
	Password string  `json:"password" binding:"required,min=8,max=128"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
}

// TokenRequest represents the credentials exchanged for an access token.
// Both JSON and form encodings are accepted.
type TokenRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TokenResponse represents an issued access token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID               uint    `json:"id"`
	Username         string  `json:"username"`
	Email            *string `json:"email,omitempty"`
	Balance          string  `json:"balance"`
	ThresholdEnabled bool    `json:"threshold_enabled"`
	ThresholdValue   string  `json:"threshold_value"`
	IsAdmin          bool    `json:"is_admin"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Balance:          u.Balance.StringFixed(2),
		ThresholdEnabled: u.ThresholdEnabled,
		ThresholdValue:   u.ThresholdValue.StringFixed(2),
		IsAdmin:          u.IsAdmin,
	}
}

// SignUp handles user registration
// @Summary     Register a new user
// @Description Register a new user with a username, password and optional email
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body SignUpRequest true "User registration data"
// @Success     201 {object} UserResponse "User registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Username taken"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/sign-up [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.SignUp(req.Username, req.Password, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

// Token exchanges credentials for an access token
// @Summary     Obtain an access token
// @Description Authenticate with username and password and get a bearer token
// @Tags        auth
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body TokenRequest true "User credentials"
// @Success     200 {object} TokenResponse "Token issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}
