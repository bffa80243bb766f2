package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/models"
	"budgetapi/internal/notify"
	"budgetapi/internal/services"
)

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	adminService services.AdminServicer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService services.AdminServicer) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// BroadcastRequest represents a message mailed to every user with an email.
type BroadcastRequest struct {
	Subject string `json:"subject" binding:"max=200"`
	Text    string `json:"text" binding:"required,max=10000"`
}

// BroadcastResponse reports how many users were addressed.
type BroadcastResponse struct {
	Recipients int `json:"recipients"`
}

// Panel returns the admin panel summary
// @Summary     Admin panel
// @Description Confirm admin access and return entity counts
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.AdminPanel "Panel"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not an administrator"
// @Router      /admin/panel [get]
func (h *AdminHandler) Panel(c *gin.Context) {
	panel, err := h.adminService.Panel()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, panel)
}

// Broadcast mails a message to every user with an email address
// @Summary     Broadcast a message
// @Description Send an email to every user that has an address on file
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BroadcastRequest true "Message"
// @Success     202 {object} BroadcastResponse "Message queued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not an administrator"
// @Router      /admin/broadcast [post]
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	subject := req.Subject
	if subject == "" {
		subject = notify.DefaultSubject
	}

	n, err := h.adminService.Broadcast(c.Request.Context(), subject, req.Text)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, BroadcastResponse{Recipients: n})
}

// DeleteEntity removes any user, category or transaction by id
// @Summary     Delete an entity
// @Description Delete a user (with all their data), a category or a transaction
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       kind path string true "Entity kind" Enums(user, category, transaction)
// @Param       id   path int    true "Entity ID"
// @Success     200 {object} MessageResponse "Entity deleted"
// @Failure     400 {object} ErrorResponse "Unknown entity kind or invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not an administrator"
// @Failure     404 {object} ErrorResponse "Entity not found"
// @Failure     409 {object} ErrorResponse "Category in use"
// @Router      /admin/entities/{kind}/{id} [delete]
func (h *AdminHandler) DeleteEntity(c *gin.Context) {
	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrUnknownEntity, err.Error()))
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.adminService.DeleteEntity(kind, id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deleted " + string(kind)})
}
