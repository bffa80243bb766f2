package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetapi/internal/scheduler"
)

// Sweeper runs a pass over due planned transactions.
type Sweeper interface {
	SweepOnce(ctx context.Context) (*scheduler.SweepResult, error)
}

// SweepHandler lets an external scheduler trigger the planned transaction sweep.
type SweepHandler struct {
	sweeper Sweeper
}

// NewSweepHandler creates a new SweepHandler.
func NewSweepHandler(sweeper Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// Sweep applies every due planned transaction
// @Summary     Run the planned transaction sweep
// @Description Apply all planned transactions dated today or earlier. Safe to call repeatedly.
// @Tags        internal
// @Produce     json
// @Param       X-API-Key header string true "Internal API key"
// @Success     200 {object} scheduler.SweepResult "Sweep result"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} ErrorResponse "A sweep is already running"
// @Failure     503 {object} ErrorResponse "Internal endpoints not configured"
// @Router      /internal/sweep [post]
func (h *SweepHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.SweepOnce(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
