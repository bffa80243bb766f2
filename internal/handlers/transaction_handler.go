package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
	"budgetapi/internal/pagination"
	"budgetapi/internal/services"
	"budgetapi/internal/validator"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// The amount is always positive; direction decides whether it adds to or
// subtracts from the balance.
type CreateTransactionRequest struct {
	Amount      *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"12.50"`
	Direction   string           `json:"direction" binding:"required,direction" enums:"income,outcome"`
	CategoryID  uint             `json:"category_id" binding:"required"`
	PlannedDate *string          `json:"planned_date" binding:"omitempty,dateonly" example:"2026-11-01"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
type UpdateTransactionRequest struct {
	Amount     *decimal.Decimal `json:"amount" swaggertype:"string"`
	CategoryID *uint            `json:"category_id" binding:"omitempty,min=1"`
}

// TransactionResponse represents a transaction in the response
type TransactionResponse struct {
	ID          uint                `json:"id"`
	Number      int                 `json:"number"`
	UserID      uint                `json:"user_id"`
	CategoryID  uint                `json:"category_id"`
	Category    *models.Category    `json:"category,omitempty"`
	Amount      string              `json:"amount"`
	Direction   string              `json:"direction"`
	PlannedDate *string             `json:"planned_date,omitempty"`
	Status      models.LedgerStatus `json:"status"`
	AppliedAt   *time.Time          `json:"applied_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newTransactionResponse(t *models.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:         t.ID,
		Number:     t.Number,
		UserID:     t.UserID,
		CategoryID: t.CategoryID,
		Category:   t.Category,
		Amount:     t.Amount.StringFixed(2),
		Direction:  directionOf(t.IsIncome),
		Status:     t.Status(),
		AppliedAt:  t.AppliedAt,
		CreatedAt:  t.CreatedAt,
	}
	if t.PlannedDate != nil {
		d := t.PlannedDate.Format(validator.DateLayout)
		resp.PlannedDate = &d
	}
	return resp
}

func directionOf(isIncome bool) string {
	if isIncome {
		return "income"
	}
	return "outcome"
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Record an income or outcome. Without a planned date, or with one that is already due, the balance is updated immediately; otherwise the transaction is applied by the daily sweep.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} TransactionResponse "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input, amount or category"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.TransactionInput{
		Amount:     *req.Amount,
		IsIncome:   req.Direction == "income",
		CategoryID: req.CategoryID,
	}
	if req.PlannedDate != nil {
		planned, parseErr := time.Parse(validator.DateLayout, *req.PlannedDate)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "planned_date must be YYYY-MM-DD"))
			return
		}
		input.PlannedDate = &planned
	}

	transaction, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": newTransactionResponse(transaction)})
}

// ListTransactions handles the retrieval of the authenticated user's transactions
// @Summary     List transactions
// @Description Get a paginated list of transactions, highest number first, with optional filters that all must match
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       period      query string false "Calendar period of creation (day, month, year)"
// @Param       day         query int    false "Day of month for period=day (default today, clamped to the last day of the month)"
// @Param       month       query int    false "Month for period=day|month (default current)"
// @Param       year        query int    false "Year (default current)"
// @Param       direction   query string false "income or outcome"
// @Param       category_id query int    false "Filter by category ID"
// @Param       from_date   query string false "Created at or after (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "Created at or before (RFC3339 or YYYY-MM-DD)"
// @Param       min_amount  query string false "Minimum amount"
// @Param       max_amount  query string false "Maximum amount"
// @Param       status      query string false "planned or applied"
// @Success     200 {object} pagination.PageResponse[TransactionResponse] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Map(result, newTransactionResponse))
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("period"); v != "" {
		period := ledger.Period{Unit: ledger.PeriodUnit(v)}
		var err error
		if period.Day, err = queryInt(c, "day"); err != nil {
			return filter, err
		}
		if period.Month, err = queryInt(c, "month"); err != nil {
			return filter, err
		}
		if period.Year, err = queryInt(c, "year"); err != nil {
			return filter, err
		}
		if err := period.Validate(); err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		filter.Period = &period
	}

	if v := c.Query("direction"); v != "" {
		switch v {
		case "income", "outcome":
			isIncome := v == "income"
			filter.IsIncome = &isIncome
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid direction, must be income or outcome")
		}
	}

	categoryID, err := queryUint(c, "category_id")
	if err != nil {
		return filter, err
	}
	filter.CategoryID = categoryID

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("min_amount"); v != "" {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid min_amount")
		}
		filter.MinAmount = &amt
	}

	if v := c.Query("max_amount"); v != "" {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid max_amount")
		}
		filter.MaxAmount = &amt
	}

	if v := c.Query("status"); v != "" {
		status := models.LedgerStatus(v)
		switch status {
		case models.LedgerStatusPlanned, models.LedgerStatusApplied:
			filter.Status = &status
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status, must be planned or applied")
		}
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transaction ID"
// @Success     200 {object} TransactionResponse "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": newTransactionResponse(transaction)})
}

// UpdateTransaction handles updating an existing transaction
// @Summary     Update transaction
// @Description Change the category of a transaction, or its amount while it is still planned
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                      true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} TransactionResponse "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or non-editable transaction"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [patch]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, txID, services.TransactionUpdate{
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": newTransactionResponse(transaction)})
}

// DeleteTransaction handles the deletion of a transaction
// @Summary     Delete transaction
// @Description Delete a transaction by ID. The balance is not reverted and the number is not reused.
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
