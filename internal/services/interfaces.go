package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
	"budgetapi/internal/pagination"
)

// SettingsUpdate carries the profile fields a user may change. Nil fields are
// left untouched; an empty Email clears the address.
type SettingsUpdate struct {
	Email            *string
	ThresholdEnabled *bool
	ThresholdValue   *decimal.Decimal
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	SignUp(username, password string, email *string) (*models.User, error)
	Authenticate(username, password string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	UpdateSettings(userID uint, update SettingsUpdate) (*models.User, error)
	DeleteUser(userID uint) error
	EnsureAdmin(username, password, email string) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID uint, name string) (*models.Category, error)
	GetUserCategories(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID uint) (*models.Category, error)
	ResolveCategory(userID, categoryID uint) (*models.Category, error)
	UpdateCategory(userID, categoryID uint, name string) (*models.Category, error)
	DeleteCategory(userID, categoryID uint) error
}

// TransactionInput holds the fields of a new transaction.
type TransactionInput struct {
	Amount      decimal.Decimal
	IsIncome    bool
	CategoryID  uint
	PlannedDate *time.Time
}

// TransactionUpdate holds the editable fields of a transaction.
type TransactionUpdate struct {
	Amount     *decimal.Decimal
	CategoryID *uint
}

// TransactionFilter holds optional filter parameters for listing transactions.
// All set fields must match.
type TransactionFilter struct {
	Period     *ledger.Period
	IsIncome   *bool
	CategoryID *uint
	FromDate   *time.Time
	ToDate     *time.Time
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Status     *models.LedgerStatus
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID uint, input TransactionInput) (*models.Transaction, error)
	ListTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID uint) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID uint, update TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID uint) error
}

// NotificationServicer defines the contract for reading notifications.
type NotificationServicer interface {
	ListNotifications(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Notification], error)
}

// AdminPanel summarizes the stored entities.
type AdminPanel struct {
	Message       string `json:"message"`
	Users         int64  `json:"users"`
	Categories    int64  `json:"categories"`
	Transactions  int64  `json:"transactions"`
	PlannedDue    int64  `json:"planned_pending"`
	Notifications int64  `json:"notifications"`
}

// AdminServicer defines the contract for administrative operations.
type AdminServicer interface {
	Panel() (*AdminPanel, error)
	Broadcast(ctx context.Context, subject, text string) (int, error)
	DeleteEntity(kind models.EntityKind, id uint) error
}
