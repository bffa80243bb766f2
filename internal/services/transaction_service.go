package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
	"budgetapi/internal/notify"
	"budgetapi/internal/pagination"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db              *gorm.DB
	categoryService CategoryServicer
	dispatcher      notify.Dispatcher
	locks           *ledger.UserLocks
	now             func() time.Time
	loc             *time.Location
}

// TransactionOption customizes a transaction service.
type TransactionOption func(*transactionService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TransactionOption {
	return func(s *transactionService) { s.now = now }
}

// WithLocation sets the zone that defines "today" and period boundaries.
func WithLocation(loc *time.Location) TransactionOption {
	return func(s *transactionService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewTransactionService creates a new TransactionServicer. locks must be the
// instance shared with the planned transaction sweeper.
func NewTransactionService(
	db *gorm.DB,
	categoryService CategoryServicer,
	dispatcher notify.Dispatcher,
	locks *ledger.UserLocks,
	opts ...TransactionOption,
) TransactionServicer {
	s := &transactionService{
		db:              db,
		categoryService: categoryService,
		dispatcher:      dispatcher,
		locks:           locks,
		now:             time.Now,
		loc:             time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.Discard{}
	}
	if s.locks == nil {
		s.locks = ledger.NewUserLocks()
	}
	return s
}

// CreateTransaction records a transaction for the user. Without a planned
// date, or with one that is already due, the balance is updated at once and
// the threshold is checked; otherwise the transaction waits for the sweep.
func (s *transactionService) CreateTransaction(ctx context.Context, userID uint, input TransactionInput) (*models.Transaction, error) {
	if err := checkAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.CategoryID == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category ID is required")
	}

	category, err := s.categoryService.ResolveCategory(userID, input.CategoryID)
	if err != nil {
		return nil, err
	}

	var planned *time.Time
	if input.PlannedDate != nil {
		d := ledger.DateOf(*input.PlannedDate, time.UTC)
		planned = &d
	}
	today := ledger.DateOf(s.now(), s.loc)
	applyNow := ledger.IsDue(planned, today)

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		transaction *models.Transaction
		intents     []notify.Intent
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		var maxNumber int
		if err := tx.Unscoped().Model(&models.Transaction{}).
			Where("user_id = ?", userID).
			Select("COALESCE(MAX(number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		transaction = &models.Transaction{
			Number:      ledger.NextNumber(maxNumber),
			UserID:      userID,
			CategoryID:  category.ID,
			Amount:      input.Amount,
			IsIncome:    input.IsIncome,
			PlannedDate: planned,
		}

		if applyNow {
			if err := ledger.ApplyTo(user, transaction); err != nil {
				if errors.Is(err, ledger.ErrMoneyRange) {
					return apperrors.WithMessage(apperrors.ErrInvalidAmount, "resulting balance is out of range")
				}
				return apperrors.Wrap(apperrors.ErrInvalidAmount, err)
			}
			appliedAt := s.now().UTC()
			transaction.AppliedAt = &appliedAt

			if err := tx.Model(user).Update("balance", user.Balance).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if intent := ledger.CheckThreshold(user, transaction); intent != nil {
				intents = append(intents, *intent)
			}
		}

		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, intents...)

	transaction.Category = category
	return transaction, nil
}

// checkAmount accepts positive amounts that the amount column stores exactly.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	switch err := ledger.CheckMoney(amount); {
	case errors.Is(err, ledger.ErrMoneyPrecision):
		return apperrors.WithMessage(apperrors.ErrInvalidAmount, "amount must have at most two decimal places")
	case errors.Is(err, ledger.ErrMoneyRange):
		return apperrors.WithMessage(apperrors.ErrInvalidAmount, "amount must be less than "+ledger.MaxMoney.String())
	}
	return nil
}

// lockUser reads the user row under a row lock. SQLite ignores the lock;
// the in-process UserLocks cover it there.
func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// ListTransactions retrieves a paginated, filtered list of the user's
// transactions, newest number first.
func (s *transactionService) ListTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	q := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	q, err := s.applyTransactionFilters(q, filter)
	if err != nil {
		return nil, err
	}

	result, err := pagination.Find[models.Transaction](q, page, "number DESC", "Category")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func (s *transactionService) applyTransactionFilters(q *gorm.DB, f TransactionFilter) (*gorm.DB, error) {
	if f.Period != nil {
		from, to, err := f.Period.Range(s.now(), s.loc)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		q = q.Where("created_at >= ? AND created_at < ?", from, to)
	}
	if f.IsIncome != nil {
		q = q.Where("is_income = ?", *f.IsIncome)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.FromDate != nil {
		q = q.Where("created_at >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("created_at <= ?", f.ToDate.UTC())
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.Status != nil {
		switch *f.Status {
		case models.LedgerStatusPlanned:
			q = q.Where("applied_at IS NULL")
		case models.LedgerStatusApplied:
			q = q.Where("applied_at IS NOT NULL")
		default:
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "status must be planned or applied")
		}
	}
	return q, nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID uint) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Category").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction changes the category or, while still planned, the amount.
// Applied transactions keep their amount so the balance stays consistent.
func (s *transactionService) UpdateTransaction(userID, transactionID uint, update TransactionUpdate) (*models.Transaction, error) {
	var category *models.Category
	if update.CategoryID != nil {
		var err error
		if category, err = s.categoryService.ResolveCategory(userID, *update.CategoryID); err != nil {
			return nil, err
		}
	}
	if update.Amount != nil {
		if err := checkAmount(*update.Amount); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var transaction models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", transactionID, userID).
			First(&transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		updates := make(map[string]interface{})
		if update.Amount != nil && !update.Amount.Equal(transaction.Amount) {
			if transaction.IsApplied() {
				return apperrors.ErrTransactionNotEditable
			}
			updates["amount"] = *update.Amount
		}
		if category != nil {
			updates["category_id"] = category.ID
		}

		if len(updates) > 0 {
			if err := tx.Model(&transaction).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransactionByID(userID, transactionID)
}

// DeleteTransaction soft-deletes a transaction. The balance is not reversed
// and the number stays reserved.
func (s *transactionService) DeleteTransaction(userID, transactionID uint) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
