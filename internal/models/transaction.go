package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerStatus describes whether a transaction's effect has reached the balance.
type LedgerStatus string

const (
	// LedgerStatusPlanned is a future-dated transaction not yet applied.
	LedgerStatusPlanned LedgerStatus = "planned"
	// LedgerStatusApplied is terminal: the balance has been updated exactly once.
	LedgerStatusApplied LedgerStatus = "applied"
)

// Transaction represents an income or outcome recorded against a user's balance.
//
// Number is assigned once at creation and never reused; rows are soft-deleted
// so that the numbers of deleted transactions stay reserved.
type Transaction struct {
	Base
	Number      int             `gorm:"not null;uniqueIndex:uq_transactions_user_number" json:"number"`
	UserID      uint            `gorm:"not null;index;uniqueIndex:uq_transactions_user_number" json:"user_id"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	IsIncome    bool            `gorm:"not null" json:"is_income"`
	PlannedDate *time.Time      `gorm:"type:date;index" json:"planned_date,omitempty"`
	AppliedAt   *time.Time      `gorm:"index" json:"applied_at,omitempty"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Status returns the ledger status derived from AppliedAt.
func (t *Transaction) Status() LedgerStatus {
	if t.AppliedAt == nil {
		return LedgerStatusPlanned
	}
	return LedgerStatusApplied
}

// IsApplied reports whether the transaction has been applied to the balance.
func (t *Transaction) IsApplied() bool {
	return t.AppliedAt != nil
}
