// Package ledger holds the rules for how transactions affect a user's balance:
// the balance accumulator, the threshold check, transaction numbering and the
// calendar helpers used by planned transactions and period filters.
//
// Everything here is free of I/O. Persistence and locking are the callers'
// concern (see services.TransactionService and scheduler.Sweeper).
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budgetapi/internal/models"
	"budgetapi/internal/notify"
)

// ThresholdMessage is the advisory text sent when a transaction meets the
// user's configured threshold.
const ThresholdMessage = "You have reached your balance limit"

// MoneyScale is the number of decimal places stored for amounts and balances.
const MoneyScale = 2

// MaxMoney is the exclusive bound on the magnitude of a stored amount or
// balance (NUMERIC(14,2)).
var MaxMoney = decimal.New(1, 12)

var (
	// ErrNegativeAmount is returned by Apply for amounts below zero.
	ErrNegativeAmount = errors.New("ledger: negative transaction amount")
	// ErrMoneyPrecision is returned for values finer than cents.
	ErrMoneyPrecision = errors.New("ledger: more than two decimal places")
	// ErrMoneyRange is returned for values that do not fit the money columns.
	ErrMoneyRange = errors.New("ledger: value out of range")
)

// CheckMoney reports whether d can be stored exactly. Trailing zeros are
// fine, so 10.000 passes and 9.999 does not.
func CheckMoney(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return ErrMoneyPrecision
	}
	if d.Abs().GreaterThanOrEqual(MaxMoney) {
		return ErrMoneyRange
	}
	return nil
}

// Apply returns the balance after applying a transaction of the given
// direction and amount. It must run exactly once per transaction; a second
// call for the same transaction double-counts.
func Apply(balance decimal.Decimal, isIncome bool, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return balance, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	if isIncome {
		return balance.Add(amount), nil
	}
	return balance.Sub(amount), nil
}

// ApplyTo applies tx to user.Balance in place. The balance is left untouched
// when the result would not fit the balance column.
func ApplyTo(user *models.User, tx *models.Transaction) error {
	balance, err := Apply(user.Balance, tx.IsIncome, tx.Amount)
	if err != nil {
		return err
	}
	if balance.Abs().GreaterThanOrEqual(MaxMoney) {
		return fmt.Errorf("balance %s: %w", balance, ErrMoneyRange)
	}
	user.Balance = balance
	return nil
}

// CheckThreshold returns an in-app notification intent when the user's
// threshold is enabled and the transaction's amount alone meets or exceeds
// it. Direction is ignored, and each qualifying transaction yields its own
// intent.
//
// This compares a single transaction against the threshold, not the
// cumulative balance, so many small transactions never trigger it.
func CheckThreshold(user *models.User, tx *models.Transaction) *notify.Intent {
	if !user.ThresholdEnabled {
		return nil
	}
	if tx.Amount.LessThan(user.ThresholdValue) {
		return nil
	}
	intent := notify.InApp(user.ID, ThresholdMessage)
	return &intent
}

// NextNumber returns the sequence number following maxAssigned, the highest
// number ever given to the user's transactions (0 when there are none).
func NextNumber(maxAssigned int) int {
	if maxAssigned < 0 {
		maxAssigned = 0
	}
	return maxAssigned + 1
}

// RecordedMessage is the text sent when a planned transaction is applied.
func RecordedMessage(number int) string {
	return fmt.Sprintf("Your transaction №%d has been added to balance", number)
}
