// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = time.DateOnly

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("direction", validateDirection)
	_ = v.RegisterValidation("period", validatePeriod)
	_ = v.RegisterValidation("entity_kind", validateEntityKind)
	_ = v.RegisterValidation("ledger_status", validateLedgerStatus)
	_ = v.RegisterValidation("dateonly", validateDateOnly)
}

func validateDirection(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "income", "outcome":
		return true
	}
	return false
}

func validatePeriod(fl validator.FieldLevel) bool {
	switch ledger.PeriodUnit(fl.Field().String()) {
	case ledger.PeriodDay, ledger.PeriodMonth, ledger.PeriodYear:
		return true
	}
	return false
}

func validateEntityKind(fl validator.FieldLevel) bool {
	_, err := models.ParseEntityKind(fl.Field().String())
	return err == nil
}

func validateLedgerStatus(fl validator.FieldLevel) bool {
	switch models.LedgerStatus(fl.Field().String()) {
	case models.LedgerStatusPlanned, models.LedgerStatusApplied:
		return true
	}
	return false
}

func validateDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
