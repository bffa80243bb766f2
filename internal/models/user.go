package models

import "github.com/shopspring/decimal"

// User represents the user model in the database
type User struct {
	Base
	Username         string          `gorm:"uniqueIndex;not null" json:"username"`
	Password         string          `gorm:"not null" json:"-"`
	Email            *string         `json:"email,omitempty"`
	Balance          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	ThresholdEnabled bool            `gorm:"not null;default:false" json:"threshold_enabled"`
	ThresholdValue   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"threshold_value"`
	IsAdmin          bool            `gorm:"not null;default:false" json:"is_admin"`
	Categories       []Category      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"categories,omitempty"`
	Transactions     []Transaction   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
	Notifications    []Notification  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"notifications,omitempty"`
}

// HasEmail reports whether the user has an email address on file.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}
