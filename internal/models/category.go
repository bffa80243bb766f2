package models

// Category groups a user's transactions.
type Category struct {
	Base
	UserID uint   `gorm:"not null;uniqueIndex:uq_categories_user_name" json:"user_id"`
	Name   string `gorm:"not null;uniqueIndex:uq_categories_user_name" json:"name"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
}
