package models

import "time"

// Transaction types derived from the amount sign.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction is a dated, signed-amount record. Positive amounts are
// income, negative amounts are expenses.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64  `gorm:"not null;index"`    // Owning user ID.
	User    *User   `gorm:"foreignKey:UserID"` // Owning user.
	GroupID *uint64 `gorm:"index"`             // Optional group scope.
	Group   *Group  `gorm:"foreignKey:GroupID"`

	Description string  `gorm:"type:text;not null"`       // What the money was for.
	Amount      float64 `gorm:"not null"`                 // Signed amount.
	Category    string  `gorm:"type:text;not null"`       // Category name.
	Date        string  `gorm:"type:text;not null;index"` // Transaction date, YYYY-MM-DD.
	Type        string  `gorm:"type:text;not null"`       // income or expense.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
