package models

import "time"

// UserCategory is a per-user transaction category.
type UserCategory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_category"`           // Owning user ID.
	Name   string `gorm:"type:text;not null;uniqueIndex:idx_user_category"` // Category name, unique per user.

	IsDefault bool `gorm:"not null;default:false"` // Seeded defaults cannot be deleted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// GroupCategory is a per-group transaction category.
type GroupCategory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID uint64 `gorm:"not null;uniqueIndex:idx_group_category"`           // Owning group ID.
	Name    string `gorm:"type:text;not null;uniqueIndex:idx_group_category"` // Category name, unique per group.

	CreatedBy   uint64 `gorm:"not null"`               // Creating user ID.
	IsInherited bool   `gorm:"not null;default:false"` // Copied from a member's personal categories.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
