package models

import (
	"time"

	"gorm.io/datatypes"
)

// User is a registered account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Login name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Login email.
	Password string `gorm:"type:text;not null"`             // Bcrypt hash.
	FullName string `gorm:"type:text;not null"`             // Display name, used for invite resolution.
	Phone    string `gorm:"type:text"`                      // Optional phone number.

	AvatarURL     string            `gorm:"type:text"`              // Optional avatar URL.
	IsActive      bool              `gorm:"not null;default:true"`  // Account active flag.
	EmailVerified bool              `gorm:"not null;default:false"` // Email verification flag.
	TOTPSecret    string            `gorm:"type:text"`              // TOTP secret when a second factor is enrolled.
	Settings      datatypes.JSONMap `gorm:"type:jsonb"`             // Free-form user settings.

	LastLogin *time.Time `gorm:""` // Last successful login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
