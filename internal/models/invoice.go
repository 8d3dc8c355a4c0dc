package models

import (
	"time"

	"gorm.io/datatypes"
)

// Carrier types supported by the e-invoice integration.
const (
	CarrierMobileBarcode = "mobile_barcode"
	CarrierMemberCard    = "member_card"
)

// Sync log statuses.
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncFailed  = "failed"
)

// InvoiceCarrier is a registered e-invoice collection identifier.
type InvoiceCarrier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_carrier"` // Owning user ID.

	CarrierType      string `gorm:"type:text;not null;uniqueIndex:idx_user_carrier"` // mobile_barcode or member_card.
	CarrierID        string `gorm:"type:text;not null;uniqueIndex:idx_user_carrier"` // Carrier identifier, e.g. /ABC+123.
	CarrierName      string `gorm:"type:text"`                                       // Optional display name.
	VerificationCode string `gorm:"type:text"`                                       // Verification code for mobile barcodes.

	IsActive   bool       `gorm:"not null;default:true"` // Sync eligibility flag.
	LastSyncAt *time.Time `gorm:""`                      // Last successful sync.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// InvoiceRecord is one retrieved e-invoice, prior to import.
type InvoiceRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_user_invoice"` // Owning user ID.
	CarrierID uint64 `gorm:"not null;index"`                        // Source carrier ID.

	InvoiceNumber string  `gorm:"type:text;not null;uniqueIndex:idx_user_invoice"` // Invoice number, unique per user.
	InvoiceDate   string  `gorm:"type:text;not null"`                              // Invoice date, YYYY-MM-DD.
	SellerName    string  `gorm:"type:text"`                                       // Merchant name.
	TotalAmount   float64 `gorm:"not null"`                                        // Invoice total.
	Status        string  `gorm:"type:text;not null;default:normal"`               // normal or voided.

	Items datatypes.JSON `gorm:"type:jsonb"` // Line items as returned by the API.

	ImportedTransactionID *uint64 `gorm:"index"` // Set once imported as a transaction.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// SyncLog records one invoice sync run for a carrier.
type SyncLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;index"` // Owning user ID.
	CarrierID uint64 `gorm:"not null"`       // Synced carrier ID.

	SyncType   string `gorm:"type:text;not null;default:manual"` // manual or scheduled.
	SyncStatus string `gorm:"type:text;not null"`                // running, success or failed.
	Message    string `gorm:"type:text"`                         // Failure detail when failed.

	InvoicesFound   int `gorm:"not null;default:0"` // Invoices returned by the API.
	InvoicesNew     int `gorm:"not null;default:0"` // Newly stored invoices.
	InvoicesUpdated int `gorm:"not null;default:0"` // Refreshed invoices.

	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"` // Sync start timestamp.
	CompletedAt *time.Time `gorm:""`                        // Sync completion timestamp.
}
