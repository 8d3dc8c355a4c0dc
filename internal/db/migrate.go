package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// Migrate creates or updates the schema for all entities and the indexes
// AutoMigrate cannot express.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupInvitation{},
		&models.UserCategory{},
		&models.GroupCategory{},
		&models.Transaction{},
		&models.InvoiceCarrier{},
		&models.InvoiceRecord{},
		&models.SyncLog{},
	); err != nil {
		return fmt.Errorf("db: auto migrate: %w", err)
	}

	// Partial unique index: one pending invitation per (group, invitee).
	// Concurrent inviters race on this; the second insert fails.
	if err := conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_invitation
		 ON group_invitations (group_id, invitee_id)
		 WHERE status = 'pending'`,
	).Error; err != nil {
		return fmt.Errorf("db: pending invitation index: %w", err)
	}

	return nil
}
