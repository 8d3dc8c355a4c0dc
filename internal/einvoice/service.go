package einvoice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// categoryKeywords maps seller-name substrings to expense categories,
// checked in order so a name matching several keywords always gets the
// same category. Unmatched sellers fall back to 購物.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"全聯", "購物"},
	{"家樂福", "購物"},
	{"7-", "餐飲"},
	{"全家", "餐飲"},
	{"麥當勞", "餐飲"},
	{"星巴克", "餐飲"},
	{"中油", "交通"},
	{"台鐵", "交通"},
	{"高鐵", "交通"},
	{"捷運", "交通"},
	{"誠品", "娛樂"},
	{"威秀", "娛樂"},
	{"KTV", "娛樂"},
	{"Netf", "娛樂"},
}

const fallbackCategory = "購物"

// Service manages invoice carriers, sync runs and transaction imports.
type Service struct {
	db     *gorm.DB
	client *Client
}

// NewService constructs an e-invoice Service.
func NewService(db *gorm.DB, client *Client) *Service {
	return &Service{db: db, client: client}
}

// AddCarrier registers a carrier after validating it with the platform.
func (s *Service) AddCarrier(ctx context.Context, userID uint64, carrierType, carrierID, carrierName, verificationCode string) (*models.InvoiceCarrier, error) {
	carrierID = strings.TrimSpace(carrierID)
	switch carrierType {
	case models.CarrierMobileBarcode, models.CarrierMemberCard:
	default:
		return nil, apperr.Validation("carrier type must be mobile_barcode or member_card")
	}
	if carrierID == "" {
		return nil, apperr.Validation("carrier id is required")
	}

	if errValidate := s.client.ValidateCarrier(ctx, carrierType, carrierID, verificationCode); errValidate != nil {
		return nil, apperr.Validation("carrier validation failed: " + errValidate.Error())
	}

	row := models.InvoiceCarrier{
		UserID:           userID,
		CarrierType:      carrierType,
		CarrierID:        carrierID,
		CarrierName:      strings.TrimSpace(carrierName),
		VerificationCode: verificationCode,
		IsActive:         true,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("carrier is already registered")
		}
		return nil, apperr.Unexpected("failed to register carrier", errCreate)
	}
	return &row, nil
}

// ListCarriers returns the user's registered carriers.
func (s *Service) ListCarriers(ctx context.Context, userID uint64) ([]models.InvoiceCarrier, error) {
	var rows []models.InvoiceCarrier
	if errList := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error; errList != nil {
		return nil, apperr.Unexpected("failed to list carriers", errList)
	}
	return rows, nil
}

// DeleteCarrier removes a carrier owned by the user.
func (s *Service) DeleteCarrier(ctx context.Context, userID, carrierID uint64) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", carrierID, userID).
		Delete(&models.InvoiceCarrier{})
	if result.Error != nil {
		return apperr.Unexpected("failed to delete carrier", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("carrier not found")
	}
	return nil
}

// SyncCarrier fetches the carrier's invoices for the trailing window
// and stores new records. Every run is recorded in a sync log.
func (s *Service) SyncCarrier(ctx context.Context, userID, carrierID uint64, daysBack int) (*models.SyncLog, error) {
	if daysBack <= 0 || daysBack > 90 {
		daysBack = 30
	}

	var carrier models.InvoiceCarrier
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", carrierID, userID).
		First(&carrier).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("carrier not found")
	}
	if errFind != nil {
		return nil, apperr.Unexpected("failed to load carrier", errFind)
	}
	if !carrier.IsActive {
		return nil, apperr.Conflict("carrier is disabled")
	}

	syncLog := models.SyncLog{
		UserID:     userID,
		CarrierID:  carrier.ID,
		SyncType:   "manual",
		SyncStatus: models.SyncRunning,
	}
	if errCreate := s.db.WithContext(ctx).Create(&syncLog).Error; errCreate != nil {
		return nil, apperr.Unexpected("failed to start sync", errCreate)
	}

	now := time.Now().UTC()
	endDate := now.Format("2006-01-02")
	startDate := now.AddDate(0, 0, -daysBack).Format("2006-01-02")

	invoices, errFetch := s.client.FetchInvoices(ctx, carrier.CarrierType, carrier.CarrierID, startDate, endDate)
	if errFetch != nil {
		s.finishSync(ctx, &syncLog, models.SyncFailed, errFetch.Error())
		log.WithError(errFetch).WithField("carrier_id", carrier.ID).Warn("invoice sync failed")
		return &syncLog, nil
	}

	syncLog.InvoicesFound = len(invoices)
	for _, invoice := range invoices {
		stored, errStore := s.storeInvoice(ctx, userID, carrier.ID, invoice)
		if errStore != nil {
			log.WithError(errStore).WithField("invoice_number", invoice.Number).Warn("invoice skipped")
			continue
		}
		if stored {
			syncLog.InvoicesNew++
		} else {
			syncLog.InvoicesUpdated++
		}
	}

	if errTouch := s.db.WithContext(ctx).Model(&carrier).
		Update("last_sync_at", &now).Error; errTouch != nil {
		log.WithError(errTouch).Warn("failed to record carrier sync time")
	}
	s.finishSync(ctx, &syncLog, models.SyncSuccess, "")
	return &syncLog, nil
}

// ListInvoices returns the user's stored invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, userID uint64, onlyUnimported bool) ([]models.InvoiceRecord, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if onlyUnimported {
		query = query.Where("imported_transaction_id IS NULL")
	}
	var rows []models.InvoiceRecord
	if errList := query.Order("invoice_date DESC, id DESC").Find(&rows).Error; errList != nil {
		return nil, apperr.Unexpected("failed to list invoices", errList)
	}
	return rows, nil
}

// ImportInvoice converts a stored invoice into an expense transaction.
// The category is inferred from the seller name.
func (s *Service) ImportInvoice(ctx context.Context, userID, recordID uint64) (*models.Transaction, error) {
	var record models.InvoiceRecord
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", recordID, userID).
		First(&record).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("invoice not found")
	}
	if errFind != nil {
		return nil, apperr.Unexpected("failed to load invoice", errFind)
	}
	if record.ImportedTransactionID != nil {
		return nil, apperr.Conflict("invoice is already imported")
	}
	if record.Status != "normal" {
		return nil, apperr.Conflict("voided invoices cannot be imported")
	}

	transaction := models.Transaction{
		UserID:      userID,
		Description: record.SellerName,
		Amount:      -record.TotalAmount,
		Category:    CategorizeSeller(record.SellerName),
		Date:        record.InvoiceDate,
		Type:        models.TypeExpense,
	}
	errImport := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&transaction).Error; errCreate != nil {
			return errCreate
		}
		return tx.Model(&record).
			Update("imported_transaction_id", transaction.ID).Error
	})
	if errImport != nil {
		return nil, apperr.Unexpected("failed to import invoice", errImport)
	}
	return &transaction, nil
}

// storeInvoice inserts or refreshes one invoice record. It reports
// whether a new row was created.
func (s *Service) storeInvoice(ctx context.Context, userID, carrierID uint64, invoice Invoice) (created bool, err error) {
	items, errMarshal := json.Marshal(invoice.Items)
	if errMarshal != nil {
		return false, errMarshal
	}

	var existing models.InvoiceRecord
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND invoice_number = ?", userID, invoice.Number).
		First(&existing).Error
	if errFind == nil {
		errUpdate := s.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
			"invoice_date": invoice.Date,
			"seller_name":  invoice.SellerName,
			"total_amount": invoice.Amount,
			"status":       invoice.Status,
			"items":        items,
		}).Error
		return false, errUpdate
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, errFind
	}

	row := models.InvoiceRecord{
		UserID:        userID,
		CarrierID:     carrierID,
		InvoiceNumber: invoice.Number,
		InvoiceDate:   invoice.Date,
		SellerName:    invoice.SellerName,
		TotalAmount:   invoice.Amount,
		Status:        invoice.Status,
		Items:         items,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return false, errCreate
	}
	return true, nil
}

func (s *Service) finishSync(ctx context.Context, syncLog *models.SyncLog, status, message string) {
	now := time.Now()
	if errUpdate := s.db.WithContext(ctx).Model(syncLog).Updates(map[string]any{
		"sync_status":      status,
		"message":          message,
		"invoices_found":   syncLog.InvoicesFound,
		"invoices_new":     syncLog.InvoicesNew,
		"invoices_updated": syncLog.InvoicesUpdated,
		"completed_at":     &now,
	}).Error; errUpdate != nil {
		log.WithError(errUpdate).Warn("failed to finalize sync log")
		return
	}
	syncLog.SyncStatus = status
	syncLog.Message = message
	syncLog.CompletedAt = &now
}

// CategorizeSeller infers an expense category from a seller name. The
// first matching keyword wins.
func CategorizeSeller(sellerName string) string {
	for _, entry := range categoryKeywords {
		if strings.Contains(sellerName, entry.keyword) {
			return entry.category
		}
	}
	return fallbackCategory
}
