// Package transactions implements income and expense records for users
// and groups.
package transactions

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

const (
	maxDescriptionLen = 200
	defaultPageSize   = 20
	maxPageSize       = 100
)

// Service implements transaction operations.
type Service struct {
	db *gorm.DB
}

// NewService constructs a transaction Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateInput carries the fields of a new transaction. Amount is
// signed: positive is income, negative is expense.
type CreateInput struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	GroupID     *uint64 `json:"group_id"`
}

// Patch carries updatable transaction fields. Nil fields are left
// unchanged.
type Patch struct {
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Date        *string  `json:"date"`
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	Category  string
	Type      string // "income", "expense" or empty
	StartDate string
	EndDate   string
	Page      int
	PerPage   int
}

// Page is one page of transactions plus the total row count.
type Page struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	PerPage      int                  `json:"per_page"`
}

// Create records a new transaction for the user. When GroupID is set
// the user must be an active member of that group.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.Transaction, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	if in.Description == "" || utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, apperr.Validation("description must be 1-200 characters")
	}
	if in.Amount == 0 {
		return nil, apperr.Validation("amount must be non-zero")
	}
	if in.Category == "" {
		return nil, apperr.Validation("category is required")
	}
	if errDate := validateDate(in.Date); errDate != nil {
		return nil, errDate
	}
	if in.GroupID != nil {
		if errMember := s.requireActiveMember(ctx, *in.GroupID, userID); errMember != nil {
			return nil, errMember
		}
	}

	row := models.Transaction{
		UserID:      userID,
		GroupID:     in.GroupID,
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date,
		Type:        typeOf(in.Amount),
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, apperr.Unexpected("failed to create transaction", errCreate)
	}
	return &row, nil
}

// ListUser returns one page of the user's transactions, newest first.
func (s *Service) ListUser(ctx context.Context, userID uint64, filter ListFilter) (*Page, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	return s.page(query, filter)
}

// ListGroup returns one page of a group's transactions, newest first.
// The caller must be an active member.
func (s *Service) ListGroup(ctx context.Context, groupID, userID uint64, filter ListFilter) (*Page, error) {
	if errMember := s.requireActiveMember(ctx, groupID, userID); errMember != nil {
		return nil, errMember
	}
	query := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("group_id = ?", groupID)
	return s.page(query, filter)
}

// Get loads one transaction owned by the user.
func (s *Service) Get(ctx context.Context, transactionID, userID uint64) (*models.Transaction, error) {
	var row models.Transaction
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction not found")
	}
	if errFind != nil {
		return nil, apperr.Unexpected("failed to load transaction", errFind)
	}
	return &row, nil
}

// Update applies a patch to a transaction owned by the user. Changing
// the amount's sign also flips the transaction type.
func (s *Service) Update(ctx context.Context, transactionID, userID uint64, patch Patch) (*models.Transaction, error) {
	row, errGet := s.Get(ctx, transactionID, userID)
	if errGet != nil {
		return nil, errGet
	}

	updates := map[string]any{}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" || utf8.RuneCountInString(desc) > maxDescriptionLen {
			return nil, apperr.Validation("description must be 1-200 characters")
		}
		updates["description"] = desc
	}
	if patch.Amount != nil {
		if *patch.Amount == 0 {
			return nil, apperr.Validation("amount must be non-zero")
		}
		updates["amount"] = *patch.Amount
		updates["type"] = typeOf(*patch.Amount)
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			return nil, apperr.Validation("category is required")
		}
		updates["category"] = category
	}
	if patch.Date != nil {
		if errDate := validateDate(*patch.Date); errDate != nil {
			return nil, errDate
		}
		updates["date"] = *patch.Date
	}
	if len(updates) == 0 {
		return row, nil
	}

	if errUpdate := s.db.WithContext(ctx).Model(row).Updates(updates).Error; errUpdate != nil {
		return nil, apperr.Unexpected("failed to update transaction", errUpdate)
	}
	return s.Get(ctx, transactionID, userID)
}

// Delete removes a transaction owned by the user.
func (s *Service) Delete(ctx context.Context, transactionID, userID uint64) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", transactionID, userID).
		Delete(&models.Transaction{})
	if result.Error != nil {
		return apperr.Unexpected("failed to delete transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("transaction not found")
	}
	return nil
}

func (s *Service) page(query *gorm.DB, filter ListFilter) (*Page, error) {
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	switch filter.Type {
	case "":
	case models.TypeIncome, models.TypeExpense:
		query = query.Where("type = ?", filter.Type)
	default:
		return nil, apperr.Validation("type must be income or expense")
	}
	if filter.StartDate != "" {
		if errDate := validateDate(filter.StartDate); errDate != nil {
			return nil, errDate
		}
		query = query.Where("date >= ?", filter.StartDate)
	}
	if filter.EndDate != "" {
		if errDate := validateDate(filter.EndDate); errDate != nil {
			return nil, errDate
		}
		query = query.Where("date <= ?", filter.EndDate)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, apperr.Unexpected("failed to count transactions", errCount)
	}

	var rows []models.Transaction
	if errList := query.
		Order("date DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; errList != nil {
		return nil, apperr.Unexpected("failed to list transactions", errList)
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	return &Page{Transactions: rows, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *Service) requireActiveMember(ctx context.Context, groupID, userID uint64) error {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.MemberActive).
		Count(&count).Error; errCount != nil {
		return apperr.Unexpected("failed to check group membership", errCount)
	}
	if count == 0 {
		return apperr.Permission("you are not a member of this group")
	}
	return nil
}

func typeOf(amount float64) string {
	if amount > 0 {
		return models.TypeIncome
	}
	return models.TypeExpense
}

func validateDate(date string) error {
	if _, errParse := time.Parse("2006-01-02", date); errParse != nil {
		return apperr.Validation("date must be YYYY-MM-DD")
	}
	return nil
}
