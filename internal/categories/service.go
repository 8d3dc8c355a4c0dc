// Package categories manages per-user and per-group transaction
// categories, including the default set seeded on registration.
package categories

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

// DefaultCategories is seeded for every new user. The order is the
// display order.
var DefaultCategories = []string{"餐飲", "交通", "購物", "娛樂", "薪資", "投資", "載具"}

const maxCategoryNameLen = 30

// Service manages user and group categories.
type Service struct {
	db *gorm.DB
}

// NewService constructs a category Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SeedDefaults inserts the default categories for a user. Existing rows
// are left untouched so the call is safe to repeat.
func (s *Service) SeedDefaults(ctx context.Context, userID uint64) error {
	rows := make([]models.UserCategory, 0, len(DefaultCategories))
	for _, name := range DefaultCategories {
		rows = append(rows, models.UserCategory{UserID: userID, Name: name, IsDefault: true})
	}
	if errSeed := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; errSeed != nil {
		return apperr.Unexpected("failed to seed default categories", errSeed)
	}
	return nil
}

// ListUserCategories returns all categories of a user, defaults first.
func (s *Service) ListUserCategories(ctx context.Context, userID uint64) ([]models.UserCategory, error) {
	var rows []models.UserCategory
	if errList := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, id ASC").
		Find(&rows).Error; errList != nil {
		return nil, apperr.Unexpected("failed to list categories", errList)
	}
	return rows, nil
}

// CreateUserCategory adds a custom category for a user.
func (s *Service) CreateUserCategory(ctx context.Context, userID uint64, name string) (*models.UserCategory, error) {
	name, errName := normalizeName(name)
	if errName != nil {
		return nil, errName
	}

	row := models.UserCategory{UserID: userID, Name: name}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("category already exists")
		}
		return nil, apperr.Unexpected("failed to create category", errCreate)
	}
	return &row, nil
}

// DeleteUserCategory removes a custom category. Default categories
// cannot be deleted.
func (s *Service) DeleteUserCategory(ctx context.Context, userID, categoryID uint64) error {
	var row models.UserCategory
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", categoryID, userID).
		First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return apperr.NotFound("category not found")
	}
	if errFind != nil {
		return apperr.Unexpected("failed to load category", errFind)
	}
	if row.IsDefault {
		return apperr.Validation("default categories cannot be deleted")
	}
	if errDelete := s.db.WithContext(ctx).Delete(&row).Error; errDelete != nil {
		return apperr.Unexpected("failed to delete category", errDelete)
	}
	return nil
}

// ListGroupCategories returns a group's categories. The caller must be
// an active member.
func (s *Service) ListGroupCategories(ctx context.Context, groupID, userID uint64) ([]models.GroupCategory, error) {
	if errMember := s.requireActiveMember(ctx, groupID, userID); errMember != nil {
		return nil, errMember
	}
	var rows []models.GroupCategory
	if errList := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("id ASC").
		Find(&rows).Error; errList != nil {
		return nil, apperr.Unexpected("failed to list group categories", errList)
	}
	return rows, nil
}

// CreateGroupCategory adds a category to a group. The caller must be an
// active member.
func (s *Service) CreateGroupCategory(ctx context.Context, groupID, userID uint64, name string) (*models.GroupCategory, error) {
	if errMember := s.requireActiveMember(ctx, groupID, userID); errMember != nil {
		return nil, errMember
	}
	name, errName := normalizeName(name)
	if errName != nil {
		return nil, errName
	}

	row := models.GroupCategory{GroupID: groupID, Name: name, CreatedBy: userID}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("category already exists in this group")
		}
		return nil, apperr.Unexpected("failed to create group category", errCreate)
	}
	return &row, nil
}

// DeleteGroupCategory removes a group category. Only the category
// creator or a group admin may delete it.
func (s *Service) DeleteGroupCategory(ctx context.Context, groupID, categoryID, userID uint64) error {
	var row models.GroupCategory
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", categoryID, groupID).
		First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return apperr.NotFound("category not found")
	}
	if errFind != nil {
		return apperr.Unexpected("failed to load group category", errFind)
	}

	if row.CreatedBy != userID {
		var admin int64
		if errCount := s.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ? AND role = ? AND status = ?",
				groupID, userID, models.RoleAdmin, models.MemberActive).
			Count(&admin).Error; errCount != nil {
			return apperr.Unexpected("failed to check group role", errCount)
		}
		if admin == 0 {
			return apperr.Permission("only the creator or a group admin can delete this category")
		}
	}

	if errDelete := s.db.WithContext(ctx).Delete(&row).Error; errDelete != nil {
		return apperr.Unexpected("failed to delete group category", errDelete)
	}
	return nil
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

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLen {
		return "", apperr.Validation("category name is too long")
	}
	return name, nil
}
