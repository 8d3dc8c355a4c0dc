// Package users implements account registration, authentication and
// profile management.
package users

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/categories"
	"github.com/mop1016/expense-tracker-backend/internal/models"
	"github.com/mop1016/expense-tracker-backend/internal/security"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Service implements user account operations.
type Service struct {
	db         *gorm.DB
	categories *categories.Service
	jwtSecret  string
	jwtExpiry  time.Duration
}

// NewService constructs a user Service.
func NewService(db *gorm.DB, cats *categories.Service, jwtSecret string, jwtExpiry time.Duration) *Service {
	return &Service{db: db, categories: cats, jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Register creates a new account and seeds its default categories.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if !usernamePattern.MatchString(in.Username) {
		return nil, apperr.Validation("username must be 3-30 letters, digits or underscores")
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, apperr.Validation("invalid email address")
	}
	if len(in.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	if in.FullName == "" || utf8.RuneCountInString(in.FullName) > 50 {
		return nil, apperr.Validation("full name must be 1-50 characters")
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, apperr.Unexpected("failed to hash password", errHash)
	}

	user := models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		FullName: in.FullName,
		Phone:    in.Phone,
		IsActive: true,
		Settings: datatypes.JSONMap{},
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("username or email already registered")
		}
		return nil, apperr.Unexpected("failed to create user", errCreate)
	}

	if errSeed := s.categories.SeedDefaults(ctx, user.ID); errSeed != nil {
		return nil, errSeed
	}
	return &user, nil
}

// Authenticate verifies credentials and returns a signed token. The
// identifier may be a username or an email address. Accounts with TOTP
// enabled must also supply a valid code.
func (s *Service) Authenticate(ctx context.Context, identifier, password, totpCode string) (string, *models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", nil, apperr.Validation("username and password are required")
	}

	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return "", nil, apperr.Permission("invalid credentials")
	}
	if errFind != nil {
		return "", nil, apperr.Unexpected("failed to load user", errFind)
	}
	if !user.IsActive {
		return "", nil, apperr.Permission("account is disabled")
	}
	if !security.CheckPassword(user.Password, password) {
		return "", nil, apperr.Permission("invalid credentials")
	}
	if user.TOTPSecret != "" {
		if totpCode == "" {
			return "", nil, apperr.Validation("totp code is required")
		}
		if !security.ValidateTOTP(user.TOTPSecret, totpCode) {
			return "", nil, apperr.Permission("invalid totp code")
		}
	}

	now := time.Now()
	if errTouch := s.db.WithContext(ctx).Model(&user).
		Update("last_login", &now).Error; errTouch != nil {
		return "", nil, apperr.Unexpected("failed to record login time", errTouch)
	}

	token, errToken := security.GenerateToken(s.jwtSecret, user.ID, user.Username, s.jwtExpiry)
	if errToken != nil {
		return "", nil, apperr.Unexpected("failed to sign token", errToken)
	}
	return token, &user, nil
}

// Get loads one active user by ID.
func (s *Service) Get(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if errFind != nil {
		return nil, apperr.Unexpected("failed to load user", errFind)
	}
	return &user, nil
}

// ProfilePatch carries the updatable profile fields. Nil fields are
// left unchanged.
type ProfilePatch struct {
	FullName  *string           `json:"full_name"`
	Phone     *string           `json:"phone"`
	AvatarURL *string           `json:"avatar_url"`
	Settings  datatypes.JSONMap `json:"settings"`
}

// UpdateProfile applies a patch to the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, patch ProfilePatch) (*models.User, error) {
	user, errGet := s.Get(ctx, userID)
	if errGet != nil {
		return nil, errGet
	}

	updates := map[string]any{}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" || utf8.RuneCountInString(name) > 50 {
			return nil, apperr.Validation("full name must be 1-50 characters")
		}
		updates["full_name"] = name
	}
	if patch.Phone != nil {
		updates["phone"] = strings.TrimSpace(*patch.Phone)
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*patch.AvatarURL)
	}
	if patch.Settings != nil {
		updates["settings"] = patch.Settings
	}
	if len(updates) == 0 {
		return user, nil
	}

	if errUpdate := s.db.WithContext(ctx).Model(user).Updates(updates).Error; errUpdate != nil {
		return nil, apperr.Unexpected("failed to update profile", errUpdate)
	}
	return s.Get(ctx, userID)
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, errGet := s.Get(ctx, userID)
	if errGet != nil {
		return errGet
	}
	if !security.CheckPassword(user.Password, oldPassword) {
		return apperr.Permission("current password is incorrect")
	}
	if len(newPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return apperr.Unexpected("failed to hash password", errHash)
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).
		Update("password", hash).Error; errUpdate != nil {
		return apperr.Unexpected("failed to update password", errUpdate)
	}
	return nil
}

// Search finds active users other than the caller whose username, full
// name or email contains the query. Intended for invite pickers, capped
// at limit rows.
func (s *Service) Search(ctx context.Context, callerID uint64, query string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	pattern := "%" + strings.ToLower(query) + "%"
	var users []models.User
	if errSearch := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id <> ?", callerID).
		Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; errSearch != nil {
		return nil, apperr.Unexpected("failed to search users", errSearch)
	}
	return users, nil
}

// PrepareTOTP generates a new TOTP secret for the user to scan. Nothing
// is stored until ConfirmTOTP succeeds.
func (s *Service) PrepareTOTP(ctx context.Context, userID uint64) (secret, otpauthURL string, err error) {
	user, errGet := s.Get(ctx, userID)
	if errGet != nil {
		return "", "", errGet
	}
	if user.TOTPSecret != "" {
		return "", "", apperr.Conflict("totp is already enabled")
	}
	secret, otpauthURL, errGen := security.GenerateTOTPSecret(user.Username)
	if errGen != nil {
		return "", "", apperr.Unexpected("failed to generate totp secret", errGen)
	}
	return secret, otpauthURL, nil
}

// ConfirmTOTP verifies a code against a prepared secret and enables
// TOTP for the account.
func (s *Service) ConfirmTOTP(ctx context.Context, userID uint64, secret, code string) error {
	user, errGet := s.Get(ctx, userID)
	if errGet != nil {
		return errGet
	}
	if user.TOTPSecret != "" {
		return apperr.Conflict("totp is already enabled")
	}
	if secret == "" || !security.ValidateTOTP(secret, code) {
		return apperr.Validation("invalid totp code")
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).
		Update("totp_secret", secret).Error; errUpdate != nil {
		return apperr.Unexpected("failed to enable totp", errUpdate)
	}
	return nil
}

// DisableTOTP turns off TOTP after re-verifying the password.
func (s *Service) DisableTOTP(ctx context.Context, userID uint64, password string) error {
	user, errGet := s.Get(ctx, userID)
	if errGet != nil {
		return errGet
	}
	if user.TOTPSecret == "" {
		return apperr.Conflict("totp is not enabled")
	}
	if !security.CheckPassword(user.Password, password) {
		return apperr.Permission("password is incorrect")
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).
		Update("totp_secret", "").Error; errUpdate != nil {
		return apperr.Unexpected("failed to disable totp", errUpdate)
	}
	return nil
}
