package users

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/mop1016/expense-tracker-backend/internal/apperr"
	"github.com/mop1016/expense-tracker-backend/internal/categories"
	dbpkg "github.com/mop1016/expense-tracker-backend/internal/db"
	"github.com/mop1016/expense-tracker-backend/internal/security"
)

const testSecret = "test-jwt-secret"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return NewService(conn, categories.NewService(conn), testSecret, time.Hour), conn
}

func register(t *testing.T, svc *Service, username string) uint64 {
	t.Helper()
	user, errRegister := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
		FullName: "Test " + username,
	})
	if errRegister != nil {
		t.Fatalf("register %s: %v", username, errRegister)
	}
	return user.ID
}

func TestRegisterSeedsDefaultCategories(t *testing.T) {
	svc, conn := newTestService(t)
	userID := register(t, svc, "alice")

	rows, errList := categories.NewService(conn).ListUserCategories(context.Background(), userID)
	if errList != nil {
		t.Fatalf("list categories: %v", errList)
	}
	if len(rows) != len(categories.DefaultCategories) {
		t.Fatalf("expected %d seeded categories, got %d", len(categories.DefaultCategories), len(rows))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@b.co", Password: "longenough", FullName: "A"}},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "longenough", FullName: "A"}},
		{"short password", RegisterInput{Username: "alice", Email: "a@b.co", Password: "short", FullName: "A"}},
		{"blank full name", RegisterInput{Username: "alice", Email: "a@b.co", Password: "longenough", FullName: "  "}},
	}
	for _, tc := range cases {
		if _, errRegister := svc.Register(ctx, tc.input); !apperr.IsValidation(errRegister) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, errRegister)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	if _, errDup := svc.Register(ctx, RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "longenough", FullName: "A",
	}); !apperr.IsConflict(errDup) {
		t.Fatalf("expected conflict for duplicate username, got %v", errDup)
	}
	if _, errDup := svc.Register(ctx, RegisterInput{
		Username: "alice2", Email: "alice@example.com", Password: "longenough", FullName: "A",
	}); !apperr.IsConflict(errDup) {
		t.Fatalf("expected conflict for duplicate email, got %v", errDup)
	}
}

func TestAuthenticateByUsernameOrEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := register(t, svc, "alice")

	token, user, errLogin := svc.Authenticate(ctx, "alice", "correct-horse", "")
	if errLogin != nil {
		t.Fatalf("login by username: %v", errLogin)
	}
	if user.ID != userID || token == "" {
		t.Fatalf("unexpected login result: token=%q user=%+v", token, user)
	}
	claims, errParse := security.ParseToken(testSecret, token)
	if errParse != nil || claims.UserID != userID {
		t.Fatalf("token does not parse back: %v claims=%+v", errParse, claims)
	}
	if user.LastLogin == nil {
		t.Fatalf("expected last_login to be recorded")
	}

	if _, _, errEmail := svc.Authenticate(ctx, "Alice@Example.com", "correct-horse", ""); errEmail != nil {
		t.Fatalf("login by email: %v", errEmail)
	}

	if _, _, errWrong := svc.Authenticate(ctx, "alice", "wrong", ""); !apperr.IsPermission(errWrong) {
		t.Fatalf("expected permission error for wrong password, got %v", errWrong)
	}
	if _, _, errUnknown := svc.Authenticate(ctx, "nobody", "whatever1", ""); !apperr.IsPermission(errUnknown) {
		t.Fatalf("expected permission error for unknown user, got %v", errUnknown)
	}
}

func TestTOTPEnrollmentAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := register(t, svc, "alice")

	secret, otpauthURL, errPrepare := svc.PrepareTOTP(ctx, userID)
	if errPrepare != nil {
		t.Fatalf("prepare totp: %v", errPrepare)
	}
	if secret == "" || otpauthURL == "" {
		t.Fatalf("expected secret and url, got %q %q", secret, otpauthURL)
	}

	// Nothing is enabled until confirmation.
	if _, _, errLogin := svc.Authenticate(ctx, "alice", "correct-horse", ""); errLogin != nil {
		t.Fatalf("login before confirm: %v", errLogin)
	}

	if errBadCode := svc.ConfirmTOTP(ctx, userID, secret, "000000"); !apperr.IsValidation(errBadCode) {
		t.Fatalf("expected validation error for wrong code, got %v", errBadCode)
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	if errConfirm := svc.ConfirmTOTP(ctx, userID, secret, code); errConfirm != nil {
		t.Fatalf("confirm totp: %v", errConfirm)
	}

	// The code is now required on login.
	if _, _, errMissing := svc.Authenticate(ctx, "alice", "correct-horse", ""); !apperr.IsValidation(errMissing) {
		t.Fatalf("expected validation error for missing code, got %v", errMissing)
	}
	code, _ = totp.GenerateCode(secret, time.Now())
	if _, _, errLogin := svc.Authenticate(ctx, "alice", "correct-horse", code); errLogin != nil {
		t.Fatalf("login with code: %v", errLogin)
	}

	if errDisable := svc.DisableTOTP(ctx, userID, "correct-horse"); errDisable != nil {
		t.Fatalf("disable totp: %v", errDisable)
	}
	if _, _, errLogin := svc.Authenticate(ctx, "alice", "correct-horse", ""); errLogin != nil {
		t.Fatalf("login after disable: %v", errLogin)
	}
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := register(t, svc, "alice")

	name := "Alice Chen"
	phone := "0912345678"
	updated, errUpdate := svc.UpdateProfile(ctx, userID, ProfilePatch{FullName: &name, Phone: &phone})
	if errUpdate != nil {
		t.Fatalf("update profile: %v", errUpdate)
	}
	if updated.FullName != "Alice Chen" || updated.Phone != "0912345678" {
		t.Fatalf("unexpected profile: %+v", updated)
	}

	blank := "  "
	if _, errBlank := svc.UpdateProfile(ctx, userID, ProfilePatch{FullName: &blank}); !apperr.IsValidation(errBlank) {
		t.Fatalf("expected validation error for blank name, got %v", errBlank)
	}

	if errWrong := svc.ChangePassword(ctx, userID, "wrong", "new-password-1"); !apperr.IsPermission(errWrong) {
		t.Fatalf("expected permission error for wrong old password, got %v", errWrong)
	}
	if errChange := svc.ChangePassword(ctx, userID, "correct-horse", "new-password-1"); errChange != nil {
		t.Fatalf("change password: %v", errChange)
	}
	if _, _, errOld := svc.Authenticate(ctx, "alice", "correct-horse", ""); !apperr.IsPermission(errOld) {
		t.Fatalf("expected old password to stop working, got %v", errOld)
	}
	if _, _, errNew := svc.Authenticate(ctx, "alice", "new-password-1", ""); errNew != nil {
		t.Fatalf("login with new password: %v", errNew)
	}
}

func TestSearchMatchesNameUsernameEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice")
	register(t, svc, "alicia")
	bobID := register(t, svc, "bob")

	found, errSearch := svc.Search(ctx, bobID, "ali", 0)
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
	if found[0].Username != "alice" || found[1].Username != "alicia" {
		t.Fatalf("unexpected order: %+v", found)
	}

	aliceID := found[0].ID
	self, errSelf := svc.Search(ctx, aliceID, "ali", 0)
	if errSelf != nil {
		t.Fatalf("search as alice: %v", errSelf)
	}
	if len(self) != 1 || self[0].Username != "alicia" {
		t.Fatalf("expected caller excluded, got %+v", self)
	}

	if _, errBlank := svc.Search(ctx, bobID, "  ", 0); !apperr.IsValidation(errBlank) {
		t.Fatalf("expected validation error for blank query, got %v", errBlank)
	}
}
