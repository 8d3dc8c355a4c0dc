package security

import (
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateToken("secret", 42, "alice", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret", 42, "alice", time.Hour)
	if _, errParse := ParseToken("other", token); errParse == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, _ := GenerateToken("secret", 42, "alice", -time.Minute)
	_, errParse := ParseToken("secret", token)
	if !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", errParse)
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, errHash := HashPassword("correct-horse")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if hash == "correct-horse" {
		t.Fatalf("hash must not equal the password")
	}
	if !CheckPassword(hash, "correct-horse") {
		t.Fatalf("expected password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestTOTPSecretValidates(t *testing.T) {
	secret, url, errGen := GenerateTOTPSecret("alice")
	if errGen != nil {
		t.Fatalf("generate secret: %v", errGen)
	}
	if secret == "" || url == "" {
		t.Fatalf("expected secret and otpauth url")
	}

	code, errCode := totp.GenerateCode(secret, time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	if !ValidateTOTP(secret, code) {
		t.Fatalf("expected current code to validate")
	}
	if ValidateTOTP(secret, "000000") {
		t.Fatalf("expected bogus code to fail")
	}
}
