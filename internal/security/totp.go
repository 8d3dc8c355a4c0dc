package security

import (
	"github.com/pquerna/otp/totp"
)

// totpIssuer names this service in authenticator apps.
const totpIssuer = "expense-tracker"

// GenerateTOTPSecret creates a new TOTP secret for the given account and
// returns the secret together with its otpauth:// provisioning URL.
func GenerateTOTPSecret(accountName string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if errGenerate != nil {
		return "", "", errGenerate
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks a 6-digit code against the secret.
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
