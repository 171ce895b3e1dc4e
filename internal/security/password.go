package security

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("password must be 8-16 characters and include at least one uppercase letter and one special character")

// punctuation set accepted as a "special character" by the policy
const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// ValidatePasswordPolicy enforces the account password rules:
// 8-16 characters, at least one uppercase letter, at least one
// symbol from the accepted punctuation set.
func ValidatePasswordPolicy(plain string) error {
	if len(plain) < 8 || len(plain) > 16 {
		return ErrWeakPassword
	}

	hasUpper := false
	hasSymbol := false

	for _, r := range plain {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if strings.ContainsRune(passwordSymbols, r) {
			hasSymbol = true
		}
	}

	if !hasUpper || !hasSymbol {
		return ErrWeakPassword
	}

	return nil
}
