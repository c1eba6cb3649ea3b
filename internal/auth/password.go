package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const PasswordCost = 12

func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed hash is
// a mismatch.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// decoyPasswordHash is compared against when the email is unknown so both
// failure paths pay for a full bcrypt compare.
var decoyPasswordHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("snw-store-decoy-password"), PasswordCost)
	if err != nil {
		return ""
	}
	return string(hash)
})
