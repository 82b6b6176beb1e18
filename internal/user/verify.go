package user

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// ErrNoAdminPassword means no admin password hash is configured
var ErrNoAdminPassword = errors.New("no admin password configured")

// HashPassword hashes password for bot.admin_password_hash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares password against a bcrypt hash.
// A mismatch is (false, nil); a malformed hash is an error.
func VerifyPassword(hash, password string) (bool, error) {
	if hash == "" {
		return false, ErrNoAdminPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}

	return true, nil
}
