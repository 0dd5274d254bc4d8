package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = 12

// ErrPasswordMismatch indicates a plaintext password does not match its hash.
var ErrPasswordMismatch = errors.New("auth: password mismatch")

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher constructs a hasher, falling back to the default cost
// when the supplied value is out of bcrypt's range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of the plaintext password.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a stored hash against a plaintext candidate.
func (h *PasswordHasher) Verify(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
