package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPassword is returned for accounts that only sign in through the
// federated provider.
var ErrNoPassword = errors.New("account has no password")

// HashPassword hashes a plaintext password. Out-of-range costs fall back to
// bcrypt's default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against a stored hash.
func ComparePassword(hashed, plain string) error {
	if hashed == "" {
		return ErrNoPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
