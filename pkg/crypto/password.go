package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor for new account passwords. Tests lower it.
var Cost = bcrypt.DefaultCost

// ErrMismatch is returned when a password does not match its stored hash.
var ErrMismatch = errors.New("password mismatch")

// HashPassword hashes an account password with bcrypt.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), Cost)
}

// ComparePassword checks plain against a stored hash.
func ComparePassword(hash []byte, plain string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
