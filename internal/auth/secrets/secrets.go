package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	dErrors "cliquey/pkg/domain-errors"
)

// ErrMismatch is returned by Verify when the password does not match.
var ErrMismatch = errors.New("password mismatch")

// Cost is the bcrypt work factor. Tests lower it to bcrypt.MinCost.
var Cost = bcrypt.DefaultCost

// GenerateHex returns n random bytes, hex encoded. Invitation codes use 16 bytes
// (128 bits).
func GenerateHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the provided password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext password matches a bcrypt hash. The comparison is
// constant time with respect to the password.
func Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}

var (
	dummyMu   sync.Mutex
	dummyHash []byte
)

// PrepareDummy computes the hash VerifyDummy compares against at the current
// Cost. The auth service calls it on construction so the first unknown-login
// attempt does not pay for an extra GenerateFromPassword.
func PrepareDummy() error {
	_, err := dummy()
	return err
}

func dummy() ([]byte, error) {
	dummyMu.Lock()
	defer dummyMu.Unlock()
	if dummyHash != nil {
		if cost, err := bcrypt.Cost(dummyHash); err == nil && cost == Cost {
			return dummyHash, nil
		}
	}
	h, err := bcrypt.GenerateFromPassword([]byte("cliquey-dummy-password"), Cost)
	if err != nil {
		return nil, fmt.Errorf("could not prepare dummy hash: %w", err)
	}
	dummyHash = h
	return h, nil
}

// VerifyDummy spends the same bcrypt work as Verify against a hash no password
// matches. Login calls it for unknown accounts so response time does not reveal
// whether the login exists.
func VerifyDummy(password string) {
	h, err := dummy()
	if err != nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h, []byte(password))
}
