package auth

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/argon2id"
)

const (
	httpStatusUnauthorized = http.StatusUnauthorized
	httpStatusForbidden    = http.StatusForbidden
)

// HashPasscode derives an argon2id hash of a room passcode.
func HashPasscode(passcode string) (string, error) {
	hash, err := argon2id.CreateHash(passcode, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return hash, nil
}

// ComparePasscode reports whether the passcode matches the stored hash.
// Errors from malformed hashes are treated as a mismatch.
func ComparePasscode(passcode, hash string) bool {
	ok, err := argon2id.ComparePasswordAndHash(passcode, hash)
	return err == nil && ok
}
