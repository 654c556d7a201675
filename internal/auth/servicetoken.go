package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	serviceTokenSaltLength = 16
	serviceTokenKeyLength  = 32
	serviceTokenIterations = 120000
)

// ErrInvalidServiceToken is returned when a presented service credential does
// not match the stored hash.
var ErrInvalidServiceToken = errors.New("invalid service token")

// HashServiceToken derives a storable hash for a service credential, used by
// internal hooks (re-transcode trigger) so the raw secret never sits in
// configuration files.
func HashServiceToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("service token is required")
	}
	salt := make([]byte, serviceTokenSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(token), salt, serviceTokenIterations, serviceTokenKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", serviceTokenIterations, encodedSalt, encodedKey), nil
}

// VerifyServiceToken compares a presented credential against its stored hash.
func VerifyServiceToken(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify service token: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify service token: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify service token: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify service token: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify service token: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidServiceToken
	}
	return nil
}
