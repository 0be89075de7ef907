package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999

	// DefaultRefreshTokenLength is the hex length of an opaque refresh token.
	DefaultRefreshTokenLength = 64
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// NewOTP returns a uniformly distributed 6-digit code in [100000, 999999].
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// NewRefreshToken returns length hex characters backed by length/2 random
// bytes. The token carries no claims.
func NewRefreshToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultRefreshTokenLength
	}
	if length%2 != 0 || length < 32 {
		return "", errors.New("refresh token length must be even and >= 32")
	}

	raw := make([]byte, length/2)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashRefreshToken is the at-rest form of a refresh token. User stores only
// ever see this digest.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualOTP compares two codes in constant time.
func EqualOTP(stored, provided string) bool {
	if stored == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}
