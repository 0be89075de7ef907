package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

func isBcrypt(encodedHash string) bool {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}
	return false
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
