package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateVerificationCode generates a cryptographically secure 6-digit
// pickup code, uniform over 000000-999999, formatted with leading zeros.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidCodeFormat reports whether code is exactly 6 ASCII digits.
// Anything else is rejected before it reaches the stored-code comparison.
func ValidCodeFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
