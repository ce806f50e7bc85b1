package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	MinFingerprintLength = 20
	MaxFingerprintLength = 500
)

// ValidFingerprint reports whether fp is an acceptable device fingerprint.
func ValidFingerprint(fp string) bool {
	n := len(fp)
	return n >= MinFingerprintLength && n <= MaxFingerprintLength
}

// GenerateAccessCode returns a random four digit code in [1000, 9999].
func GenerateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}

func NormalizeAccessCode(code string) string {
	return strings.TrimSpace(code)
}
