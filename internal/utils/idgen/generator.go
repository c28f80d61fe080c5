package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID returns "<prefix>_<length random chars from 0-9a-z>".
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("id length must be positive, got %d", length)
	}

	encoded := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(encoded) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256; dropping the rest keeps the distribution flat.
			if b >= 252 {
				continue
			}
			encoded = append(encoded, charset[b%36])
			if len(encoded) == length {
				break
			}
		}
	}

	return prefix + "_" + string(encoded), nil
}

// ValidateIDFormat reports whether id looks like something GenerateSecureID produced for prefix.
func ValidateIDFormat(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune(charset, r) {
			return false
		}
	}
	return true
}
