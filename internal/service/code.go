package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultCodeAlphabet is upper-case letters and digits without the
	// look-alikes I, L, O, 0 and 1.
	DefaultCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	DefaultCodeLength   = 6

	// MaxCodeAttempts bounds the collision retry loop in GenerateCode.
	MaxCodeAttempts = 10
)

// CodeGenerator returns a candidate pairing code. Uniqueness is checked by
// the store, not the generator.
type CodeGenerator func() (string, error)

// NewCodeGenerator draws length characters uniformly from alphabet using
// crypto/rand. Codes are shared secrets, so a predictable source is not
// acceptable.
func NewCodeGenerator(alphabet string, length int) CodeGenerator {
	size := big.NewInt(int64(len(alphabet)))
	return func() (string, error) {
		var b strings.Builder
		b.Grow(length)
		for range length {
			n, err := rand.Int(rand.Reader, size)
			if err != nil {
				return "", fmt.Errorf("service/pairing: reading random source: %w", err)
			}
			b.WriteByte(alphabet[n.Int64()])
		}
		return b.String(), nil
	}
}

// NormalizeCode is the form codes are matched in: trimmed and upper-cased.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
