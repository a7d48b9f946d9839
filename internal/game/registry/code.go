package registry

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the 33-symbol set game codes are drawn from. Visually
// confusable characters are excluded: I, 0, and 1 are absent, which also
// leaves O unambiguous.
const Alphabet = "ABCDEFGHJKLMNOPQRSTUVWXYZ23456789"

// DefaultCodeLength is the number of alphabet draws per code.
const DefaultCodeLength = 4

// maxCodeAttempts bounds collision retries so a full (or broken) registry
// cannot spin the caller forever.
const maxCodeAttempts = 10000

// NormalizeCode canonicalizes client-supplied codes: trimmed and uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// limit is the largest multiple of the alphabet size that fits in a
// byte; bytes at or above it are rejected so every character is drawn
// with equal probability.
const limit = 256 - 256%len(Alphabet)

// randomCode draws length characters uniformly from Alphabet.
func randomCode(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
