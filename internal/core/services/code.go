package services

import (
	"crypto/rand"
	"fmt"
)

// Ambiguous glyphs (0/O, 1/I) are left out so codes survive being read over
// the phone.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// NewBookingCode returns a short human-facing code such as "BK-7KQ2M9XD".
func NewBookingCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate booking code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "BK-" + string(buf), nil
}
