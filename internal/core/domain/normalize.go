package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText lower-cases extracted text and collapses runs of whitespace
// into single spaces. Classification and text-hash dedup both operate on
// this form.
func NormalizeText(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// HashText returns the hex sha256 fingerprint of normalized text. Empty
// text hashes to the empty string so it never collides as an identity
// signal.
func HashText(normalized string) string {
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
