package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Legacy cedilla letters are still common in Romanian text typed on older
// keyboards; they are folded onto the comma-below letters.
var cedillaFolder = strings.NewReplacer(
	"ş", "ș",
	"Ş", "ș",
	"ţ", "ț",
	"Ţ", "ț",
)

// Normalize canonicalises Romanian text for duplicate detection. It applies
// NFC, lowercases, folds cedilla letters and collapses inner whitespace.
func Normalize(text string) string {
	t := norm.NFC.String(text)
	t = strings.ToLower(t)
	t = cedillaFolder.Replace(t)
	return strings.Join(strings.Fields(t), " ")
}

// Key returns the SHA-256 hex digest of the normalized text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return fmt.Sprintf("%x", sum)
}
