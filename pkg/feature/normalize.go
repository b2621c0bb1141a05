package feature

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldIdentity normalizes a user id for case-insensitive matching: surrounding
// space is trimmed, the id is NFC-normalized and Unicode case-folded.
// Use it with WithUserIDNormalizer when one identity may arrive with
// different casing (for example e-mail addresses).
func FoldIdentity(id string) string {
	// Casers are stateful; each call gets its own.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(id)))
}
