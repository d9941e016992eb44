package service

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh row identifier.
func NewID() string {
	return uuid.NewString()
}

// Slugify turns a title into a stable kebab-case slug, capped at 80 chars.
func Slugify(input string) string {
	var sb strings.Builder
	for _, c := range strings.ToLower(input) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == ' ', c == '-':
			sb.WriteRune(c)
		}
	}
	cleaned := strings.TrimSpace(sb.String())
	cleaned = strings.Join(strings.Fields(cleaned), "-")
	for strings.Contains(cleaned, "--") {
		cleaned = strings.ReplaceAll(cleaned, "--", "-")
	}
	if len(cleaned) > 80 {
		cleaned = cleaned[:80]
	}
	return cleaned
}
