package util

import (
	"strings"
	"unicode"
)

// SanitizeText strips control and invisible characters, collapses the result
// to a single trimmed line and truncates it to maxRunes (0 means no limit).
func SanitizeText(value string, maxRunes int) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		switch {
		case char == '\n' || char == '\r' || char == '\t':
			builder.WriteRune(' ')
		case unicode.IsControl(char) || isInvisibleUnicode(char):
			continue
		default:
			builder.WriteRune(char)
		}
	}

	cleaned := strings.Join(strings.Fields(builder.String()), " ")

	// Truncate by runes (not bytes) to avoid splitting multi-byte characters.
	if maxRunes > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxRunes {
			cleaned = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}

	return cleaned
}

// CSVCell neutralizes values a spreadsheet would evaluate as a formula.
func CSVCell(value string) string {
	cleaned := SanitizeText(value, 0)
	if cleaned == "" {
		return cleaned
	}

	switch cleaned[0] {
	case '=', '+', '-', '@':
		return "'" + cleaned
	}
	return cleaned
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	// Unicode categories for format and non-characters
	if unicode.Is(unicode.Cf, r) { // Format characters (Cf category)
		return true
	}

	return false
}
