package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpenRe  = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("(?m)```\\s*$")
)

// RepairJSON fixes the common ways model output fails to parse as JSON:
// markdown code fences around the object, literal newlines/tabs/carriage
// returns inside string values, stray control characters, and invalid
// escape sequences such as \S emitted by models writing regex-like text.
//
// It scans character by character with an in-string/escaped state machine
// instead of regex chains, so each byte is classified exactly once. Valid
// input is returned unchanged; if repair still does not yield parseable
// JSON the original text is returned so the caller can decide.
func RepairJSON(raw string) string {
	text := fenceCloseRe.ReplaceAllString(fenceOpenRe.ReplaceAllString(raw, ""), "")
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return raw
	}
	text = text[start : end+1]

	if json.Valid([]byte(text)) {
		return text
	}

	var out strings.Builder
	out.Grow(len(text) + 16)
	inStr := false
	escaped := false
	for _, c := range text {
		if escaped {
			// Canonical JSON escapes: " \ / b f n r t u
			if strings.ContainsRune(`"\/bfnrtu`, c) {
				out.WriteRune(c)
			} else {
				// Invalid escape like \S becomes a literal backslash + S.
				out.WriteByte('\\')
				out.WriteRune(c)
			}
			escaped = false
			continue
		}
		if c == '\\' && inStr {
			out.WriteRune(c)
			escaped = true
			continue
		}
		if c == '"' {
			inStr = !inStr
			out.WriteRune(c)
			continue
		}
		if inStr {
			switch c {
			case '\n':
				out.WriteString(`\n`)
				continue
			case '\r':
				out.WriteString(`\r`)
				continue
			case '\t':
				out.WriteString(`\t`)
				continue
			}
			if c < 0x20 {
				continue
			}
		}
		out.WriteRune(c)
	}

	repaired := out.String()
	if json.Valid([]byte(repaired)) {
		return repaired
	}
	return raw
}
