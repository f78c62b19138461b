package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeFileName maps separators and '*' to '-' and drops characters that
// need quoting in a download filename.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name))
}

// SanitizeToken lowercases ASCII letters and maps everything other than
// [a-z0-9_-] to '_', trimming '_' and '-' from the ends. Blank or fully
// stripped input yields "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + 'a' - 'A'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	if token = strings.Trim(token, "_-"); token == "" {
		return "unknown"
	}
	return token
}

// SafeUploadName reduces a client-supplied filename to its base name with
// only letters, digits, spaces, dots, hyphens and underscores. Runs of dots
// collapse to one and the result is capped at 255 bytes with the extension
// preserved. Returns "" when nothing usable remains.
func SafeUploadName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	var b strings.Builder
	lastDot := false
	for _, r := range name {
		switch {
		case r == '.':
			if lastDot {
				continue
			}
			lastDot = true
			b.WriteRune(r)
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
		lastDot = false
	}
	out := strings.Trim(strings.TrimSpace(b.String()), ".")
	if len(out) > 255 {
		ext := ""
		if idx := strings.LastIndexByte(out, '.'); idx > 0 && len(out)-idx <= 16 {
			ext = out[idx:]
			out = out[:idx]
		}
		out = truncateUTF8(out, 255-len(ext)) + ext
	}
	return out
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
