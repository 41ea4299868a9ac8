package curriculum

import (
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("(?i)\\A```(?:json)?[ \\t]*(?:\\r?\\n)?")
	trailingFence = regexp.MustCompile("(?:\\r?\\n)?[ \\t]*```\\z")
)

// Sanitize strips the formatting artifacts models commonly wrap JSON in:
// surrounding whitespace, a leading and a trailing code fence, trailing
// commas before a closing brace or bracket, and newline/indentation runs.
// Fences are only matched at the very start and end of the text, and the
// comma and whitespace rules never touch the inside of string literals.
//
// Sanitize is idempotent.
func Sanitize(raw string) string {
	s := raw
	for {
		next := sanitizePass(s)
		if next == s {
			return next
		}
		s = next
	}
}

func sanitizePass(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return compactOutsideStrings(s)
}

// compactOutsideStrings drops trailing commas and collapses each newline
// together with the whitespace around it into one space. Bytes inside
// double-quoted strings are copied unchanged.
func compactOutsideStrings(s string) string {
	out := make([]byte, 0, len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			out = append(out, c)
		case ',':
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			out = append(out, c)
		case '\n', '\r':
			for len(out) > 0 && (out[len(out)-1] == ' ' || out[len(out)-1] == '\t') {
				out = out[:len(out)-1]
			}
			for i+1 < len(s) && isSpace(s[i+1]) {
				i++
			}
			out = append(out, ' ')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
