package config

import (
	"fmt"
	"strings"
)

// normalizeJSONC rewrites JSONC into strict JSON in two passes: comments are
// blanked first, then trailing commas are dropped against the comment-free
// text, so a comma followed by a comment and a closing brace is still
// recognized as trailing. Byte offsets are preserved throughout so decode
// errors still point at the original line/column.
func normalizeJSONC(content string) (string, error) {
	stripped, err := blankComments(content)
	if err != nil {
		return "", err
	}
	return blankTrailingCommas(stripped), nil
}

// blankComments replaces // and /* */ comment bytes with spaces, leaving
// newlines and tabs in place.
func blankComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	const (
		plain = iota
		inString
		inLineComment
		inBlockComment
	)

	state := plain
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch state {
		case inLineComment:
			if ch == '\n' || ch == '\r' {
				state = plain
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}

		case inBlockComment:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				state = plain
				out.WriteString("  ")
				i++
			} else if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}

		case inString:
			out.WriteByte(ch)
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				state = plain
			}

		default:
			if ch == '"' {
				state = inString
				out.WriteByte(ch)
				continue
			}
			if ch == '/' && i+1 < len(content) {
				switch content[i+1] {
				case '/':
					state = inLineComment
					out.WriteString("  ")
					i++
					continue
				case '*':
					state = inBlockComment
					out.WriteString("  ")
					i++
					continue
				}
			}
			out.WriteByte(ch)
		}
	}

	if state == inBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

// blankTrailingCommas replaces commas whose next significant byte closes an
// object or array with spaces. Expects comment-free input.
func blankTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}
		if ch == ',' && nextNonSpaceCloses(content, i+1) {
			out.WriteByte(' ')
			continue
		}
		out.WriteByte(ch)
	}

	return out.String()
}

// nextNonSpaceCloses reports whether the next significant byte ends an object
// or array, which makes the comma at i-1 a trailing comma.
func nextNonSpaceCloses(content string, i int) bool {
	for ; i < len(content); i++ {
		switch content[i] {
		case ' ', '\n', '\r', '\t':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}
