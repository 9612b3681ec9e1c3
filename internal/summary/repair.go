package summary

import (
	"errors"
	"strings"
)

// extractJSONObject recovers the first JSON object from model output that may
// wrap it in code fences or surround it with prose.
func extractJSONObject(raw string) (string, error) {
	raw = stripFences(strings.TrimSpace(raw))
	if raw == "" {
		return "", errors.New("empty response")
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", errors.New("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON object in response")
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving any prose outside the fence intact.
func stripFences(raw string) string {
	open := strings.Index(raw, "```")
	if open < 0 {
		return raw
	}
	rest := raw[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop a language tag such as ```json on the fence line.
		if tag := strings.TrimSpace(rest[:nl]); tag == "" || isFenceTag(tag) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
