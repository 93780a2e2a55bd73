// FILE: lixenwraith/forgeconfig/helper.go
package forgeconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// splitPath splits a dot-separated key path and validates each segment
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if !isValidKeySegment(segment) {
			return nil, fmt.Errorf("%w: invalid segment %q in path %q", ErrInvalidPath, segment, path)
		}
	}
	return segments, nil
}

// isValidKeySegment checks if a single path segment is a usable key.
// Keys are sequences of ASCII letters, digits, underscores, dashes, '@' and '/'.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isPunct := r == '_' || r == '-' || r == '@' || r == '/'

		if !(isLetter || isDigit || isPunct) {
			return false
		}
	}
	return true
}

// ParseValue converts a command-line string into a typed value: booleans,
// integers and floats are recognized, surrounding double quotes are removed,
// anything else stays a string.
func ParseValue(s string) any {
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}

	// Remove quotes if present
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// truthy follows the loose truthiness config authors expect: false, nil, zero,
// empty string and the strings "false"/"0" are false, everything else is true
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}
