// FILE: lixenwraith/forgeconfig/type.go
package forgeconfig

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Typed accessors read key with the environment fallback. Stored values keep
// the types the loader produced (int, int64, float64, bool, string);
// environment values are always strings and are parsed here.

// String retrieves key as a string. Nil reads as the empty string.
func (n *Node) String(key string) (string, error) {
	val, err := n.scalar(key)
	if err != nil {
		return "", err
	}
	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *regexp.Regexp:
		return v.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), nil
	}
	return "", n.convertError(key, val, "string", nil)
}

// Int64 retrieves key as an int64. Strings accept base prefixes like "0x".
// Fractional numbers are rejected rather than truncated.
func (n *Node) Int64(key string) (int64, error) {
	val, err := n.scalar(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
			return int64(v), nil
		}
	case string:
		i, perr := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
		if perr == nil {
			return i, nil
		}
		return 0, n.convertError(key, val, "int64", perr)
	}
	return 0, n.convertError(key, val, "int64", nil)
}

// Bool retrieves key as a boolean, parsing strings with strconv.ParseBool
func (n *Node) Bool(key string) (bool, error) {
	val, err := n.scalar(key)
	if err != nil {
		return false, err
	}
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		b, perr := strconv.ParseBool(strings.TrimSpace(v))
		if perr == nil {
			return b, nil
		}
		return false, n.convertError(key, val, "bool", perr)
	}
	return false, n.convertError(key, val, "bool", nil)
}

// Float64 retrieves key as a float64
func (n *Node) Float64(key string) (float64, error) {
	val, err := n.scalar(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		f, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if perr == nil {
			return f, nil
		}
		return 0, n.convertError(key, val, "float64", perr)
	}
	return 0, n.convertError(key, val, "float64", nil)
}

// scalar reads key, reporting unset keys as ErrNotFound
func (n *Node) scalar(key string) (any, error) {
	val, found := n.Get(key)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n.describe(key))
	}
	return val, nil
}

func (n *Node) convertError(key string, val any, target string, cause error) error {
	if cause != nil {
		return fmt.Errorf("cannot convert %q to %s for %s: %w", val, target, n.describe(key), cause)
	}
	return fmt.Errorf("cannot convert %s value %T to %s for %s", KindOf(val), val, target, n.describe(key))
}

// describe names key by its full path and environment variable for error messages
func (n *Node) describe(key string) string {
	return fmt.Sprintf("%s (env %s)", strings.Join(n.childPath(key), "."), n.EnvName(key))
}
