// FILE: lixenwraith/forgeconfig/env.go
package forgeconfig

import (
	"os"
	"strings"
	"unicode"
)

// DefaultEnvPrefix is prepended to every derived environment variable name
const DefaultEnvPrefix = "ELECTRON_FORGE_"

// EnvLookup is the read-only key/value source consulted for unset fields
type EnvLookup interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment
type OSEnv struct{}

// LookupEnv implements EnvLookup
func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is a fixed environment, used by tests and embedders
type MapEnv map[string]string

// LookupEnv implements EnvLookup
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvTransformFunc converts a key path to an environment variable name
type EnvTransformFunc func(path []string) string

// DefaultEnvTransform creates the default transformer: every key is split
// into words, upper-cased, joined with underscores and prefixed.
// Example: "MYAPP_" turns [s3 secretAccessKey] into "MYAPP_S3_SECRET_ACCESS_KEY".
func DefaultEnvTransform(prefix string) EnvTransformFunc {
	return func(path []string) string {
		return EnvName(prefix, path...)
	}
}

// EnvName derives the environment variable name for a key path
func EnvName(prefix string, path ...string) string {
	var words []string
	for _, key := range path {
		words = append(words, splitWords(key)...)
	}
	return prefix + strings.ToUpper(strings.Join(words, "_"))
}

// splitWords breaks a key at case boundaries and separator characters.
// "secretAccessKey" -> [secret Access Key], "HTTPServer" -> [HTTP Server],
// "s3" -> [s3]. Digits never start a new word.
func splitWords(key string) []string {
	runes := []rune(key)
	var words []string
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush(i)
				start = i
			}
		}
	}
	flush(len(runes))
	return words
}
