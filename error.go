// FILE: lixenwraith/forgeconfig/error.go
package forgeconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound is returned when the project manifest is missing and
	// the builder was told to require it
	ErrManifestNotFound = errors.New("project manifest not found")
	// ErrInvalidManifest is returned when the manifest's config field has an unsupported type
	ErrInvalidManifest = errors.New("invalid project manifest")
	// ErrNoProvider is returned when no source provider handles a referenced file
	ErrNoProvider = errors.New("no configuration source provider for file")
	// ErrInvalidExport is returned when a configuration module does not export a record
	ErrInvalidExport = errors.New("configuration module must export a record or a function returning one")
	// ErrNotCallable is returned by Invoke for values that cannot be called
	ErrNotCallable = errors.New("value is not callable")
	// ErrNotFound is returned by typed accessors when a key has no own or environment value
	ErrNotFound = errors.New("configuration key not set")
	// ErrNotRecord is returned when a path traverses a non-record value
	ErrNotRecord = errors.New("configuration value is not a record")
	// ErrUnknownPlugin is returned when a configured plugin has no registered factory
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrInvalidPath is returned for malformed dotted key paths
	ErrInvalidPath = errors.New("invalid key path")
	// ErrCyclicTable is returned when a script exports a table that contains itself
	ErrCyclicTable = errors.New("cyclic table")
)

// LoadError records the file whose loading failed. It unwraps to the
// underlying cause so errors.Is/As keep working through it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load configuration from '%s': %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *LoadError) Unwrap() error { return e.Err }
