// FILE: lixenwraith/forgeconfig/loader.go
package forgeconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// DefaultManifestName is the project manifest read from the project root
	DefaultManifestName = "package.json"
	// ConventionalConfigName is the base name of the configuration module used
	// when the manifest does not reference one
	ConventionalConfigName = "forge.config"
)

// Manifest holds the parts of the project manifest the engine reads
type Manifest struct {
	Name        string `json:"name"`
	ProductName string `json:"productName"`
	Version     string `json:"version"`
	Config      struct {
		// Forge is either an inline record or a path to a configuration module
		Forge json.RawMessage `json:"forge"`
	} `json:"config"`
}

// AppName returns the product name, falling back to the package name
func (m Manifest) AppName() string {
	if m.ProductName != "" {
		return m.ProductName
	}
	return m.Name
}

// SourceProvider evaluates a configuration module file into a value graph.
// Providers are selected by file extension.
type SourceProvider interface {
	// Extensions lists the lower-case extensions handled, including the dot
	Extensions() []string
	// Load evaluates the file and returns its exported value. A Callable
	// export is invoked by the loader, not by the provider.
	Load(ctx context.Context, path string) (any, error)
}

// LoadResult is the raw configuration with the information found next to it
type LoadResult struct {
	Raw      *Record
	Manifest Manifest
	// ManifestFound is false when the project has no manifest
	ManifestFound bool
	// SourcePath is the configuration module that was evaluated, empty when the
	// configuration was inline in the manifest or absent
	SourcePath string
}

// Loader locates and loads a project's raw configuration
type Loader struct {
	ManifestName    string
	Providers       []SourceProvider
	RequireManifest bool
	Logger          *log.Logger
}

// NewLoader creates a loader with the default manifest name and providers
func NewLoader() *Loader {
	return &Loader{
		ManifestName: DefaultManifestName,
		Providers:    DefaultProviders(),
		Logger:       log.New(io.Discard),
	}
}

// DefaultProviders returns the built-in source providers in lookup order
func DefaultProviders() []SourceProvider {
	return []SourceProvider{
		NewLuaProvider(),
		NewHCLProvider(),
		NewDataProvider(),
	}
}

// Load reads the manifest in dir and produces the raw configuration.
// The manifest's config.forge field is used directly when it is a record and
// treated as a module path relative to dir when it is a string. Without it
// the conventional forge.config.<ext> module is tried for every provider
// extension; if none exists the configuration is an empty record.
func (l *Loader) Load(ctx context.Context, dir string) (*LoadResult, error) {
	logger := l.logger()
	res := &LoadResult{}

	manifestPath := filepath.Join(dir, l.manifestName())
	manifest, found, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if !found && l.RequireManifest {
		return nil, &LoadError{Path: manifestPath, Err: ErrManifestNotFound}
	}
	res.Manifest = manifest
	res.ManifestFound = found
	logger.Debug("manifest read", "path", manifestPath, "found", found)

	forge := bytes.TrimSpace(manifest.Config.Forge)
	switch {
	case len(forge) == 0 || bytes.Equal(forge, []byte("null")):
		path, ok := l.findConventional(dir)
		if !ok {
			logger.Debug("no configuration module found, using empty configuration", "dir", dir)
			res.Raw = NewRecord()
			return res, nil
		}
		res.SourcePath = path

	case forge[0] == '{':
		raw, err := decodeJSON(forge)
		if err != nil {
			return nil, &LoadError{Path: manifestPath, Err: fmt.Errorf("config.forge: %w", err)}
		}
		rec, ok := raw.(*Record)
		if !ok {
			return nil, &LoadError{Path: manifestPath, Err: fmt.Errorf("%w: config.forge must be a record or a module path", ErrInvalidManifest)}
		}
		res.Raw = rec
		return res, nil

	case forge[0] == '"':
		var rel string
		if err := json.Unmarshal(forge, &rel); err != nil {
			return nil, &LoadError{Path: manifestPath, Err: fmt.Errorf("config.forge: %w", err)}
		}
		res.SourcePath = rel
		if !filepath.IsAbs(rel) {
			res.SourcePath = filepath.Join(dir, rel)
		}

	default:
		return nil, &LoadError{Path: manifestPath, Err: fmt.Errorf("%w: config.forge must be a record or a module path", ErrInvalidManifest)}
	}

	raw, err := l.LoadModule(ctx, res.SourcePath)
	if err != nil {
		return nil, err
	}
	res.Raw = raw
	return res, nil
}

// LoadModule evaluates a configuration module with the provider registered for
// its extension. A callable export is invoked without arguments and its result
// used instead. Evaluation errors are returned as *LoadError wrapping the
// provider's error.
func (l *Loader) LoadModule(ctx context.Context, path string) (*Record, error) {
	provider := l.providerFor(path)
	if provider == nil {
		return nil, &LoadError{Path: path, Err: ErrNoProvider}
	}

	l.logger().Debug("evaluating configuration module", "path", path)
	exported, err := provider.Load(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if IsCallable(exported) {
		exported, err = Invoke(exported)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}

	rec, ok := normalize(exported).(*Record)
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: got %s", ErrInvalidExport, KindOf(exported))}
	}
	return rec, nil
}

// providerFor returns the provider handling path's extension
func (l *Loader) providerFor(path string) SourceProvider {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range l.Providers {
		for _, e := range p.Extensions() {
			if e == ext {
				return p
			}
		}
	}
	return nil
}

// findConventional looks for forge.config.<ext> in provider order
func (l *Loader) findConventional(dir string) (string, bool) {
	for _, p := range l.Providers {
		for _, ext := range p.Extensions() {
			path := filepath.Join(dir, ConventionalConfigName+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

func (l *Loader) manifestName() string {
	if l.ManifestName == "" {
		return DefaultManifestName
	}
	return l.ManifestName
}

func (l *Loader) logger() *log.Logger {
	if l.Logger == nil {
		return log.New(io.Discard)
	}
	return l.Logger
}

// readManifest parses the manifest at path. A missing file is not an error.
func readManifest(path string) (Manifest, bool, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, false, nil
		}
		return m, false, &LoadError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, true, &LoadError{Path: path, Err: fmt.Errorf("%w: %w", ErrInvalidManifest, err)}
	}
	return m, true, nil
}

// decodeJSON decodes data preserving number precision and object key order.
// Objects become records, arrays sequences.
func decodeJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // Preserve number precision
	v, err := decodeJSONValue(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return v, nil
}

func decodeJSONValue(decoder *json.Decoder) (any, error) {
	tok, err := decoder.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return normalize(tok), nil
	}

	switch delim {
	case '{':
		rec := NewRecord()
		for decoder.More() {
			keyTok, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key must be a string, got %v", keyTok)
			}
			v, err := decodeJSONValue(decoder)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			rec.Set(key, v)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return rec, nil

	case '[':
		seq := make([]any, 0)
		for decoder.More() {
			v, err := decodeJSONValue(decoder)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", len(seq), err)
			}
			seq = append(seq, v)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return seq, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}
