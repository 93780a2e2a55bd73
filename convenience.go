// FILE: lixenwraith/forgeconfig/convenience.go
package forgeconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FunctionPlaceholder is how callables appear in exported output
const FunctionPlaceholder = "[Function]"

// Quick resolves dir with a custom environment prefix
func Quick(ctx context.Context, dir, envPrefix string) (*Node, error) {
	return NewBuilder().WithEnvPrefix(envPrefix).Build(ctx, dir)
}

// MustQuick is like Quick but panics on error
func MustQuick(ctx context.Context, dir, envPrefix string) *Node {
	cfg, err := Quick(ctx, dir, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("config initialization failed: %v", err))
	}
	return cfg
}

// Required returns a validator failing when any of the dot-separated paths is
// unset or nil, in the record and in the environment
func Required(paths ...string) ValidatorFunc {
	return func(cfg *Node) error {
		var missing []string
		for _, path := range paths {
			if v, ok := cfg.Lookup(path); !ok || v == nil {
				missing = append(missing, path)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

// EnvBinding describes one leaf of the configuration and the variable that
// would override it if the leaf were not set
type EnvBinding struct {
	Path    string
	EnvName string
	Value   any
}

// EnvBindings lists every own leaf below n with its derived variable name
func (n *Node) EnvBindings() []EnvBinding {
	var out []EnvBinding
	n.Walk(func(path []string, value any) {
		if _, isPI := value.(*PluginInterface); isPI {
			return
		}
		out = append(out, EnvBinding{
			Path:    strings.Join(path, "."),
			EnvName: n.t.transform(path),
			Value:   value,
		})
	})
	return out
}

// Debug returns a formatted listing of the own values and their variables
func (n *Node) Debug() string {
	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	for _, binding := range n.EnvBindings() {
		b.WriteString(fmt.Sprintf("  %s = %v (%s)\n", binding.Path, Printable(binding.Value), binding.EnvName))
	}
	return b.String()
}

// Export writes the own values below n in format "json", "yaml" or "toml".
// Callables are written as a placeholder, patterns as their source and the
// plugin interface as the list of loaded plugin names.
func (n *Node) Export(w io.Writer, format string) error {
	n.t.mutex.Lock()
	snapshot, _ := Printable(n.rec).(*Record)
	n.t.mutex.Unlock()

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snapshot)
	case "yaml", "yml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(snapshot); err != nil {
			return err
		}
		return encoder.Close()
	case "toml", "tml":
		return toml.NewEncoder(w).Encode(dropNil(snapshot.Map()))
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// Save writes the own values below n to path, choosing the format from the
// extension. It performs an atomic write using a temporary file.
func (n *Node) Save(path string) error {
	format := detectFileFormat(path)
	if format == "" {
		return fmt.Errorf("unable to determine format for '%s'", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer os.Remove(tempFile.Name()) // Clean up temp file if rename fails

	if err := n.Export(tempFile, format); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temp config file '%s': %w", tempFile.Name(), err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp config file '%s': %w", tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file '%s': %w", tempFile.Name(), err)
	}

	if err := os.Rename(tempFile.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file to '%s': %w", path, err)
	}
	return nil
}

// Clone returns an independent node over a deep copy of the records below n.
// Sequences, patterns and callables are shared with the original.
func (n *Node) Clone() *Node {
	n.t.mutex.Lock()
	rec := cloneRecord(n.rec)
	n.t.mutex.Unlock()

	return &Node{
		t:    &tree{env: n.t.env, transform: n.t.transform},
		rec:  rec,
		path: n.Path(),
	}
}

func cloneRecord(r *Record) *Record {
	out := NewRecord()
	for _, k := range r.keys {
		v := r.values[k]
		if child, ok := v.(*Record); ok {
			v = cloneRecord(child)
		}
		out.Set(k, v)
	}
	return out
}

// Printable converts a value graph into one every encoder accepts. Records are
// copied, so the result can be encoded without holding the configuration lock.
func Printable(v any) any {
	switch t := v.(type) {
	case *Record:
		out := NewRecord()
		for _, k := range t.keys {
			out.Set(k, Printable(t.values[k]))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Printable(e)
		}
		return out
	case *Node:
		t.t.mutex.Lock()
		defer t.t.mutex.Unlock()
		return Printable(t.rec)
	case *regexp.Regexp:
		return t.String()
	case *PluginInterface:
		names := make([]any, 0, len(t.plugins))
		for _, p := range t.plugins {
			names = append(names, p.Name())
		}
		return names
	}

	switch KindOf(v) {
	case KindCallable:
		return FunctionPlaceholder
	case KindOpaque, KindSelector:
		return fmt.Sprint(v)
	}
	return v
}

// dropNil removes nil values, which TOML cannot represent
func dropNil(m map[string]any) map[string]any {
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			dropNil(t)
		}
	}
	return m
}
