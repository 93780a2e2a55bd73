// FILE: lixenwraith/forgeconfig/provider_data.go
package forgeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize bounds data files read by DataProvider
const DefaultMaxFileSize int64 = 10 << 20

// DataProvider loads declarative configuration files: JSON (with comments and
// trailing commas tolerated), YAML and TOML. Data files cannot express
// selectors, patterns or callables.
type DataProvider struct {
	// Format forces a format ("json", "yaml", "toml"); empty or "auto" detects
	Format string
	// MaxFileSize rejects larger files; zero or negative disables the check
	MaxFileSize int64
}

// NewDataProvider creates a data provider with format auto-detection
func NewDataProvider() *DataProvider {
	return &DataProvider{Format: "auto", MaxFileSize: DefaultMaxFileSize}
}

// Extensions implements SourceProvider
func (p *DataProvider) Extensions() []string {
	return []string{".json", ".jsonc", ".yaml", ".yml", ".toml", ".tml"}
}

// Load implements SourceProvider
func (p *DataProvider) Load(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if p.MaxFileSize > 0 && fileInfo.Size() > p.MaxFileSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, p.MaxFileSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if p.MaxFileSize > 0 {
		reader = io.LimitReader(file, p.MaxFileSize)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	format := p.Format
	if format == "" || format == "auto" {
		// Try extension first
		format = detectFileFormat(path)
		if format == "" {
			format = detectFormatFromContent(data)
		}
	}

	v, err := parseData(format, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config file '%s': %w", strings.ToUpper(format), path, err)
	}
	return normalize(v), nil
}

// parseData decodes data in the named format into plain Go values
func parseData(format string, data []byte) (any, error) {
	switch format {
	case "json":
		return decodeJSON(jsonc.ToJSON(data))
	case "yaml":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return yamlNodeToValue(&doc)
	case "toml":
		v := make(map[string]any)
		md, err := toml.Decode(string(data), &v)
		if err != nil {
			return nil, err
		}
		return tomlToRecord(v, nil, tomlKeyRanks(md)), nil
	}
	return nil, errors.New("unable to determine config format")
}

// yamlNodeToValue converts a parsed YAML document keeping mapping key order.
// Mappings become records, merge keys are applied, scalars decode as yaml.v3 would.
func yamlNodeToValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil // Empty document
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlNodeToValue(n.Content[0])
	case yaml.AliasNode:
		return yamlNodeToValue(n.Alias)
	case yaml.SequenceNode:
		seq := make([]any, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := yamlNodeToValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.MappingNode:
		rec := NewRecord()
		var merged []*Record
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valueNode := n.Content[i], n.Content[i+1]
			if keyNode.Tag == "!!merge" {
				sources, err := yamlMergeSources(valueNode)
				if err != nil {
					return nil, err
				}
				merged = append(merged, sources...)
				continue
			}
			if keyNode.Kind == yaml.AliasNode {
				keyNode = keyNode.Alias
			}
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			v, err := yamlNodeToValue(valueNode)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", keyNode.Value, err)
			}
			rec.Set(keyNode.Value, v)
		}
		// Explicit keys win over merged ones
		for _, src := range merged {
			for _, k := range src.Keys() {
				if !rec.Has(k) {
					v, _ := src.Get(k)
					rec.Set(k, v)
				}
			}
		}
		return rec, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

// yamlMergeSources returns the mappings named by a "<<" merge key
func yamlMergeSources(n *yaml.Node) ([]*Record, error) {
	v, err := yamlNodeToValue(n)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case *Record:
		return []*Record{t}, nil
	case []any:
		out := make([]*Record, 0, len(t))
		for _, e := range t {
			rec, ok := e.(*Record)
			if !ok {
				return nil, fmt.Errorf("line %d: merge sequence must hold mappings", n.Line)
			}
			out = append(out, rec)
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: merge value must be a mapping", n.Line)
}

// tomlKeyRanks maps every defined key path to its position in the document
func tomlKeyRanks(md toml.MetaData) map[string]int {
	keys := md.Keys()
	ranks := make(map[string]int, len(keys))
	for i, key := range keys {
		path := key.String()
		if _, seen := ranks[path]; !seen {
			ranks[path] = i
		}
	}
	return ranks
}

// tomlToRecord converts decoded TOML into records ordered as the document
// defines them. Keys the metadata does not rank go last, sorted.
func tomlToRecord(m map[string]any, prefix []string, ranks map[string]int) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rank := func(k string) (int, bool) {
		r, ok := ranks[toml.Key(append(append([]string{}, prefix...), k)).String()]
		return r, ok
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank(keys[i])
		rj, jok := rank(keys[j])
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})

	rec := NewRecord()
	for _, k := range keys {
		path := append(append([]string{}, prefix...), k)
		rec.Set(k, tomlValue(m[k], path, ranks))
	}
	return rec
}

func tomlValue(v any, path []string, ranks map[string]int) any {
	switch t := v.(type) {
	case map[string]any:
		return tomlToRecord(t, path, ranks)
	case []map[string]any:
		// Arrays of tables
		seq := make([]any, len(t))
		for i, e := range t {
			seq[i] = tomlToRecord(e, path, ranks)
		}
		return seq
	case []any:
		for i, e := range t {
			t[i] = tomlValue(e, path, ranks)
		}
		return t
	}
	return v
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json", ".jsonc":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(jsonc.ToJSON(data), &jsonTest); err == nil {
		return "json"
	}

	// Try YAML (superset of JSON, so check after JSON)
	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	// Try TOML last
	var tomlTest any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	return ""
}
