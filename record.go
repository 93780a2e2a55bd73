// FILE: lixenwraith/forgeconfig/record.go
package forgeconfig

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Record is an insertion-ordered mapping of string keys to configuration values.
// It is the only node type the environment-fallback layer wraps.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordOf builds a record from alternating key/value arguments, keeping order.
// Nested map[string]any values are normalized to records.
func RecordOf(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("forgeconfig: RecordOf requires an even number of arguments")
	}
	r := NewRecord()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("forgeconfig: RecordOf key at position %d is %T, not string", i, kv[i]))
		}
		r.Set(key, normalize(kv[i+1]))
	}
	return r
}

// RecordFromMap converts a plain map into a record. Keys are sorted since
// Go maps carry no order.
func RecordFromMap(m map[string]any) *Record {
	r := NewRecord()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, normalize(m[k]))
	}
	return r
}

// Get returns the own value stored at key. The second return value reports
// whether the key is present, even if its value is nil.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is an own key of the record
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Set stores value at key. New keys are appended to the key order.
func (r *Record) Set(key string, value any) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes key from the record
func (r *Record) Delete(key string) {
	if _, exists := r.values[key]; !exists {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the own keys in insertion order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of own keys
func (r *Record) Len() int {
	return len(r.keys)
}

// Map returns a plain nested map snapshot. Records are converted recursively,
// including records held inside sequences; all other values are copied as-is.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = plain(r.values[k])
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in key order.
// Callables and other values encoding/json rejects are skipped.
func (r *Record) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	first := true
	for _, k := range r.keys {
		v, err := json.Marshal(r.values[k])
		if err != nil {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		key, _ := json.Marshal(k)
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// plain converts records to maps, descending into sequences
func plain(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// normalize converts decoded data into the configuration graph representation:
// maps become records (recursively), json.Number becomes int64 or float64, and
// a *Node is unwrapped to its record. Sequence elements are normalized in place
// so the slice keeps its identity.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return RecordFromMap(t)
	case *Node:
		return t.rec
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case []map[string]any:
		// TOML arrays of tables
		seq := make([]any, len(t))
		for i, e := range t {
			seq[i] = RecordFromMap(e)
		}
		return seq
	default:
		return v
	}
}

// MarshalYAML encodes the record as a YAML mapping in key order
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.keys {
		value := &yaml.Node{}
		if err := value.Encode(r.values[k]); err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, value)
	}
	return node, nil
}
