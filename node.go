// FILE: lixenwraith/forgeconfig/node.go
package forgeconfig

import (
	"fmt"
	"strings"
	"sync"
)

// Descriptor describes a field the way property introspection reports it.
// Environment-backed fields are synthesized as ordinary writable data fields.
type Descriptor struct {
	Value        any
	Writable     bool
	Enumerable   bool
	Configurable bool
	// FromEnv is set when the value was synthesized from the environment
	FromEnv bool
}

// tree holds the state shared by every node of one wrapped configuration
type tree struct {
	mutex     sync.Mutex // Protects records and child memos across the whole tree
	env       EnvLookup
	transform EnvTransformFunc
}

// Node is the environment-fallback accessor over a record. Reads of keys the
// record does not own fall back to an environment variable derived from the
// node's key path; writes go straight to the record and win from then on.
// Record-valued fields are returned as child nodes, everything else as-is.
type Node struct {
	t        *tree
	rec      *Record
	path     []string
	children map[string]*Node // Memoized child nodes keyed by field
}

// Wrap creates the root node over rec. A nil env reads the process environment.
func Wrap(rec *Record, env EnvLookup, prefix string) *Node {
	return WrapWithTransform(rec, env, DefaultEnvTransform(prefix))
}

// WrapWithTransform is like Wrap with a custom key path to env name transformer
func WrapWithTransform(rec *Record, env EnvLookup, transform EnvTransformFunc) *Node {
	if rec == nil {
		rec = NewRecord()
	}
	if env == nil {
		env = OSEnv{}
	}
	if transform == nil {
		transform = DefaultEnvTransform(DefaultEnvPrefix)
	}
	return &Node{
		t:   &tree{env: env, transform: transform},
		rec: rec,
	}
}

// Get returns the value of key: the own value if the record has key, else the
// non-empty environment value for the derived name, else (nil, false).
// Environment values are read on every call and never stored.
func (n *Node) Get(key string) (any, bool) {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	return n.get(key)
}

// Value is Get without the presence flag. Unset keys read as nil.
func (n *Node) Value(key string) any {
	v, _ := n.Get(key)
	return v
}

// Child returns the node for a record-valued key
func (n *Node) Child(key string) (*Node, bool) {
	v, _ := n.Get(key)
	c, ok := v.(*Node)
	return c, ok
}

// Set writes value to the record at key. Plain maps are stored as records
// and nodes as their underlying records.
func (n *Node) Set(key string, value any) {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	n.set(key, value)
}

// Delete removes an own key, re-exposing the environment fallback for it
func (n *Node) Delete(key string) {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	n.rec.Delete(key)
	delete(n.children, key)
}

// Has reports whether key reads as set, from the record or the environment
func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// HasOwn reports whether the underlying record owns key. It never consults
// the environment.
func (n *Node) HasOwn(key string) bool {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	return n.rec.Has(key)
}

// Descriptor returns the field descriptor of key. Own fields report their
// stored value; missing fields with a set environment variable report a
// synthesized writable, enumerable, configurable descriptor.
func (n *Node) Descriptor(key string) (Descriptor, bool) {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()

	if v, ok := n.rec.Get(key); ok {
		return Descriptor{Value: n.wrap(key, v), Writable: true, Enumerable: true, Configurable: true}, true
	}
	if v, ok := n.lookupEnv(key); ok {
		return Descriptor{Value: v, Writable: true, Enumerable: true, Configurable: true, FromEnv: true}, true
	}
	return Descriptor{}, false
}

// Keys returns the record's own keys in order
func (n *Node) Keys() []string {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	return n.rec.Keys()
}

// Path returns the key path from the root to this node
func (n *Node) Path() []string {
	out := make([]string, len(n.path))
	copy(out, n.path)
	return out
}

// EnvName returns the environment variable consulted for key
func (n *Node) EnvName(key string) string {
	return n.t.transform(n.childPath(key))
}

// Record returns the underlying record. Mutating it directly bypasses the
// node's lock.
func (n *Node) Record() *Record {
	return n.rec
}

// Map returns a plain snapshot of the own values below this node. Environment
// fallbacks are not included since they have no own key to report under.
func (n *Node) Map() map[string]any {
	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()
	return n.rec.Map()
}

// Lookup reads a dot-separated path such as "s3.secretAccessKey"
func (n *Node) Lookup(path string) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()

	current := n
	for i, segment := range segments {
		v, ok := current.get(segment)
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		next, isNode := v.(*Node)
		if !isNode {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// SetPath writes value at a dot-separated path, creating intermediate records
// for keys the records do not own. An intermediate own value that is not a
// record yields ErrNotRecord.
func (n *Node) SetPath(path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	n.t.mutex.Lock()
	defer n.t.mutex.Unlock()

	current := n
	for _, segment := range segments[:len(segments)-1] {
		v, owned := current.rec.Get(segment)
		if !owned || v == nil {
			current.set(segment, NewRecord())
			v, _ = current.rec.Get(segment)
		}
		if _, ok := v.(*Record); !ok {
			return fmt.Errorf("%w: %s at %q holds %T", ErrNotRecord, segment, strings.Join(current.childPath(segment), "."), v)
		}
		current = current.wrap(segment, v).(*Node)
	}
	current.set(segments[len(segments)-1], value)
	return nil
}

// Walk visits every own non-record value below this node, depth-first in key
// order. Records inside sequences are not visited.
func (n *Node) Walk(fn func(path []string, value any)) {
	type leaf struct {
		path  []string
		value any
	}
	var leaves []leaf

	n.t.mutex.Lock()
	walkRecord(n.rec, n.Path(), func(p []string, v any) {
		leaves = append(leaves, leaf{p, v})
	})
	n.t.mutex.Unlock()

	for _, l := range leaves {
		fn(l.path, l.value)
	}
}

func walkRecord(r *Record, path []string, fn func([]string, any)) {
	for _, key := range r.keys {
		p := append(append(make([]string, 0, len(path)+1), path...), key)
		if child, ok := r.values[key].(*Record); ok {
			walkRecord(child, p, fn)
			continue
		}
		fn(p, r.values[key])
	}
}

func (n *Node) get(key string) (any, bool) {
	if v, ok := n.rec.Get(key); ok {
		return n.wrap(key, v), true
	}
	if v, ok := n.lookupEnv(key); ok {
		return v, true
	}
	return nil, false
}

func (n *Node) set(key string, value any) {
	n.rec.Set(key, normalize(value))
	delete(n.children, key)
}

// wrap returns the memoized child node for record values and v itself otherwise
func (n *Node) wrap(key string, v any) any {
	r, ok := v.(*Record)
	if !ok {
		return v
	}
	if c, ok := n.children[key]; ok && c.rec == r {
		return c
	}
	c := &Node{t: n.t, rec: r, path: n.childPath(key)}
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	n.children[key] = c
	return c
}

// lookupEnv treats an empty variable as unset
func (n *Node) lookupEnv(key string) (string, bool) {
	v, ok := n.t.env.LookupEnv(n.t.transform(n.childPath(key)))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (n *Node) childPath(key string) []string {
	p := make([]string, len(n.path), len(n.path)+1)
	copy(p, n.path)
	return append(p, key)
}
