// FILE: lixenwraith/forgeconfig/variant.go
package forgeconfig

// BuildIdentifierKey is the reserved top-level field naming the active build identifier
const BuildIdentifierKey = "buildIdentifier"

// Selector picks a value by build identifier. It only exists between loading
// and ResolveVariants; the resolved graph never contains one.
type Selector struct {
	Values     map[string]any
	Default    any
	HasDefault bool
}

// FromBuildIdentifier creates a selector over values. An optional second
// argument supplies the fallback used when no identifier matches.
func FromBuildIdentifier(values map[string]any, fallback ...any) *Selector {
	s := &Selector{Values: make(map[string]any, len(values))}
	for k, v := range values {
		s.Values[k] = normalize(v)
	}
	if len(fallback) > 0 {
		s.Default = normalize(fallback[0])
		s.HasDefault = true
	}
	return s
}

// Select returns the value for id. defined is false when the build identifier
// itself is undefined, which only the fallback can satisfy.
func (s *Selector) Select(id string, defined bool) any {
	if defined {
		if v, ok := s.Values[id]; ok {
			return v
		}
	}
	if s.HasDefault {
		return s.Default
	}
	return nil
}

// BuildIdentifier reads the reserved identifier field from raw.
// Non-string values are treated as undefined.
func BuildIdentifier(raw *Record) (string, bool) {
	v, ok := raw.Get(BuildIdentifierKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// ResolveVariants replaces every selector reachable through records of raw
// with the value chosen by raw's build identifier. Records are modified in
// place. Sequences, patterns and callables are opaque to this pass, so
// selectors inside sequence elements are left as they are.
func ResolveVariants(raw *Record) {
	id, defined := BuildIdentifier(raw)
	resolveRecord(raw, id, defined)
}

func resolveRecord(r *Record, id string, defined bool) {
	for _, key := range r.keys {
		v := r.values[key]
		if sel, ok := v.(*Selector); ok {
			v = sel.Select(id, defined)
			r.values[key] = v
		}
		if child, ok := v.(*Record); ok {
			resolveRecord(child, id, defined)
		}
	}
}
