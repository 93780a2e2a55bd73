// FILE: lixenwraith/forgeconfig/value.go
package forgeconfig

import (
	"reflect"
	"regexp"
)

// Callable is a function value carried through the configuration graph.
// Script providers convert exported functions into this form.
type Callable func(args ...any) (any, error)

// Kind classifies a configuration value
type Kind int

const (
	// KindUndefined is a nil value
	KindUndefined Kind = iota
	// KindScalar is a string, number or boolean
	KindScalar
	// KindRecord is a *Record, the only kind the env layer wraps
	KindRecord
	// KindSequence is any slice or array
	KindSequence
	// KindPattern is a compiled *regexp.Regexp
	KindPattern
	// KindCallable is a Callable or any other Go func value
	KindCallable
	// KindSelector is a *Selector awaiting build-identifier resolution
	KindSelector
	// KindOpaque is any other value, passed through untouched
	KindOpaque
)

var kindNames = [...]string{"undefined", "scalar", "record", "sequence", "pattern", "callable", "selector", "opaque"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf reports the kind of v
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindUndefined
	case *Record:
		return KindRecord
	case *Node:
		return KindRecord
	case *Selector:
		return KindSelector
	case *regexp.Regexp:
		return KindPattern
	case Callable:
		return KindCallable
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return KindScalar
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return KindSequence
	case reflect.Func:
		return KindCallable
	}
	return KindOpaque
}

// IsSequence reports whether v is a sequence value
func IsSequence(v any) bool { return KindOf(v) == KindSequence }

// IsCallable reports whether v can be invoked
func IsCallable(v any) bool { return KindOf(v) == KindCallable }

// IsPattern reports whether v is a pattern matcher
func IsPattern(v any) bool { return KindOf(v) == KindPattern }

// Invoke calls a callable value. Plain Go funcs without arguments are supported
// alongside Callable so configurations built in Go can export ordinary closures.
func Invoke(v any, args ...any) (any, error) {
	switch fn := v.(type) {
	case Callable:
		return fn(args...)
	case func() any:
		return fn(), nil
	case func() (any, error):
		return fn()
	case func() *Record:
		return fn(), nil
	case func() map[string]any:
		return fn(), nil
	}
	return nil, ErrNotCallable
}
