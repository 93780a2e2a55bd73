// FILE: lixenwraith/forgeconfig/decode.go
package forgeconfig

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeTagName is the struct tag read by Decode
const DecodeTagName = "mapstructure"

// Decode decodes the subtree under n into target, which must be a non-nil
// pointer. Own values are decoded as stored. Struct fields without an own value
// are filled from the environment variable derived from their key path, so
// env fallbacks reach typed structs the same way they reach Get.
func (n *Node) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("decode target must be non-nil pointer, got %T", target)
	}

	n.t.mutex.Lock()
	data := n.rec.Map()
	n.fillEnv(data, n.path, rv.Elem().Type())
	n.t.mutex.Unlock()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          DecodeTagName,
		WeaklyTypedInput: true,
		DecodeHook:       decodeHook(),
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode failed for path %q: %w", strings.Join(n.path, "."), err)
	}
	return nil
}

// DecodePath decodes the record at a dot-separated path into target
func (n *Node) DecodePath(path string, target any) error {
	if path == "" {
		return n.Decode(target)
	}
	v, ok := n.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	child, ok := v.(*Node)
	if !ok {
		return fmt.Errorf("%w: %s holds %T", ErrNotRecord, path, v)
	}
	return child.Decode(target)
}

// fillEnv adds env values for struct fields of t that data does not set.
// Caller holds the tree lock.
func (n *Node) fillEnv(data map[string]any, path []string, t reflect.Type) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key, squash := fieldKey(field)
		if key == "-" {
			continue
		}
		if squash {
			n.fillEnv(data, path, field.Type)
			continue
		}

		fieldPath := append(append(make([]string, 0, len(path)+1), path...), key)
		existing, name, present := lookupFold(data, key)

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && !isLeafStruct(ft) {
			if !present {
				sub := make(map[string]any)
				n.fillEnv(sub, fieldPath, ft)
				if len(sub) > 0 {
					data[key] = sub
				}
				continue
			}
			if sub, ok := existing.(map[string]any); ok {
				n.fillEnv(sub, fieldPath, ft)
				data[name] = sub
			}
			continue
		}

		if present {
			continue
		}
		if v, ok := n.t.env.LookupEnv(n.t.transform(fieldPath)); ok && v != "" {
			data[key] = v
		}
	}
}

// fieldKey returns the configuration key of a struct field and whether it is squashed
func fieldKey(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get(DecodeTagName)
	parts := strings.Split(tag, ",")
	name := parts[0]
	squash := false
	for _, opt := range parts[1:] {
		if opt == "squash" {
			squash = true
		}
	}
	if name == "" {
		name = field.Name
	}
	return name, squash
}

// lookupFold finds key in data, falling back to the case-insensitive match
// mapstructure would use
func lookupFold(data map[string]any, key string) (any, string, bool) {
	if v, ok := data[key]; ok {
		return v, key, true
	}
	for k, v := range data {
		if strings.EqualFold(k, key) {
			return v, k, true
		}
	}
	return nil, "", false
}

var leafStructTypes = map[reflect.Type]bool{
	reflect.TypeOf(time.Time{}):     true,
	reflect.TypeOf(url.URL{}):       true,
	reflect.TypeOf(net.IPNet{}):     true,
	reflect.TypeOf(regexp.Regexp{}): true,
}

// isLeafStruct reports struct types decoded from a single scalar
func isLeafStruct(t reflect.Type) bool {
	return leafStructTypes[t]
}

// decodeHook returns the composite decode hook for all type conversions
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		// Network types
		stringToNetIPHookFunc(),
		stringToNetIPNetHookFunc(),
		stringToURLHookFunc(),

		// Pattern matchers
		stringToRegexpHookFunc(),
		regexpToStringHookFunc(),

		// Standard hooks
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// stringToNetIPHookFunc handles net.IP conversion
func stringToNetIPHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(net.IP{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 45 { // Max IPv6 length
			return nil, fmt.Errorf("invalid IP length: %d", len(str))
		}
		ip := net.ParseIP(str)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", str)
		}
		return ip, nil
	}
}

// stringToNetIPNetHookFunc handles net.IPNet conversion
func stringToNetIPNetHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr, targetType := derefType(t)
		if targetType != reflect.TypeOf(net.IPNet{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 49 { // Max IPv6 CIDR length
			return nil, fmt.Errorf("invalid CIDR length: %d", len(str))
		}
		_, ipnet, err := net.ParseCIDR(str)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		if isPtr {
			return ipnet, nil
		}
		return *ipnet, nil
	}
}

// stringToURLHookFunc handles url.URL conversion
func stringToURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr, targetType := derefType(t)
		if targetType != reflect.TypeOf(url.URL{}) {
			return data, nil
		}

		str := data.(string)
		if len(str) > 2048 {
			return nil, fmt.Errorf("URL too long: %d bytes", len(str))
		}
		u, err := url.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if isPtr {
			return u, nil
		}
		return *u, nil
	}
}

// stringToRegexpHookFunc compiles strings into *regexp.Regexp fields
func stringToRegexpHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		isPtr, targetType := derefType(t)
		if !isPtr || targetType != reflect.TypeOf(regexp.Regexp{}) {
			return data, nil
		}
		re, err := regexp.Compile(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return re, nil
	}
}

// regexpToStringHookFunc renders pattern matchers decoded into string fields
func regexpToStringHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		re, ok := data.(*regexp.Regexp)
		if !ok || t.Kind() != reflect.String {
			return data, nil
		}
		return re.String(), nil
	}
}

func derefType(t reflect.Type) (bool, reflect.Type) {
	if t.Kind() == reflect.Ptr {
		return true, t.Elem()
	}
	return false, t
}
