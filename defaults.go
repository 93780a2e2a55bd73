// FILE: lixenwraith/forgeconfig/defaults.go
package forgeconfig

// Reserved top-level keys of the resolved configuration
const (
	KeyPackagerConfig  = "packagerConfig"
	KeyRebuildConfig   = "rebuildConfig"
	KeyMakers          = "makers"
	KeyPublishers      = "publishers"
	KeyPlugins         = "plugins"
	KeyPluginInterface = "pluginInterface"
)

// Baseline returns the fixed default shape every resolved configuration starts from
func Baseline() *Record {
	return RecordOf(
		KeyPackagerConfig, NewRecord(),
		KeyRebuildConfig, NewRecord(),
		KeyMakers, []any{},
		KeyPublishers, []any{},
		KeyPlugins, []any{},
	)
}

// listKeys are the baseline keys holding sequences
var listKeys = map[string]bool{KeyMakers: true, KeyPublishers: true, KeyPlugins: true}

// Overlay lays raw over the baseline. The overlay is shallow: a key present in
// raw replaces the baseline value wholesale and nested records are not merged.
// Baseline keys come first, then raw's remaining keys in raw's order.
// An empty record at a list key is read as an empty list, since script
// languages such as Lua cannot tell {} apart.
func Overlay(raw *Record) *Record {
	out := Baseline()
	if raw == nil {
		return out
	}
	for _, key := range raw.keys {
		v := raw.values[key]
		if r, ok := v.(*Record); ok && r.Len() == 0 && listKeys[key] {
			v = []any{}
		}
		out.Set(key, v)
	}
	return out
}
