// FILE: lixenwraith/forgeconfig/plugin.go
package forgeconfig

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// HookResolveForgeConfig runs once after resolution with the wrapped root node.
// Plugins mutate the configuration in place; later consumers see the change.
const HookResolveForgeConfig = "resolveForgeConfig"

// HookFunc is a plugin hook. cfg is the shared resolved configuration.
type HookFunc func(ctx context.Context, cfg *Node, args ...any) error

// Plugin is a named bundle of hooks
type Plugin interface {
	Name() string
	// Hook returns the handler for name, or nil if the plugin does not handle it
	Hook(name string) HookFunc
}

// PluginFactory builds a plugin from the options given next to its name
type PluginFactory func(options any) (Plugin, error)

// PluginRegistry maps plugin names to factories
type PluginRegistry map[string]PluginFactory

// DefaultPluginRegistry returns the built-in plugins
func DefaultPluginRegistry() PluginRegistry {
	return PluginRegistry{
		AutoUnpackNativesName:                             NewAutoUnpackNatives,
		"@electron-forge/plugin-" + AutoUnpackNativesName: NewAutoUnpackNatives,
	}
}

// PluginInterface is the handle later pipeline stages use to query and run
// the configured plugins
type PluginInterface struct {
	plugins []Plugin
	logger  *log.Logger
}

// PluginOption adjusts how NewPluginInterface treats its entries
type PluginOption func(*pluginSettings)

type pluginSettings struct {
	skipUnknown bool
}

// SkipUnknownPlugins logs a warning for plugin names missing from the
// registry and leaves them out instead of failing with ErrUnknownPlugin
func SkipUnknownPlugins() PluginOption {
	return func(s *pluginSettings) { s.skipUnknown = true }
}

// NewPluginInterface instantiates the plugins listed in entries. Each entry is
// a plugin name, a [name, options] sequence, or an already built Plugin.
func NewPluginInterface(entries any, registry PluginRegistry, logger *log.Logger, opts ...PluginOption) (*PluginInterface, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var settings pluginSettings
	for _, opt := range opts {
		opt(&settings)
	}
	pi := &PluginInterface{logger: logger}

	if entries == nil {
		return pi, nil
	}
	list, ok := entries.([]any)
	if !ok {
		return nil, fmt.Errorf("plugins must be a sequence, got %T", entries)
	}

	for i, entry := range list {
		var (
			name    string
			options any
		)
		switch e := entry.(type) {
		case Plugin:
			pi.plugins = append(pi.plugins, e)
			continue
		case string:
			name = e
		case []any:
			if len(e) == 0 {
				return nil, fmt.Errorf("plugin entry %d is empty", i)
			}
			if name, ok = e[0].(string); !ok {
				return nil, fmt.Errorf("plugin entry %d: name must be a string, got %T", i, e[0])
			}
			if len(e) > 1 {
				options = e[1]
			}
		default:
			return nil, fmt.Errorf("plugin entry %d has unsupported type %T", i, entry)
		}

		factory, found := registry[name]
		if !found {
			if settings.skipUnknown {
				logger.Warn("skipping unknown plugin", "name", name)
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
		plugin, err := factory(options)
		if err != nil {
			return nil, fmt.Errorf("failed to create plugin %s: %w", name, err)
		}
		logger.Debug("plugin loaded", "name", plugin.Name())
		pi.plugins = append(pi.plugins, plugin)
	}

	return pi, nil
}

// Plugins returns the loaded plugins in configuration order
func (pi *PluginInterface) Plugins() []Plugin {
	out := make([]Plugin, len(pi.plugins))
	copy(out, pi.plugins)
	return out
}

// Has reports whether a plugin with the given name is loaded
func (pi *PluginInterface) Has(name string) bool {
	for _, p := range pi.plugins {
		if p.Name() == name {
			return true
		}
	}
	return false
}

// TriggerHook runs hook name on every plugin that handles it, in order,
// stopping at the first error
func (pi *PluginInterface) TriggerHook(ctx context.Context, name string, cfg *Node, args ...any) error {
	for _, p := range pi.plugins {
		hook := p.Hook(name)
		if hook == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		pi.logger.Debug("running hook", "hook", name, "plugin", p.Name())
		if err := hook(ctx, cfg, args...); err != nil {
			return fmt.Errorf("plugin %s hook %s: %w", p.Name(), name, err)
		}
	}
	return nil
}
