// FILE: lixenwraith/forgeconfig/builder.go
package forgeconfig

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// ValidatorFunc validates the resolved configuration after plugins have run
type ValidatorFunc func(cfg *Node) error

// Resolution is the outcome of one resolution run
type Resolution struct {
	// Config is the wrapped, defaults-overlaid configuration
	Config *Node
	// Manifest holds the project manifest metadata, zero if there is none
	Manifest Manifest
	// SourcePath is the evaluated configuration module, empty for inline or absent configuration
	SourcePath string
	// Plugins is the plugin interface also stored under pluginInterface
	Plugins *PluginInterface
}

// Builder provides a fluent interface for resolving a project's configuration
type Builder struct {
	env             EnvLookup
	prefix          string
	transform       EnvTransformFunc
	providers       []SourceProvider
	registry        PluginRegistry
	logger          *log.Logger
	manifestName    string
	requireManifest bool
	skipUnknown     bool
	validators      []ValidatorFunc
}

// NewBuilder creates a builder reading the process environment with the
// default prefix, the built-in providers and the built-in plugins
func NewBuilder() *Builder {
	return &Builder{
		env:          OSEnv{},
		prefix:       DefaultEnvPrefix,
		providers:    DefaultProviders(),
		registry:     DefaultPluginRegistry(),
		logger:       log.New(io.Discard),
		manifestName: DefaultManifestName,
		validators:   make([]ValidatorFunc, 0),
	}
}

// WithEnv sets the environment consulted for unset fields
func (b *Builder) WithEnv(env EnvLookup) *Builder {
	b.env = env
	return b
}

// WithEnvPrefix sets the environment variable prefix
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// WithEnvTransform sets a custom key path to environment variable transformer.
// It takes precedence over the prefix.
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.transform = fn
	return b
}

// WithProvider registers a source provider ahead of the existing ones, so it
// wins for extensions it shares with them
func (b *Builder) WithProvider(p SourceProvider) *Builder {
	b.providers = append([]SourceProvider{p}, b.providers...)
	return b
}

// WithoutScripts removes every provider that evaluates code, leaving only
// declarative data files
func (b *Builder) WithoutScripts() *Builder {
	kept := b.providers[:0:0]
	for _, p := range b.providers {
		if _, ok := p.(*DataProvider); ok {
			kept = append(kept, p)
		}
	}
	b.providers = kept
	return b
}

// WithPlugins replaces the plugin registry
func (b *Builder) WithPlugins(registry PluginRegistry) *Builder {
	b.registry = registry
	return b
}

// WithLogger sets the logger for load, provider and hook events
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithManifestName sets the manifest file name looked up in the project root
func (b *Builder) WithManifestName(name string) *Builder {
	b.manifestName = name
	return b
}

// RequireManifest makes a missing manifest fail with ErrManifestNotFound
func (b *Builder) RequireManifest() *Builder {
	b.requireManifest = true
	return b
}

// IgnoreUnknownPlugins makes plugins missing from the registry a logged
// warning instead of a resolution error
func (b *Builder) IgnoreUnknownPlugins() *Builder {
	b.skipUnknown = true
	return b
}

// WithValidator adds a validation function that runs at the end of the build process.
// Multiple validators are executed in the order they are added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Load resolves the configuration of the project in dir: load, resolve build
// identifier variants, overlay defaults, attach the plugin interface, wrap with
// the environment fallback and run the resolveForgeConfig hook.
func (b *Builder) Load(ctx context.Context, dir string) (*Resolution, error) {
	loader := &Loader{
		ManifestName:    b.manifestName,
		Providers:       b.providers,
		RequireManifest: b.requireManifest,
		Logger:          b.logger,
	}
	loaded, err := loader.Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	ResolveVariants(loaded.Raw)
	resolved := Overlay(loaded.Raw)

	plugins, _ := resolved.Get(KeyPlugins)
	var pluginOpts []PluginOption
	if b.skipUnknown {
		pluginOpts = append(pluginOpts, SkipUnknownPlugins())
	}
	pi, err := NewPluginInterface(plugins, b.registry, b.logger, pluginOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}
	resolved.Set(KeyPluginInterface, pi)

	transform := b.transform
	if transform == nil {
		transform = DefaultEnvTransform(b.prefix)
	}
	cfg := WrapWithTransform(resolved, b.env, transform)

	if err := pi.TriggerHook(ctx, HookResolveForgeConfig, cfg); err != nil {
		return nil, err
	}

	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	b.logger.Debug("configuration resolved", "dir", dir, "source", loaded.SourcePath, "plugins", len(pi.Plugins()))
	return &Resolution{
		Config:     cfg,
		Manifest:   loaded.Manifest,
		SourcePath: loaded.SourcePath,
		Plugins:    pi,
	}, nil
}

// Build is Load returning only the resolved configuration
func (b *Builder) Build(ctx context.Context, dir string) (*Node, error) {
	res, err := b.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild(ctx context.Context, dir string) *Node {
	cfg, err := b.Build(ctx, dir)
	if err != nil {
		panic(fmt.Sprintf("config build failed: %v", err))
	}
	return cfg
}

// Resolve resolves the configuration in dir with the default builder
func Resolve(ctx context.Context, dir string) (*Node, error) {
	return NewBuilder().Build(ctx, dir)
}

// Plugins returns the plugin interface attached to a resolved configuration
func Plugins(cfg *Node) (*PluginInterface, bool) {
	pi, ok := cfg.Value(KeyPluginInterface).(*PluginInterface)
	return pi, ok
}
