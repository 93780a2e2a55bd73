// FILE: lixenwraith/forgeconfig/example/main.go
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lixenwraith/forgeconfig"
)

const manifest = `{
  "name": "demo-app",
  "productName": "Demo App",
  "version": "1.0.0",
  "config": { "forge": "./forge.config.lua" }
}`

const script = `
return function()
  return {
    buildIdentifier = "beta",
    packagerConfig = {
      asar = true,
      appBundleId = from_build_identifier({ beta = "com.demo.beta", prod = "com.demo" }),
      ignore = regexp("^/(test|docs)"),
    },
    s3 = { bucket = "demo-releases" },
    plugins = { { "auto-unpack-natives", {} }, "release-notes" },
  }
end
`

// S3Config is the typed view of the s3 section
type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	SecretAccessKey string        `mapstructure:"secretAccessKey"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// releaseNotes shows a plugin adding configuration in the resolveForgeConfig hook
type releaseNotes struct{}

func (releaseNotes) Name() string { return "release-notes" }

func (releaseNotes) Hook(name string) forgeconfig.HookFunc {
	if name != forgeconfig.HookResolveForgeConfig {
		return nil
	}
	return func(_ context.Context, cfg *forgeconfig.Node, _ ...any) error {
		return cfg.SetPath("releaseNotes.channel", "beta")
	}
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "example", Level: log.DebugLevel})

	dir, err := os.MkdirTemp("", "forgeconfig-example")
	if err != nil {
		logger.Fatal("failed to create project dir", "error", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0644); err != nil {
		logger.Fatal("failed to write manifest", "error", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "forge.config.lua"), []byte(script), 0644); err != nil {
		logger.Fatal("failed to write configuration module", "error", err)
	}

	registry := forgeconfig.DefaultPluginRegistry()
	registry["release-notes"] = func(any) (forgeconfig.Plugin, error) { return releaseNotes{}, nil }

	env := forgeconfig.MapEnv{
		"ELECTRON_FORGE_S3_SECRET_ACCESS_KEY": "from-env",
		"ELECTRON_FORGE_S3_TIMEOUT":           "30s",
	}

	res, err := forgeconfig.NewBuilder().
		WithEnv(env).
		WithPlugins(registry).
		WithLogger(logger).
		WithValidator(forgeconfig.Required("s3.bucket", "s3.secretAccessKey")).
		Load(context.Background(), dir)
	if err != nil {
		logger.Fatal("resolution failed", "error", err)
	}
	cfg := res.Config

	bundleID, _ := cfg.Lookup("packagerConfig.appBundleId")
	unpack, _ := cfg.Lookup("packagerConfig.asar.unpack")
	channel, _ := cfg.Lookup("releaseNotes.channel")
	logger.Info("resolved", "app", res.Manifest.AppName(), "bundleId", bundleID, "unpack", unpack, "channel", channel)

	var s3 S3Config
	if err := cfg.DecodePath("s3", &s3); err != nil {
		logger.Fatal("decode failed", "error", err)
	}
	logger.Info("s3", "bucket", s3.Bucket, "secret", s3.SecretAccessKey, "timeout", s3.Timeout)

	// Explicit writes win over the environment
	s3Node, _ := cfg.Child("s3")
	s3Node.Set("secretAccessKey", "explicit")
	logger.Info("after write", "secret", s3Node.Value("secretAccessKey"))

	if err := cfg.Export(os.Stdout, "yaml"); err != nil {
		logger.Fatal("export failed", "error", err)
	}
}
