// FILE: lixenwraith/forgeconfig/loader_test.go
package forgeconfig_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/forgeconfig"
)

// writeProject creates files (name -> content) in a fresh directory
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// copyFixture copies a testdata file into dir under name
func copyFixture(t *testing.T, fixture, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func TestLoaderManifest(t *testing.T) {
	ctx := context.Background()

	t.Run("InlineRecord", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{
				"name": "dummy",
				"productName": "Dummy App",
				"version": "1.2.3",
				"config": {"forge": {"packagerConfig": {"baz": {}}, "s3": {}, "retries": 3}}
			}`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		assert.True(t, res.ManifestFound)
		assert.Equal(t, "Dummy App", res.Manifest.AppName())
		assert.Equal(t, "1.2.3", res.Manifest.Version)
		assert.Empty(t, res.SourcePath)
		assert.Equal(t, map[string]any{
			"packagerConfig": map[string]any{"baz": map[string]any{}},
			"s3":             map[string]any{},
			"retries":        int64(3),
		}, res.Raw.Map())
	})

	t.Run("AppNameFallsBackToName", func(t *testing.T) {
		assert.Equal(t, "pkg", forgeconfig.Manifest{Name: "pkg"}.AppName())
	})

	t.Run("NoConfigurationAnywhere", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"name": "bare"}`})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Raw.Len())
	})

	t.Run("NullForgeFieldFallsBack", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json":      `{"config": {"forge": null}}`,
			"forge.config.json": `{"fromConventional": true}`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		v, _ := res.Raw.Get("fromConventional")
		assert.Equal(t, true, v)
	})

	t.Run("MissingManifestTolerated", func(t *testing.T) {
		res, err := forgeconfig.NewLoader().Load(ctx, t.TempDir())
		require.NoError(t, err)
		assert.False(t, res.ManifestFound)
		assert.Equal(t, 0, res.Raw.Len())
	})

	t.Run("MissingManifestRequired", func(t *testing.T) {
		loader := forgeconfig.NewLoader()
		loader.RequireManifest = true
		_, err := loader.Load(ctx, t.TempDir())
		assert.ErrorIs(t, err, forgeconfig.ErrManifestNotFound)
	})

	t.Run("MalformedManifest", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"config": `})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, forgeconfig.ErrInvalidManifest)

		var loadErr *forgeconfig.LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, filepath.Join(dir, "package.json"), loadErr.Path)
	})

	t.Run("UnsupportedForgeFieldType", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"config": {"forge": 42}}`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, forgeconfig.ErrInvalidManifest)
	})

	t.Run("CustomManifestName", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"project.json": `{"config": {"forge": {"custom": true}}}`})
		loader := forgeconfig.NewLoader()
		loader.ManifestName = "project.json"
		res, err := loader.Load(ctx, dir)
		require.NoError(t, err)
		assert.True(t, res.Raw.Has("custom"))
	})
}

func TestLoaderModules(t *testing.T) {
	ctx := context.Background()

	t.Run("JSONWithComments", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": "./config/forge.jsonc"}}`,
			"config/forge.jsonc": `{
				// packaging options
				"packagerConfig": {"asar": true,},
				"makers": [{"name": "zip"}],
			}`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "config", "forge.jsonc"), res.SourcePath)
		assert.Equal(t, map[string]any{
			"packagerConfig": map[string]any{"asar": true},
			"makers":         []any{map[string]any{"name": "zip"}},
		}, res.Raw.Map())
	})

	t.Run("YAML", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": "forge.yaml"}}`,
			"forge.yaml": `
packagerConfig:
  asar: true
  icon: assets/icon
publishers:
  - name: github
    config:
      draft: true
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"packagerConfig": map[string]any{"asar": true, "icon": "assets/icon"},
			"publishers": []any{
				map[string]any{"name": "github", "config": map[string]any{"draft": true}},
			},
		}, res.Raw.Map())
	})

	t.Run("TOMLConventional", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"name": "toml-app"}`,
			"forge.config.toml": `
buildIdentifier = "default"
defaultResolved = true

[packagerConfig]
asar = true

[[makers]]
name = "zip"
platforms = ["darwin", "linux"]
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "forge.config.toml"), res.SourcePath)

		id, _ := res.Raw.Get("buildIdentifier")
		assert.Equal(t, "default", id)
		makers, _ := res.Raw.Get("makers")
		require.Len(t, makers, 1)
		maker := makers.([]any)[0].(*forgeconfig.Record)
		name, _ := maker.Get("name")
		assert.Equal(t, "zip", name)
	})

	t.Run("ArrayExportRejected", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": "forge.json"}}`,
			"forge.json":   `[1, 2]`,
		})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, forgeconfig.ErrInvalidExport)
	})

	t.Run("MissingModule", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"config": {"forge": "missing.json"}}`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("NoProviderForExtension", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json":    `{"config": {"forge": "./forge.config.js"}}`,
			"forge.config.js": `module.exports = {}`,
		})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, forgeconfig.ErrNoProvider)
	})

	t.Run("InjectedProviderCallableExport", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": "forge.fake"}}`,
			"forge.fake":   ``,
		})
		var fn forgeconfig.Callable = func(args ...any) (any, error) {
			assert.Empty(t, args, "exports are invoked without arguments")
			return map[string]any{"fromFunction": true}, nil
		}
		loader := forgeconfig.NewLoader()
		loader.Providers = []forgeconfig.SourceProvider{stubProvider{ext: ".fake", value: fn}}

		res, err := loader.Load(ctx, dir)
		require.NoError(t, err)
		assert.True(t, res.Raw.Has("fromFunction"))
	})

	t.Run("ProviderErrorPropagates", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": "forge.fake"}}`,
			"forge.fake":   ``,
		})
		boom := errors.New("evaluation failed")
		loader := forgeconfig.NewLoader()
		loader.Providers = []forgeconfig.SourceProvider{stubProvider{ext: ".fake", err: boom}}

		_, err := loader.Load(ctx, dir)
		assert.ErrorIs(t, err, boom)
		var loadErr *forgeconfig.LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, filepath.Join(dir, "forge.fake"), loadErr.Path)
	})
}

func TestLoaderKeyOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("InlineManifest", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": {"zeta": 1, "alpha": 2, "packagerConfig": {"z": 1, "a": 2}}}}`,
		})
		res, err := forgeconfig.NewBuilder().WithEnv(forgeconfig.MapEnv{}).Load(ctx, dir)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"packagerConfig", "rebuildConfig", "makers", "publishers", "plugins",
			"zeta", "alpha", "pluginInterface",
		}, res.Config.Keys())
		pc, _ := res.Config.Child("packagerConfig")
		assert.Equal(t, []string{"z", "a"}, pc.Keys())
	})

	t.Run("JSONModule", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.json": `{"zeta": {"y": [{"b": 1, "a": 2}], "x": 0}, "alpha": null}`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha"}, res.Raw.Keys())

		zeta, _ := res.Raw.Get("zeta")
		assert.Equal(t, []string{"y", "x"}, zeta.(*forgeconfig.Record).Keys())
		y, _ := zeta.(*forgeconfig.Record).Get("y")
		assert.Equal(t, []string{"b", "a"}, y.([]any)[0].(*forgeconfig.Record).Keys())
	})

	t.Run("JSONTrailingData", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"forge.config.json": `{"a": 1} {"b": 2}`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.Error(t, err)
	})

	t.Run("YAMLModule", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.yaml": `
base: &base
  region: eu
  bucket: shared
zeta: 1
s3:
  <<: *base
  bucket: own
  acl: private
alpha: 2
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "zeta", "s3", "alpha"}, res.Raw.Keys())

		s3, _ := res.Raw.Get("s3")
		rec := s3.(*forgeconfig.Record)
		assert.Equal(t, []string{"bucket", "acl", "region"}, rec.Keys())
		bucket, _ := rec.Get("bucket")
		assert.Equal(t, "own", bucket, "explicit keys win over merged ones")
	})

	t.Run("TOMLModule", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.toml": `
zeta = 1
alpha = 2

[packagerConfig]
z = 1
a = 2

[[makers]]
platforms = ["darwin"]
name = "zip"
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha", "packagerConfig", "makers"}, res.Raw.Keys())

		pc, _ := res.Raw.Get("packagerConfig")
		assert.Equal(t, []string{"z", "a"}, pc.(*forgeconfig.Record).Keys())
		makers, _ := res.Raw.Get("makers")
		assert.Equal(t, []string{"platforms", "name"}, makers.([]any)[0].(*forgeconfig.Record).Keys())
	})
}

func TestLuaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("DummyConfig", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"config": {"forge": "./forge.config.lua"}}`})
		copyFixture(t, "dummy_js_conf.lua", dir, "forge.config.lua")

		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		fn, _ := res.Raw.Get("magicFn")
		out, err := forgeconfig.Invoke(fn)
		require.NoError(t, err)
		assert.Equal(t, "magic result", out)

		re, _ := res.Raw.Get("regexp")
		require.IsType(t, &regexp.Regexp{}, re)
		assert.True(t, re.(*regexp.Regexp).MatchString("foo"))
		assert.False(t, re.(*regexp.Regexp).MatchString("bar"))

		sel, _ := res.Raw.Get("topLevelProp")
		assert.Equal(t, forgeconfig.KindSelector, forgeconfig.KindOf(sel))
	})

	t.Run("FunctionExport", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.lua": `
return function()
  return { buildIdentifier = "default", defaultResolved = true, count = 2, ratio = 0.5 }
end
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"buildIdentifier": "default",
			"defaultResolved": true,
			"count":           int64(2),
			"ratio":           0.5,
		}, res.Raw.Map())
	})

	t.Run("CallableArguments", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.lua": `
return {
  greet = function(name, cfg) return "hello " .. name .. " from " .. cfg.app end,
}
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		fn, _ := res.Raw.Get("greet")
		out, err := forgeconfig.Invoke(fn, "world", forgeconfig.RecordOf("app", "demo"))
		require.NoError(t, err)
		assert.Equal(t, "hello world from demo", out)
	})

	t.Run("ScriptErrorPropagates", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"forge.config.lua": `error("config exploded")`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config exploded")

		var loadErr *forgeconfig.LoadError
		assert.True(t, errors.As(err, &loadErr))
	})

	t.Run("NonRecordExport", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"forge.config.lua": `return 42`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, forgeconfig.ErrInvalidExport)
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"forge.config.lua": `return { re = regexp("(") }`})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.Error(t, err)
	})

	t.Run("CyclicTable", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.lua": `local t = { s3 = {} }; t.s3.parent = t; return t`,
		})
		_, err := forgeconfig.NewBuilder().Build(ctx, dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, forgeconfig.ErrCyclicTable)
		assert.Contains(t, err.Error(), "cyclic table at key parent")

		var loadErr *forgeconfig.LoadError
		assert.True(t, errors.As(err, &loadErr))
	})

	t.Run("CyclicSequence", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.lua": `local list = { "a" }; list[2] = list; return { makers = list }`,
		})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		assert.ErrorIs(t, err, forgeconfig.ErrCyclicTable)
	})

	t.Run("SharedTableIsNotCyclic", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.lua": `local opts = { asar = true }; return { a = opts, b = opts }`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"a": map[string]any{"asar": true},
			"b": map[string]any{"asar": true},
		}, res.Raw.Map())
	})
}

func TestHCLProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("DummyConfig", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"package.json": `{"config": {"forge": "forge.hcl"}}`})
		copyFixture(t, "dummy_hcl_conf.hcl", dir, "forge.hcl")

		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"buildIdentifier", "packagerConfig", "s3", "electronReleaseServer",
			"topLevelProp", "topLevelUndef", "sub", "regexp",
		}, res.Raw.Keys(), "attributes keep source order")

		re, _ := res.Raw.Get("regexp")
		require.IsType(t, &regexp.Regexp{}, re)
		assert.True(t, re.(*regexp.Regexp).MatchString("foo"))

		sel, _ := res.Raw.Get("topLevelProp")
		require.IsType(t, &forgeconfig.Selector{}, sel)
		assert.Equal(t, "foo", sel.(*forgeconfig.Selector).Select("beta", true))
	})

	t.Run("FunctionsAndDefault", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"forge.config.hcl": `
name    = upper("app")
channel = from_build_identifier({ beta = "b" }, "stable")
retries = 3
`,
		})
		res, err := forgeconfig.NewLoader().Load(ctx, dir)
		require.NoError(t, err)

		name, _ := res.Raw.Get("name")
		assert.Equal(t, "APP", name)
		retries, _ := res.Raw.Get("retries")
		assert.Equal(t, int64(3), retries)

		forgeconfig.ResolveVariants(res.Raw)
		channel, _ := res.Raw.Get("channel")
		assert.Equal(t, "stable", channel)
	})

	t.Run("SyntaxError", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"forge.config.hcl": `name = `})
		_, err := forgeconfig.NewLoader().Load(ctx, dir)
		var loadErr *forgeconfig.LoadError
		assert.True(t, errors.As(err, &loadErr))
	})
}

// stubProvider returns a fixed value for one extension
type stubProvider struct {
	ext   string
	value any
	err   error
}

func (p stubProvider) Extensions() []string { return []string{p.ext} }

func (p stubProvider) Load(context.Context, string) (any, error) { return p.value, p.err }
