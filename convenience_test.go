// FILE: lixenwraith/forgeconfig/convenience_test.go
package forgeconfig_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/forgeconfig"
)

func exportFixture() *forgeconfig.Node {
	raw := forgeconfig.RecordOf(
		"zeta", int64(1),
		"packagerConfig", forgeconfig.RecordOf(
			"ignore", regexp.MustCompile("^foo$"),
			"afterCopy", forgeconfig.Callable(func(...any) (any, error) { return nil, nil }),
			"unset", nil,
		),
		"makers", []any{"zip", "dmg"},
		"alpha", "last",
	)
	return forgeconfig.Wrap(raw, forgeconfig.MapEnv{}, forgeconfig.DefaultEnvPrefix)
}

func TestExport(t *testing.T) {
	cfg := exportFixture()

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, cfg.Export(&buf, "json"))
		out := buf.String()

		assert.Less(t, strings.Index(out, `"zeta"`), strings.Index(out, `"alpha"`), "key order is preserved")
		assert.Contains(t, out, `"afterCopy": "[Function]"`)
		assert.Contains(t, out, `"ignore": "^foo$"`)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, []any{"zip", "dmg"}, decoded["makers"])
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, cfg.Export(&buf, "yaml"))
		out := buf.String()
		assert.Less(t, strings.Index(out, "zeta"), strings.Index(out, "alpha"))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		packager, ok := decoded["packagerConfig"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, forgeconfig.FunctionPlaceholder, packager["afterCopy"])
		assert.Equal(t, "^foo$", packager["ignore"])
	})

	t.Run("TOML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, cfg.Export(&buf, "toml"))

		var decoded map[string]any
		_, err := toml.Decode(buf.String(), &decoded)
		require.NoError(t, err)
		assert.Equal(t, int64(1), decoded["zeta"])
		packager := decoded["packagerConfig"].(map[string]any)
		assert.NotContains(t, packager, "unset", "nil values are dropped")
	})

	t.Run("PluginInterfaceAsNames", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"config": {"forge": {"packagerConfig": {"asar": true}, "plugins": ["auto-unpack-natives"]}}}`,
		})
		resolved, err := forgeconfig.NewBuilder().WithEnv(forgeconfig.MapEnv{}).Build(context.Background(), dir)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, resolved.Export(&buf, "json"))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, []any{"auto-unpack-natives"}, decoded["pluginInterface"])
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		assert.Error(t, cfg.Export(&bytes.Buffer{}, "ini"))
	})
}

func TestSave(t *testing.T) {
	cfg := exportFixture()
	dir := t.TempDir()

	for _, name := range []string{"forge.config.json", "forge.config.yaml", "forge.config.toml"} {
		t.Run(name, func(t *testing.T) {
			project := filepath.Join(dir, strings.TrimPrefix(filepath.Ext(name), "."))
			require.NoError(t, cfg.Save(filepath.Join(project, name)))

			res, err := forgeconfig.NewLoader().Load(context.Background(), project)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(project, name), res.SourcePath)
			assert.ElementsMatch(t, []string{"zeta", "packagerConfig", "makers", "alpha"}, res.Raw.Keys())

			zeta, _ := res.Raw.Get("zeta")
			assert.EqualValues(t, 1, zeta)
		})
	}

	t.Run("UnknownExtension", func(t *testing.T) {
		assert.Error(t, cfg.Save(filepath.Join(dir, "forge.config.ini")))
	})
}

func TestClone(t *testing.T) {
	cfg := exportFixture()
	clone := cfg.Clone()

	require.NoError(t, clone.SetPath("packagerConfig.asar", true))
	clone.Set("zeta", int64(2))

	_, found := cfg.Lookup("packagerConfig.asar")
	assert.False(t, found)
	assert.Equal(t, int64(1), cfg.Value("zeta"))
	assert.Equal(t, int64(2), clone.Value("zeta"))
	assert.Equal(t, cfg.Keys(), clone.Keys())
}

func TestEnvBindings(t *testing.T) {
	raw := forgeconfig.RecordOf(
		"s3", forgeconfig.RecordOf("bucket", "releases", "secretAccessKey", "x"),
		"electronReleaseServer", forgeconfig.RecordOf("baseUrl", "http://example.com"),
	)
	cfg := forgeconfig.Wrap(raw, forgeconfig.MapEnv{}, forgeconfig.DefaultEnvPrefix)

	bindings := cfg.EnvBindings()
	require.Len(t, bindings, 3)
	assert.Equal(t, forgeconfig.EnvBinding{
		Path:    "s3.secretAccessKey",
		EnvName: "ELECTRON_FORGE_S3_SECRET_ACCESS_KEY",
		Value:   "x",
	}, bindings[1])
	assert.Equal(t, "ELECTRON_FORGE_ELECTRON_RELEASE_SERVER_BASE_URL", bindings[2].EnvName)

	s3, _ := cfg.Child("s3")
	assert.Equal(t, "ELECTRON_FORGE_S3_BUCKET", s3.EnvBindings()[0].EnvName)

	debug := cfg.Debug()
	assert.Contains(t, debug, "s3.bucket = releases (ELECTRON_FORGE_S3_BUCKET)")
}

func TestQuick(t *testing.T) {
	t.Setenv("MYFORGE_S3_REGION", "eu-west-1")
	dir := writeProject(t, map[string]string{"package.json": `{"config": {"forge": {"s3": {}}}}`})

	cfg := forgeconfig.MustQuick(context.Background(), dir, "MYFORGE_")
	region, _ := cfg.Lookup("s3.region")
	assert.Equal(t, "eu-west-1", region)

	assert.Panics(t, func() {
		forgeconfig.MustQuick(context.Background(), writeProject(t, map[string]string{"package.json": `{"config": {"forge": 7}}`}), "")
	})
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, forgeconfig.FunctionPlaceholder, forgeconfig.Printable(func() any { return nil }))
	assert.Equal(t, "^a", forgeconfig.Printable(regexp.MustCompile("^a")))
	assert.Equal(t, "plain", forgeconfig.Printable("plain"))
	assert.Equal(t, []any{"[Function]", int64(3)}, forgeconfig.Printable([]any{forgeconfig.Callable(nil), int64(3)}))
}
