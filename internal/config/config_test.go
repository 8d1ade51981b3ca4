package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// inTempDir runs the test from an empty directory with no key in the
// environment.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("MARKERS_VWORLD_KEY", "")
	t.Setenv("VWORLD_API_KEY", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "src/data/transactions.csv", cfg.Input.Path)
	assert.Equal(t, "utf-8", cfg.Input.Encoding)
	assert.Equal(t, "skip", cfg.Input.OnError)
	assert.Equal(t, "src/data/markers_with_stats.json", cfg.Output.MarkersPath)
	assert.Equal(t, "src/data/neighborhood_stats.json", cfg.Output.ReportPath)
	assert.Empty(t, cfg.Output.GeoJSONPath)
	assert.Empty(t, cfg.Output.ShapefilePath)
	assert.Equal(t, "https://api.vworld.kr", cfg.VWorld.BaseURL)
	assert.Equal(t, 10, cfg.VWorld.TimeoutSecs)
	assert.Empty(t, cfg.VWorld.Key)
	assert.Equal(t, "용산구 한남동", cfg.Resolve.Neighborhood)
	assert.Equal(t, 350, cfg.Resolve.DelayMs)
	assert.Equal(t, 1, cfg.Resolve.Concurrency)
	assert.Equal(t, "overrides.yaml", cfg.Resolve.OverridesPath)
	assert.Equal(t, 1, cfg.Resolve.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Resolve.Retry.InitialBackoffMs)
	assert.Empty(t, cfg.Cache.Driver)
	assert.Equal(t, 30, cfg.Cache.TTLDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredential)
}

func TestLoadFromYAML(t *testing.T) {
	dir := inTempDir(t)

	yaml := `
input:
  path: data/deals.xlsx
  on_error: abort
  sheet: 거래
vworld:
  key: from-file
resolve:
  delay_ms: 500
  concurrency: 2
  presets:
    나인원한남: 서울특별시 용산구 한남대로 91
cache:
  driver: sqlite
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data/deals.xlsx", cfg.Input.Path)
	assert.Equal(t, "abort", cfg.Input.OnError)
	assert.Equal(t, "거래", cfg.Input.Sheet)
	assert.Equal(t, "from-file", cfg.VWorld.Key)
	assert.Equal(t, 500, cfg.Resolve.DelayMs)
	assert.Equal(t, 2, cfg.Resolve.Concurrency)
	assert.Equal(t, "서울특별시 용산구 한남대로 91", cfg.Resolve.Presets["나인원한남"])
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadExplicitFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  geojson_path: out/markers.geojson\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/markers.geojson", cfg.Output.GeoJSONPath)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("MARKERS_RESOLVE_CONCURRENCY", "4")
	t.Setenv("MARKERS_INPUT_PATH", "/data/in.csv")
	t.Setenv("VWORLD_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Resolve.Concurrency)
	assert.Equal(t, "/data/in.csv", cfg.Input.Path)
	assert.Equal(t, "from-env", cfg.VWorld.Key)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	inTempDir(t)
	t.Setenv("MARKERS_VWORLD_KEY", "prefixed")
	t.Setenv("VWORLD_API_KEY", "plain")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.VWorld.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VWORLD_API_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.VWorld.Key)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VWORLD_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("MARKERS_VWORLD_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.VWorld.Key)
}

func validConfig() Config {
	return Config{
		Input:   InputConfig{Path: "in.csv", OnError: "skip"},
		Output:  OutputConfig{MarkersPath: "out.json"},
		VWorld:  VWorldConfig{Key: "k"},
		Resolve: ResolveConfig{Concurrency: 1, DelayMs: 350},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.VWorld.Key = " " }, "missing VWorld API key"},
		{"bad policy", func(c *Config) { c.Input.OnError = "explode" }, "on_error"},
		{"bad driver", func(c *Config) { c.Cache.Driver = "redis" }, "cache.driver"},
		{"zero concurrency", func(c *Config) { c.Resolve.Concurrency = 0 }, "concurrency"},
		{"negative delay", func(c *Config) { c.Resolve.DelayMs = -1 }, "delay_ms"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no input", func(c *Config) { c.Input.Path = "" }, "input.path"},
		{"no output", func(c *Config) { c.Output.MarkersPath = "" }, "markers_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	require.Error(t, InitLogger(LogConfig{Level: "chatty"}))
}
