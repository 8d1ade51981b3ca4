package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrMissingCredential is returned by Validate when no VWorld key is set.
var ErrMissingCredential = eris.New("config: missing VWorld API key (set MARKERS_VWORLD_KEY or VWORLD_API_KEY)")

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	VWorld  VWorldConfig  `yaml:"vworld" mapstructure:"vworld"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the transaction table.
type InputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	OnError  string `yaml:"on_error" mapstructure:"on_error"` // skip | abort
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
}

// OutputConfig locates the generated files. Empty GeoJSON/shapefile paths
// disable those outputs.
type OutputConfig struct {
	MarkersPath   string `yaml:"markers_path" mapstructure:"markers_path"`
	ReportPath    string `yaml:"report_path" mapstructure:"report_path"`
	GeoJSONPath   string `yaml:"geojson_path" mapstructure:"geojson_path"`
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
}

// VWorldConfig configures the search API client.
type VWorldConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResolveConfig configures the name-to-location pipeline.
type ResolveConfig struct {
	Neighborhood  string            `yaml:"neighborhood" mapstructure:"neighborhood"`
	DelayMs       int               `yaml:"delay_ms" mapstructure:"delay_ms"`
	Concurrency   int               `yaml:"concurrency" mapstructure:"concurrency"`
	OverridesPath string            `yaml:"overrides_path" mapstructure:"overrides_path"`
	Aliases       map[string]string `yaml:"aliases" mapstructure:"aliases"`
	Presets       map[string]string `yaml:"presets" mapstructure:"presets"`
	Retry         RetryConfig       `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds retries of transient lookup failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// CacheConfig configures the optional lookup cache.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "", sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLDays     int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. configFile may be
// empty, in which case ./config.yaml is used if present. A .env file in the
// working directory supplies the API key when nothing else does.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("MARKERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("vworld.key", "MARKERS_VWORLD_KEY", "VWORLD_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("input.path", "src/data/transactions.csv")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.on_error", "skip")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.markers_path", "src/data/markers_with_stats.json")
	v.SetDefault("output.report_path", "src/data/neighborhood_stats.json")
	v.SetDefault("output.geojson_path", "")
	v.SetDefault("output.shapefile_path", "")
	v.SetDefault("vworld.base_url", "https://api.vworld.kr")
	v.SetDefault("vworld.timeout_secs", 10)
	v.SetDefault("resolve.neighborhood", "용산구 한남동")
	v.SetDefault("resolve.delay_ms", 350)
	v.SetDefault("resolve.concurrency", 1)
	v.SetDefault("resolve.overrides_path", "overrides.yaml")
	v.SetDefault("resolve.retry.max_attempts", 1)
	v.SetDefault("resolve.retry.initial_backoff_ms", 500)
	v.SetDefault("cache.driver", "")
	v.SetDefault("cache.database_url", "markers-cache.db")
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if strings.TrimSpace(cfg.VWorld.Key) == "" {
		key, err := dotEnvKey(".env")
		if err != nil {
			return nil, err
		}
		cfg.VWorld.Key = key
	}
	cfg.VWorld.Key = strings.TrimSpace(cfg.VWorld.Key)

	return &cfg, nil
}

// dotEnvKey reads VWORLD_API_KEY (or MARKERS_VWORLD_KEY) from a KEY=value
// file. A missing file yields "".
func dotEnvKey(path string) (string, error) {
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return "", nil
		}
		return "", eris.Wrapf(err, "config: read %s", path)
	}
	for _, k := range []string{"markers_vworld_key", "vworld_api_key"} {
		if s := strings.TrimSpace(env.GetString(k)); s != "" {
			return s, nil
		}
	}
	return "", nil
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.VWorld.Key) == "" {
		return ErrMissingCredential
	}
	if c.Input.Path == "" {
		return eris.New("config: input.path is required")
	}
	if c.Output.MarkersPath == "" {
		return eris.New("config: output.markers_path is required")
	}
	switch strings.ToLower(c.Input.OnError) {
	case "", "skip", "abort":
	default:
		return eris.Errorf("config: input.on_error must be skip or abort, got %q", c.Input.OnError)
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", "none", "sqlite", "postgres", "postgresql":
	default:
		return eris.Errorf("config: unknown cache.driver %q", c.Cache.Driver)
	}
	if c.Resolve.Concurrency < 1 {
		return eris.Errorf("config: resolve.concurrency must be at least 1, got %d", c.Resolve.Concurrency)
	}
	if c.Resolve.DelayMs < 0 {
		return eris.Errorf("config: resolve.delay_ms must not be negative, got %d", c.Resolve.DelayMs)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return eris.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
