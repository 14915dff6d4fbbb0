package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	BLS       BLSConfig       `yaml:"bls" mapstructure:"bls"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BLSConfig holds BLS public data API settings.
type BLSConfig struct {
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ReferenceConfig locates the reference region datasets.
// Counties and Metros default to the extracted TIGER/Line shapefiles under Dir.
type ReferenceConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Year     int    `yaml:"year" mapstructure:"year"`
	Counties string `yaml:"counties" mapstructure:"counties"`
	Metros   string `yaml:"metros" mapstructure:"metros"`
}

// SelectionConfig holds the default spatial selection settings.
// Engine "memory" evaluates predicates over the reference files; "postgis"
// queries region tables loaded with `blsgeo reference load`.
type SelectionConfig struct {
	Predicate   string  `yaml:"predicate" mapstructure:"predicate"`
	Buffer      float64 `yaml:"buffer" mapstructure:"buffer"`
	Engine      string  `yaml:"engine" mapstructure:"engine"`
	DatabaseURL string  `yaml:"database_url" mapstructure:"database_url"`
	SRID        int     `yaml:"srid" mapstructure:"srid"`
}

// PostGISURL returns the database holding region tables, falling back to the
// result store when it is Postgres.
func (c *Config) PostGISURL() string {
	if c.Selection.DatabaseURL != "" {
		return c.Selection.DatabaseURL
	}
	if c.Store.Driver == "postgres" {
		return c.Store.DatabaseURL
	}
	return ""
}

// StoreConfig configures where result tables are persisted.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CountiesPath returns the county reference dataset path.
func (r ReferenceConfig) CountiesPath() string {
	if r.Counties != "" {
		return r.Counties
	}
	name := fmt.Sprintf("tl_%d_us_county", r.Year)
	return filepath.Join(r.Dir, name, name+".shp")
}

// MetrosPath returns the metro area (CBSA) reference dataset path.
func (r ReferenceConfig) MetrosPath() string {
	if r.Metros != "" {
		return r.Metros
	}
	name := fmt.Sprintf("tl_%d_us_cbsa", r.Year)
	return filepath.Join(r.Dir, name, name+".shp")
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BLSGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("bls.api_key", "")
	v.SetDefault("bls.base_url", "https://api.bls.gov/publicAPI/v2/timeseries/data/")
	v.SetDefault("bls.timeout_secs", 30)
	v.SetDefault("bls.requests_per_second", 0)
	v.SetDefault("bls.user_agent", "blsgeo/1.0")
	v.SetDefault("reference.dir", "data")
	v.SetDefault("reference.year", 2024)
	v.SetDefault("reference.counties", "")
	v.SetDefault("reference.metros", "")
	v.SetDefault("selection.predicate", "intersects")
	v.SetDefault("selection.buffer", 0.09)
	v.SetDefault("selection.engine", "memory")
	v.SetDefault("selection.database_url", "")
	v.SetDefault("selection.srid", 4269)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.table", "bls_results")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
// Modes: "fetch" (BLS retrieval), "select" (regions/series only), "serve".
func (c *Config) Validate(mode string) error {
	var result *multierror.Error

	switch mode {
	case "fetch":
		if c.BLS.APIKey == "" {
			result = multierror.Append(result, eris.New("bls.api_key is required"))
		}
		if c.BLS.BaseURL == "" {
			result = multierror.Append(result, eris.New("bls.base_url is required"))
		}
		if c.BLS.RequestsPerSecond < 0 {
			result = multierror.Append(result, eris.New("bls.requests_per_second must be >= 0"))
		}
		result = multierror.Append(result, c.validateStore())
	case "select":
	case "serve":
		if c.Server.Port <= 0 {
			result = multierror.Append(result, eris.New("server.port must be > 0"))
		}
		if c.BLS.BaseURL == "" {
			result = multierror.Append(result, eris.New("bls.base_url is required"))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Selection.Buffer < 0 {
		result = multierror.Append(result, eris.New("selection.buffer must be >= 0"))
	}
	switch strings.ToLower(c.Selection.Predicate) {
	case "intersects", "contains":
	default:
		result = multierror.Append(result, eris.Errorf("selection.predicate must be intersects or contains, got %q", c.Selection.Predicate))
	}

	switch c.Selection.Engine {
	case "", "memory":
	case "postgis":
		if c.PostGISURL() == "" {
			result = multierror.Append(result, eris.New("selection.database_url is required for engine postgis"))
		}
		if c.Selection.SRID <= 0 {
			result = multierror.Append(result, eris.New("selection.srid must be > 0"))
		}
	default:
		result = multierror.Append(result, eris.Errorf("selection.engine must be memory or postgis, got %q", c.Selection.Engine))
	}

	return result.ErrorOrNil()
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "", "none":
		return nil
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("store.database_url is required for driver %s", c.Store.Driver)
		}
		if c.Store.Table == "" {
			return eris.New("store.table is required")
		}
		return nil
	default:
		return eris.Errorf("store.driver must be none, sqlite or postgres, got %q", c.Store.Driver)
	}
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
