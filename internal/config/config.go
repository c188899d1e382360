package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the geospatial store backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
}

// IngestConfig configures the source ingestion pipeline.
type IngestConfig struct {
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures the upstream proposal-registry fetch.
type FetchConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.query_timeout_secs", 30)
	v.SetDefault("ingest.data_dir", "./data")
	v.SetDefault("ingest.concurrency", 3)
	v.SetDefault("fetch.base_url", "https://sc-data.emsl.pnnl.gov/ber/geofence")
	v.SetDefault("fetch.user_agent", "atlas-cli/1.0")
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
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

// Validate checks the configuration needed for the given command mode.
// Modes: "ingest", "query", "fetch".
func (c *Config) Validate(mode string) error {
	var issues []string

	storeIssues := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				issues = append(issues, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			// Empty URL falls back to a local file.
		default:
			issues = append(issues, "store.driver must be postgres or sqlite")
		}
		if c.Store.QueryTimeoutSecs <= 0 {
			issues = append(issues, "store.query_timeout_secs must be > 0")
		}
	}

	switch mode {
	case "ingest":
		storeIssues()
		if c.Ingest.DataDir == "" {
			issues = append(issues, "ingest.data_dir is required")
		}
		if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 16 {
			issues = append(issues, "ingest.concurrency must be between 1 and 16")
		}
	case "query":
		storeIssues()
	case "fetch":
		if c.Fetch.BaseURL == "" {
			issues = append(issues, "fetch.base_url is required")
		}
		if c.Fetch.TimeoutSecs <= 0 {
			issues = append(issues, "fetch.timeout_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(issues) > 0 {
		return eris.Errorf("config: %s", strings.Join(issues, "; "))
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
