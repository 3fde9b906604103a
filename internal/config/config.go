// Package config loads the pipeline configuration from file and environment
// and initializes the global logger. The Config object is constructed once
// per run and passed by reference into each engine; nothing reads
// configuration ad hoc.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	Schemas  SchemaConfig   `yaml:"schemas" mapstructure:"schemas"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SourceConfig configures the source repository the extraction stage reads.
type SourceConfig struct {
	Kind     string `yaml:"kind" mapstructure:"kind"` // rest, csv, xlsx, ftp
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Token    string `yaml:"token" mapstructure:"token"`
	File     string `yaml:"file" mapstructure:"file"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`

	FTPAddr     string `yaml:"ftp_addr" mapstructure:"ftp_addr"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
	FTPPath     string `yaml:"ftp_path" mapstructure:"ftp_path"`
}

// IndexConfig configures the downstream index service (XIS) transmission.
type IndexConfig struct {
	Endpoint       string  `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// SchemaConfig names the schema files consumed by validation and transform.
type SchemaConfig struct {
	SourceValidation string `yaml:"source_validation" mapstructure:"source_validation"`
	TargetValidation string `yaml:"target_validation" mapstructure:"target_validation"`
	ExpectedTypes    string `yaml:"expected_types" mapstructure:"expected_types"`
	Mapping          string `yaml:"mapping" mapstructure:"mapping"`
	Overwrites       string `yaml:"overwrites" mapstructure:"overwrites"`
	Remaps           string `yaml:"remaps" mapstructure:"remaps"`
}

// PipelineConfig configures the staged pipeline run.
type PipelineConfig struct {
	Publisher             string   `yaml:"publisher" mapstructure:"publisher"`
	SourceKeyFields       []string `yaml:"source_key_fields" mapstructure:"source_key_fields"`
	TargetKeyFields       []string `yaml:"target_key_fields" mapstructure:"target_key_fields"`
	DemoteOnSourceFailure bool     `yaml:"demote_on_source_failure" mapstructure:"demote_on_source_failure"`
	DemoteOnTargetFailure bool     `yaml:"demote_on_target_failure" mapstructure:"demote_on_target_failure"`
	MaxConcurrentRecords  int      `yaml:"max_concurrent_records" mapstructure:"max_concurrent_records"`
}

// ServerConfig configures the record API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("XIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "ledger.db")
	v.SetDefault("source.kind", "rest")
	v.SetDefault("index.timeout_secs", 6)
	v.SetDefault("index.requests_per_sec", 10)
	v.SetDefault("index.max_attempts", 3)
	v.SetDefault("pipeline.max_concurrent_records", 8)
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
