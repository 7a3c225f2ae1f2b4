// Package config loads application configuration from config.yaml and the
// GEODASH_ environment, and owns global logger setup.
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
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`

	// Role is resolved once here, at the edge, and passed explicitly into
	// the facade: standalone, master, or worker. Workers skip bootstrap.
	Role string `yaml:"role" mapstructure:"role"`
}

// DatabaseConfig configures the storage backend.
type DatabaseConfig struct {
	// URI is a postgres:// URL or a SQLite file path. Empty means
	// cities.db inside the data directory.
	URI        string `yaml:"uri" mapstructure:"uri"`
	Persistent bool   `yaml:"persistent" mapstructure:"persistent"`
}

// DataConfig configures where the city dataset lives and where it is
// downloaded from.
type DataConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	SourceURL string `yaml:"source_url" mapstructure:"source_url"`
}

// ImportConfig configures CSV ingestion.
type ImportConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
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
	v.SetEnvPrefix("GEODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.uri", "")
	v.SetDefault("database.persistent", false)
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.source_url", "")
	v.SetDefault("import.batch_size", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("role", "standalone")

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
