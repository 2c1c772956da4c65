// Package config loads symtrie configuration from defaults, an optional file
// and SYMTRIE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	KindSparse = "sparse"
	KindDense  = "dense"
)

// Config holds all configuration for symtrie.
type Config struct {
	Index  IndexConfig  `mapstructure:"index"`
	Load   BulkConfig   `mapstructure:"load"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// IndexConfig describes the shape of the tree.
type IndexConfig struct {
	Name string `mapstructure:"name"`
	// Kind is "sparse" or "dense".
	Kind   string `mapstructure:"kind"`
	Degree int    `mapstructure:"degree"`
	// Alphabet maps symbols to dense slots; empty selects digit addressing.
	Alphabet string `mapstructure:"alphabet"`
}

// BulkConfig holds bulk loading options.
type BulkConfig struct {
	BatchSize    uint `mapstructure:"batch_size"`
	Concurrency  uint `mapstructure:"concurrency"`
	BufferSize   uint `mapstructure:"buffer_size"`
	SkipInvalid  bool `mapstructure:"skip_invalid"`
	Normalize    bool `mapstructure:"normalize"`
	MaxLineBytes uint `mapstructure:"max_line_bytes"`
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Encoding is "console" or "json".
	Encoding string `mapstructure:"encoding"`
	// Output is "stdout", "stderr" or "file".
	Output     string `mapstructure:"output"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// NewViper returns a viper instance carrying symtrie's defaults and bound to
// SYMTRIE_* environment variables, e.g. SYMTRIE_INDEX_KIND.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("symtrie")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("index.name", "symtrie")
	v.SetDefault("index.kind", KindSparse)
	v.SetDefault("index.degree", 0)
	v.SetDefault("index.alphabet", "")

	v.SetDefault("load.batch_size", 5000)
	v.SetDefault("load.concurrency", 1)
	v.SetDefault("load.buffer_size", 1)
	v.SetDefault("load.skip_invalid", false)
	v.SetDefault("load.normalize", false)
	v.SetDefault("load.max_line_bytes", 1<<20)

	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.path", "./logs/symtrie.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 7)
}

// Load reads the config file at path, if any, into v and returns the
// validated result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg for inconsistent settings.
func (cfg *Config) Validate() error {
	switch cfg.Index.Kind {
	case KindSparse:
	case KindDense:
		if cfg.Index.Degree <= 0 {
			return fmt.Errorf("index.degree must be positive for a dense index, got %d", cfg.Index.Degree)
		}
		if n := utf8.RuneCountInString(cfg.Index.Alphabet); n != 0 && n != cfg.Index.Degree {
			return fmt.Errorf("index.alphabet has %d symbols, index.degree is %d", n, cfg.Index.Degree)
		}
	default:
		return fmt.Errorf("index.kind must be %q or %q, got %q", KindSparse, KindDense, cfg.Index.Kind)
	}
	if cfg.Load.BatchSize == 0 || cfg.Load.Concurrency == 0 || cfg.Load.BufferSize == 0 {
		return fmt.Errorf("load.batch_size, load.concurrency and load.buffer_size must be at least 1")
	}
	switch strings.ToUpper(cfg.Log.Level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("unknown log.level %q", cfg.Log.Level)
	}
	switch cfg.Log.Output {
	case "stdout", "stderr":
	case "file":
		if cfg.Log.Path == "" {
			return fmt.Errorf("log.path is required when log.output is \"file\"")
		}
	default:
		return fmt.Errorf("unknown log.output %q", cfg.Log.Output)
	}
	return nil
}
