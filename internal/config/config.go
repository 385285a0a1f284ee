// Package config loads the server configuration from a YAML file and
// DRL_LSP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
	"github.com/jarredhawkins/drl-lsp/internal/parser"
)

// Sentinel validation errors.
var (
	ErrInvalidSize      = errors.New("invalid size")
	ErrInvalidDepth     = errors.New("max pattern depth must be positive")
	ErrInvalidDebounce  = errors.New("validation debounce must not be negative")
	ErrInvalidVerbosity = errors.New("logging verbosity must be between -4 and 2")
)

// Default configuration values.
const (
	defaultMaxFileSize  = "1MiB"
	defaultCacheMaxSize = "64MiB"
	defaultDebounce     = 200 * time.Millisecond
	envPrefix           = "DRL_LSP"
	minVerbosity        = -4
	maxVerbosity        = 2
)

// Config holds all configuration for the DRL language server.
type Config struct {
	Parser     ParserConfig     `mapstructure:"parser"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ParserConfig holds parser limits.
type ParserConfig struct {
	// MaxFileSize is a human size ("1MiB"); text past it is not parsed
	MaxFileSize     string `mapstructure:"max_file_size"`
	MaxPatternDepth int    `mapstructure:"max_pattern_depth"`
	Incremental     bool   `mapstructure:"incremental"`

	maxFileSizeBytes int64
}

// CacheConfig holds cache budgets.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	MaxSize string `mapstructure:"max_size"`

	maxSizeBytes int64
}

// ValidationConfig holds the diagnostics schedule.
type ValidationConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Verbosity follows commonlog: 0 is notice, 1 info, 2 debug, negative
	// values are quieter
	Verbosity int    `mapstructure:"verbosity"`
	File      string `mapstructure:"file"`
}

// WorkspaceConfig holds workspace watching configuration.
type WorkspaceConfig struct {
	Watch bool `mapstructure:"watch"`
}

// MetricsConfig holds the Prometheus endpoint.
type MetricsConfig struct {
	// Address to serve /metrics on; empty disables the endpoint
	Address string `mapstructure:"address"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".drl-lsp")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/drl-lsp")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("parser.max_file_size", defaultMaxFileSize)
	viperCfg.SetDefault("parser.max_pattern_depth", parser.DefaultMaxPatternDepth)
	viperCfg.SetDefault("parser.incremental", true)

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.max_size", defaultCacheMaxSize)

	viperCfg.SetDefault("validation.debounce", defaultDebounce)

	viperCfg.SetDefault("logging.verbosity", 0)
	viperCfg.SetDefault("logging.file", "")

	viperCfg.SetDefault("workspace.watch", true)

	viperCfg.SetDefault("metrics.address", "")
}

// validateConfig validates the configuration and resolves size strings.
func validateConfig(config *Config) error {
	size, err := parseSize("parser.max_file_size", config.Parser.MaxFileSize)
	if err != nil {
		return err
	}
	config.Parser.maxFileSizeBytes = size

	size, err = parseSize("cache.max_size", config.Cache.MaxSize)
	if err != nil {
		return err
	}
	config.Cache.maxSizeBytes = size

	if config.Parser.MaxPatternDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, config.Parser.MaxPatternDepth)
	}

	if config.Validation.Debounce < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDebounce, config.Validation.Debounce)
	}

	if config.Logging.Verbosity < minVerbosity || config.Logging.Verbosity > maxVerbosity {
		return fmt.Errorf("%w: %d", ErrInvalidVerbosity, config.Logging.Verbosity)
	}

	return nil
}

func parseSize(key, value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSize, key, value, err)
	}
	if n == 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s=%q out of range", ErrInvalidSize, key, value)
	}
	return int64(n), nil
}

// MaxFileSizeBytes returns the parsed parser.max_file_size
func (c *ParserConfig) MaxFileSizeBytes() int64 {
	return c.maxFileSizeBytes
}

// MaxSizeBytes returns the parsed cache.max_size
func (c *CacheConfig) MaxSizeBytes() int64 {
	return c.maxSizeBytes
}

// ParserOptions builds the parser options the configuration describes
func (c *Config) ParserOptions() parser.Options {
	return parser.Options{
		EnableIncrementalParsing: c.Parser.Incremental,
		MaxFileSize:              int(c.Parser.maxFileSizeBytes),
		MaxMultiLinePatternDepth: c.Parser.MaxPatternDepth,
	}
}

// NewCache builds the result cache, or nil when caching is disabled
func (c *Config) NewCache() *cache.Manager {
	if !c.Cache.Enabled {
		return nil
	}
	return cache.NewManager(cache.Config{
		MaxFileSize:  c.Parser.maxFileSizeBytes,
		MaxTotalSize: c.Cache.maxSizeBytes,
	})
}

// Summary describes the effective limits for the startup log line
func (c *Config) Summary() string {
	return fmt.Sprintf("max file %s, pattern depth %d, incremental %t, cache %s, debounce %s",
		humanize.IBytes(uint64(c.Parser.maxFileSizeBytes)),
		c.Parser.MaxPatternDepth,
		c.Parser.Incremental,
		c.cacheSummary(),
		c.Validation.Debounce)
}

func (c *Config) cacheSummary() string {
	if !c.Cache.Enabled {
		return "off"
	}
	return humanize.IBytes(uint64(c.Cache.maxSizeBytes))
}
