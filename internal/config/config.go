// Package config loads maplink settings from maplink.yaml and MAPLINK_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel  = errors.New("invalid logging level")
	ErrInvalidLogFormat = errors.New("invalid logging format")
	ErrEmptyOutputDir   = errors.New("output directory must not be empty")
	ErrEmptySourcePath  = errors.New("source path entries must not be empty")
)

const (
	defaultConfigName = "maplink"
	envPrefix         = "MAPLINK"
	defaultOutputDir  = "out"
)

// Config holds all maplink settings.
type Config struct {
	Link      LinkConfig      `mapstructure:"link"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LinkConfig controls the link pass.
type LinkConfig struct {
	OnePermutation         bool `mapstructure:"one_permutation"`
	EmbedSourceMapContents bool `mapstructure:"embed_source_map_contents"`
	ValidatePrefixes       bool `mapstructure:"validate_prefixes"`
}

// SourcesConfig is the module source path used for embedding.
type SourcesConfig struct {
	Paths        []string `mapstructure:"paths"`
	EmbedExclude []string `mapstructure:"embed_exclude"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// OTLPHeaders is "key=value,key=value".
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// LoadConfig reads configPath, or maplink.yaml from the working directory
// when configPath is empty. A missing default file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(defaultConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
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
	if err := viperCfg.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	// Link defaults.
	viperCfg.SetDefault("link.one_permutation", true)
	viperCfg.SetDefault("link.embed_source_map_contents", false)
	viperCfg.SetDefault("link.validate_prefixes", false)

	// Source path defaults.
	viperCfg.SetDefault("sources.paths", []string{})
	viperCfg.SetDefault("sources.embed_exclude", []string{})

	viperCfg.SetDefault("output.dir", defaultOutputDir)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.metrics_file", "")
}

func validateConfig(config *Config) error {
	if _, err := ParseLevel(config.Logging.Level); err != nil {
		return err
	}

	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if strings.TrimSpace(config.Output.Dir) == "" {
		return ErrEmptyOutputDir
	}

	for i, path := range config.Sources.Paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%w: sources.paths[%d]", ErrEmptySourcePath, i)
		}
	}

	return nil
}

// ParseLevel maps a configured level name onto slog.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}
