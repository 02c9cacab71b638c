package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
	defaultDatabasePath   = "./boxplan.db"
	defaultMaxUploadBytes = 5 << 20
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
	StorageDriver        string
	DatabasePath         string
	ChannelsFile         string
	QuantityBand         allocation.Band
	MaxUploadBytes       int64
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Storage              yamlStorage   `yaml:"storage"`
	ChannelsFile         string        `yaml:"channels_file"`
	QuantityBand         yamlBand      `yaml:"quantity_band"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlStorage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type yamlBand struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
	StorageDriver  *string
	DatabasePath   *string
	ChannelsFile   *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Channels loads the rule table from ChannelsFile, or returns the built-in table.
func (c Config) Channels() (channel.Table, error) {
	if c.ChannelsFile == "" {
		return channel.DefaultTable(), nil
	}
	table, err := channel.LoadTable(c.ChannelsFile)
	if err != nil {
		return channel.Table{}, fmt.Errorf("load channels file %s: %w", c.ChannelsFile, err)
	}
	return table, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		StorageDriver:        storage.DriverMemory,
		DatabasePath:         defaultDatabasePath,
		QuantityBand:         allocation.DefaultBand(),
		MaxUploadBytes:       defaultMaxUploadBytes,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if yamlCfg.Storage.Driver != "" {
		cfg.StorageDriver = yamlCfg.Storage.Driver
	}
	if yamlCfg.Storage.Path != "" {
		cfg.DatabasePath = yamlCfg.Storage.Path
	}
	if yamlCfg.ChannelsFile != "" {
		cfg.ChannelsFile = yamlCfg.ChannelsFile
	}
	if yamlCfg.QuantityBand.Min != nil {
		cfg.QuantityBand.Min = *yamlCfg.QuantityBand.Min
	}
	if yamlCfg.QuantityBand.Max != nil {
		cfg.QuantityBand.Max = *yamlCfg.QuantityBand.Max
	}
	if yamlCfg.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = yamlCfg.MaxUploadBytes
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if driver := env("STORAGE_DRIVER"); driver != "" {
		cfg.StorageDriver = driver
	}
	if path := env("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}
	if path := env("CHANNELS_FILE"); path != "" {
		cfg.ChannelsFile = path
	}

	if lo := env("QUANTITY_MIN"); lo != "" {
		if value, err := strconv.Atoi(lo); err == nil {
			cfg.QuantityBand.Min = value
		}
	}
	if hi := env("QUANTITY_MAX"); hi != "" {
		if value, err := strconv.Atoi(hi); err == nil {
			cfg.QuantityBand.Max = value
		}
	}

	if size := env("MAX_UPLOAD_BYTES"); size != "" {
		if value, err := strconv.ParseInt(size, 10, 64); err == nil && value > 0 {
			cfg.MaxUploadBytes = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.StorageDriver != nil && *overrides.StorageDriver != "" {
		cfg.StorageDriver = *overrides.StorageDriver
	}
	if overrides.DatabasePath != nil && *overrides.DatabasePath != "" {
		cfg.DatabasePath = *overrides.DatabasePath
	}
	if overrides.ChannelsFile != nil && *overrides.ChannelsFile != "" {
		cfg.ChannelsFile = *overrides.ChannelsFile
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if err := cfg.QuantityBand.Validate(); err != nil {
		return fmt.Errorf("quantity band %d..%d: %w", cfg.QuantityBand.Min, cfg.QuantityBand.Max, err)
	}
	switch cfg.StorageDriver {
	case storage.DriverMemory:
	case storage.DriverSQLite:
		if cfg.DatabasePath == "" {
			return fmt.Errorf("sqlite storage requires a database path")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
