package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the vcflow server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Watcher   WatcherConfig
	Processor ProcessorConfig
	Export    ExportConfig
}

type ServerConfig struct {
	Port              int
	Env               string
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type WatcherConfig struct {
	WatchDir            string
	SupportedExtensions []string
	MaxFileSizeMB       int
	SettleDelay         time.Duration
	EnvironmentPatterns []EnvironmentPattern
}

type ProcessorConfig struct {
	ProcessedDir       string
	BatchSize          int
	ProcessingInterval time.Duration
	CleanupInterval    time.Duration
	RetentionDays      int
	StartupScanDelay   time.Duration
}

type ExportConfig struct {
	OutputDir             string
	Formats               []string
	SeparateByEnvironment bool
}

// EnvironmentPattern maps a path substring to an environment tag. Patterns
// are checked in order; the first match wins.
type EnvironmentPattern struct {
	Pattern     string `yaml:"pattern"`
	Environment string `yaml:"environment"`
	Client      string `yaml:"client"`
	Datacenter  string `yaml:"datacenter"`
}

// defaultEnvironmentPatterns covers the standard vCenter deployment naming.
// A YAML file given via VCFLOW_ENV_MAPPING_FILE replaces this table.
var defaultEnvironmentPatterns = []EnvironmentPattern{
	{Pattern: "prod-vcenter1", Environment: "production-vc1", Client: "client-a"},
	{Pattern: "prod-vcenter2", Environment: "production-vc2", Client: "client-b"},
	{Pattern: "dev-vcenter", Environment: "development", Client: "internal"},
	{Pattern: "test-vcenter", Environment: "testing", Client: "internal"},
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              envInt("VCFLOW_PORT", 8080),
			Env:               envString("VCFLOW_ENV", "development"),
			RequestsPerMinute: envInt("VCFLOW_RATE_LIMIT_RPM", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Watcher: WatcherConfig{
			WatchDir:            envString("WATCH_DIRECTORY", "./ansible_outputs"),
			SupportedExtensions: []string{".json", ".yaml", ".yml"},
			MaxFileSizeMB:       envInt("MAX_FILE_SIZE_MB", 50),
			SettleDelay:         envDuration("WATCHER_SETTLE_DELAY", 2*time.Second),
			EnvironmentPatterns: defaultEnvironmentPatterns,
		},
		Processor: ProcessorConfig{
			ProcessedDir:       envString("PROCESSED_DIRECTORY", "./processed"),
			BatchSize:          envInt("BATCH_SIZE", 10),
			ProcessingInterval: envDuration("PROCESSING_INTERVAL", 5*time.Minute),
			CleanupInterval:    envDuration("CLEANUP_INTERVAL", 24*time.Hour),
			RetentionDays:      envInt("RETENTION_DAYS", 30),
			StartupScanDelay:   envDuration("STARTUP_SCAN_DELAY", 10*time.Second),
		},
		Export: ExportConfig{
			OutputDir:             envString("OUTPUT_DIRECTORY", "./powerbi_outputs"),
			Formats:               []string{"csv", "excel", "json"},
			SeparateByEnvironment: envBool("SEPARATE_BY_ENVIRONMENT", true),
		},
	}

	if path := os.Getenv("VCFLOW_ENV_MAPPING_FILE"); path != "" {
		patterns, err := loadEnvironmentPatterns(path)
		if err != nil {
			return nil, fmt.Errorf("load environment mapping: %w", err)
		}
		cfg.Watcher.EnvironmentPatterns = patterns
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Watcher.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", c.Watcher.MaxFileSizeMB)
	}
	if c.Processor.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.Processor.BatchSize)
	}
	if c.Processor.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.Processor.RetentionDays)
	}
	return nil
}

// EnsureDirs creates the watch, processed, and output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Watcher.WatchDir, c.Processor.ProcessedDir, c.Export.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// loadEnvironmentPatterns reads an ordered pattern list from a YAML file.
// The file is a list, not a map, so first-match order is deterministic.
func loadEnvironmentPatterns(path string) ([]EnvironmentPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var patterns []EnvironmentPattern
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, p := range patterns {
		if p.Pattern == "" {
			return nil, fmt.Errorf("entry %d: pattern is required", i)
		}
	}
	return patterns, nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
