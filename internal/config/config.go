// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Worker  WorkerConfig  `yaml:"worker"`
	Runner  RunnerConfig  `yaml:"runner"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	Workers int `yaml:"workers"`
}

// RunnerConfig holds task runner configuration
type RunnerConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// JournalConfig holds the finished-task journal configuration
type JournalConfig struct {
	Path           string `yaml:"path"`
	RetentionHours int    `yaml:"retentionHours"`
}

// LogConfig holds logging configuration. An empty file means stderr.
type LogConfig struct {
	File string `yaml:"file"`
}

// Default configuration values
const (
	DefaultServerPort          = "8080"
	DefaultServerReadTimeout   = 30
	DefaultServerWriteTimeout  = 30
	DefaultWorkers             = 10
	DefaultRunnerOutputDir     = "./data/output"
	DefaultJournalPath         = "./data/journal"
	DefaultJournalRetentionHrs = 72
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Load builds the configuration from the YAML file, environment variables
// and defaults, in increasing order of precedence for the environment and
// decreasing for the file. A missing config file is not an error: the
// daemon runs fine on defaults alone.
func Load(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fill in defaults for anything the file left unset.
	if config.Server.Port == "" {
		config.Server.Port = DefaultServerPort
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if config.Worker.Workers == 0 {
		config.Worker.Workers = DefaultWorkers
	}
	if config.Runner.OutputDir == "" {
		config.Runner.OutputDir = DefaultRunnerOutputDir
	}
	if config.Journal.Path == "" {
		config.Journal.Path = DefaultJournalPath
	}
	if config.Journal.RetentionHours == 0 {
		config.Journal.RetentionHours = DefaultJournalRetentionHrs
	}

	// Environment variables win over the file.
	config.Server.Port = getEnv("TALPS_SERVER_PORT", config.Server.Port)
	config.Server.ReadTimeout = getEnvInt("TALPS_SERVER_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getEnvInt("TALPS_SERVER_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Worker.Workers = getEnvInt("TALPS_WORKERS", config.Worker.Workers)
	config.Runner.OutputDir = getEnv("TALPS_RUNNER_OUTPUT_DIR", config.Runner.OutputDir)
	config.Journal.Path = getEnv("TALPS_JOURNAL_PATH", config.Journal.Path)
	config.Journal.RetentionHours = getEnvInt("TALPS_JOURNAL_RETENTION_HOURS", config.Journal.RetentionHours)
	config.Log.File = getEnv("TALPS_LOG_FILE", config.Log.File)

	return &config, nil
}
