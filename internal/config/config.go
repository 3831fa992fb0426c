package config

import (
	"os"
	"runtime"
	"strconv"

	"gosbic/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Paths      PathConfig
	Experiment ExperimentConfig
}

// DatabaseConfig holds the optional results-store settings. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	ReportFile string
}

// ExperimentConfig holds the simulation driver settings
type ExperimentConfig struct {
	Name       string
	Replicates int
	SampleSize int
	Seed       int64
	Workers    int
	Phi        float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Paths:    loadPathConfig(),
	}

	expConfig, err := loadExperimentConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load experiment configuration")
	}
	config.Experiment = *expConfig

	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	return DatabaseConfig{
		URL:     url,
		Enabled: url != "",
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadPathConfig() PathConfig {
	return PathConfig{
		ReportFile: getEnvOrDefault("REPORT_FILE", ""),
	}
}

func loadExperimentConfig() (*ExperimentConfig, error) {
	cfg := &ExperimentConfig{
		Name:       getEnvOrDefault("EXPERIMENT_NAME", "latent-class-n50"),
		Replicates: getEnvIntOrDefault("REPLICATES", 100),
		SampleSize: getEnvIntOrDefault("SAMPLE_SIZE", 50),
		Seed:       int64(getEnvIntOrDefault("SEED", 1)),
		Workers:    getEnvIntOrDefault("WORKERS", runtime.NumCPU()),
		Phi:        getEnvFloatOrDefault("PHI", 4),
	}
	if cfg.Replicates < 1 {
		return nil, errors.ConfigInvalid("REPLICATES must be positive")
	}
	if cfg.SampleSize < 2 {
		return nil, errors.ConfigInvalid("SAMPLE_SIZE must be at least 2")
	}
	if cfg.Workers < 1 {
		return nil, errors.ConfigInvalid("WORKERS must be positive")
	}
	if cfg.Phi <= 0 {
		return nil, errors.ConfigInvalid("PHI must be positive")
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
