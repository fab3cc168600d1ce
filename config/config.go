package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Key-value store (drafts, templates, database snapshots)
	KVPath string

	// API Server
	APIPort string
	APIHost string

	// Logging
	LogLevel string

	// Worker Pool (batch chart rendering)
	WorkerPoolSize int

	// Session listing
	Sessions SessionsConfig `mapstructure:"sessions"`

	// Draft autosave
	Autosave AutosaveConfig `mapstructure:"autosave"`

	// Form defaults applied on reset (runtime-writable)
	FormDefaults FormDefaults `mapstructure:"form_defaults"`
}

// SessionsConfig holds session listing parameters
type SessionsConfig struct {
	ListLimit     int `mapstructure:"list_limit"`
	QuickFillScan int `mapstructure:"quick_fill_scan"`
}

// FormDefaults holds the shift parameters a form reset restores.
// Line and date are not defaulted: a reset clears the line and sets
// the date to today.
type FormDefaults struct {
	PlanTarget        float64 `mapstructure:"plan_target" json:"plan_target"`
	AchievementFactor float64 `mapstructure:"achievement_factor" json:"achievement_factor"`
	RequiredManpower  float64 `mapstructure:"required_manpower" json:"required_manpower"`
	ActualManpower    float64 `mapstructure:"actual_manpower" json:"actual_manpower"`
	StartTime         string  `mapstructure:"start_time" json:"start_time"`
	EndTime           string  `mapstructure:"end_time" json:"end_time"`
	BreakTime         float64 `mapstructure:"break_time" json:"break_time"`
}

// LoadConfig loads configuration from .env and config.yaml
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		// .env file is optional, only warn
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	// Load YAML configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..") // For when running from subdirectories

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	config := &Config{
		// Load from environment variables
		KVPath:         getEnv("KV_PATH", "./data/prodmon.db"),
		APIPort:        getEnv("API_PORT", "8080"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 4),
	}

	// Load from YAML
	if err := viper.UnmarshalKey("sessions", &config.Sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions config: %w", err)
	}
	if err := viper.UnmarshalKey("autosave", &config.Autosave); err != nil {
		return nil, fmt.Errorf("failed to unmarshal autosave config: %w", err)
	}
	if err := viper.UnmarshalKey("form_defaults", &config.FormDefaults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal form_defaults: %w", err)
	}

	if config.Sessions.ListLimit <= 0 {
		config.Sessions.ListLimit = 50
	}
	if config.Sessions.QuickFillScan <= 0 {
		config.Sessions.QuickFillScan = 30
	}

	if config.KVPath == "" {
		return nil, fmt.Errorf("KV_PATH is required")
	}

	return config, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
