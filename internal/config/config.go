package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Model    ModelConfig
	Training TrainingConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds configuration for the prediction audit database.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string // empty disables authentication
}

// S3Config holds AWS S3 configuration for model artifacts.
type S3Config struct {
	Enabled  bool
	Bucket   string
	Region   string
	Prefix   string // Path prefix within bucket (e.g., "models/")
	CacheDir string // local directory for downloaded artifacts
}

// ModelConfig holds configuration for serving a model artifact.
type ModelConfig struct {
	Dir            string
	MaxLength      int    // 0 keeps the artifact's trained ceiling
	Padding        string // "longest" or "max_length"
	RequestTimeout int    // seconds
	MaxBatch       int
}

// TrainingConfig holds default training hyperparameters.
type TrainingConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int
	TestSplit    float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 3157),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "compliance"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled:  getEnvAsBool("S3_ENABLED", false),
			Bucket:   getEnv("S3_BUCKET", ""),
			Region:   getEnv("S3_REGION", "us-east-1"),
			Prefix:   getEnv("S3_PREFIX", "models/"),
			CacheDir: getEnv("S3_CACHE_DIR", os.TempDir()),
		},
		Model: ModelConfig{
			Dir:            getEnv("MODEL_DIR", "compliance_doc_model"),
			MaxLength:      getEnvAsInt("MODEL_MAX_LENGTH", 0),
			Padding:        getEnv("MODEL_PADDING", "longest"),
			RequestTimeout: getEnvAsInt("MODEL_REQUEST_TIMEOUT", 30),
			MaxBatch:       getEnvAsInt("MODEL_MAX_BATCH", 1024),
		},
		Training: TrainingConfig{
			Epochs:       getEnvAsInt("TRAIN_EPOCHS", 20),
			BatchSize:    getEnvAsInt("TRAIN_BATCH_SIZE", 8),
			LearningRate: getEnvAsFloat("TRAIN_LEARNING_RATE", 5e-3),
			Seed:         getEnvAsInt("TRAIN_SEED", 42),
			TestSplit:    getEnvAsFloat("TRAIN_TEST_SPLIT", 0.2),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Model.Dir == "" {
		return fmt.Errorf("model directory is required")
	}

	if c.Model.MaxLength != 0 && c.Model.MaxLength < 2 {
		return fmt.Errorf("model max length must be 0 or at least 2, got %d", c.Model.MaxLength)
	}

	if c.Model.Padding != "longest" && c.Model.Padding != "max_length" {
		return fmt.Errorf("invalid model padding: %s (must be longest or max_length)", c.Model.Padding)
	}

	if c.Model.RequestTimeout < 1 {
		return fmt.Errorf("model request timeout must be at least 1 second")
	}

	if c.Model.MaxBatch < 1 {
		return fmt.Errorf("model max batch must be at least 1")
	}

	if c.Training.Epochs < 1 {
		return fmt.Errorf("training epochs must be at least 1")
	}

	if c.Training.BatchSize < 1 {
		return fmt.Errorf("training batch size must be at least 1")
	}

	if c.Training.LearningRate <= 0 || math.IsNaN(c.Training.LearningRate) || math.IsInf(c.Training.LearningRate, 0) {
		return fmt.Errorf("training learning rate must be positive")
	}

	if c.Training.Seed < 0 {
		return fmt.Errorf("training seed must not be negative")
	}

	if c.Training.TestSplit <= 0 || c.Training.TestSplit >= 1 {
		return fmt.Errorf("training test split must be between 0 and 1")
	}

	return nil
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the per-request inference deadline.
func (c *ModelConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// AuthEnabled reports whether requests must carry an API key.
func (c *AuthConfig) AuthEnabled() bool {
	return c.APIKey != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
