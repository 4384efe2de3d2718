// ============================================================================
// backend/internal/shared/config.go
// Configuration management and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"school_admin/backend/internal/gradebook"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds the configuration for the API server and the seeder
type ServiceConfig struct {
	ServiceName    string
	HTTPPort       string
	GRPCPort       string // health endpoint
	Environment    string // development, staging, production
	LogLevel       string // debug, info, warn, error
	RequestTimeout time.Duration
	ZeroIsScore    bool // a recorded 0 average counts as a grade, not as missing data

	MongoDB  MongoConfig
	Security SecurityConfig
	Email    EmailConfig
	CORS     CORSConfig
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret          string
	JWTExpirationHours int
	BCryptCost         int
	ResetTokenTTL      time.Duration
	ResetTokenDir      string // empty keeps reset tokens in memory only
}

// EmailConfig holds the SendGrid delivery settings
type EmailConfig struct {
	SendgridAPIKey string
	FromAddress    string
	FromName       string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: %s file not found, using system environment variables", envFile)
		return err
	}

	log.Printf("Successfully loaded environment from %s", envFile)
	return nil
}

// LoadServiceConfig loads the service configuration from environment
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	config := &ServiceConfig{
		ServiceName:    serviceName,
		HTTPPort:       GetEnv("HTTP_PORT", DefaultHTTPPort),
		GRPCPort:       GetEnv("GRPC_PORT", DefaultGRPCPort),
		Environment:    GetEnv("ENVIRONMENT", "development"),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		RequestTimeout: GetDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		ZeroIsScore:    GetBoolEnv("GRADE_ZERO_IS_SCORE", false),
	}

	mongoURI := GetEnv("MONGO_URI", "")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	config.MongoDB = MongoConfig{
		URI:            mongoURI,
		Database:       GetEnv("MONGO_DB_NAME", "escuela"),
		ConnectTimeout: GetDurationEnv("MONGO_CONNECT_TIMEOUT", 20*time.Second),
		MaxPoolSize:    uint64(GetIntEnv("MONGO_MAX_POOL_SIZE", 50)),
		MinPoolSize:    uint64(GetIntEnv("MONGO_MIN_POOL_SIZE", 5)),
		MaxIdleTime:    GetDurationEnv("MONGO_MAX_IDLE_TIME", 30*time.Second),
	}

	config.Security = SecurityConfig{
		JWTSecret:          GetEnv("JWT_SECRET", ""),
		JWTExpirationHours: GetIntEnv("JWT_EXPIRATION_HOURS", 7*24),
		BCryptCost:         GetIntEnv("BCRYPT_COST", 10),
		ResetTokenTTL:      GetDurationEnv("RESET_TOKEN_TTL", 15*time.Minute),
		ResetTokenDir:      GetEnv("RESET_TOKEN_DIR", ""),
	}

	config.Email = EmailConfig{
		SendgridAPIKey: GetEnv("SENDGRID_API_KEY", ""),
		FromAddress:    GetEnv("EMAIL_FROM", ""),
		FromName:       GetEnv("EMAIL_FROM_NAME", "Administración Escolar"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins:   GetStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		AllowedMethods:   GetStringSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
		AllowedHeaders:   GetStringSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
		AllowCredentials: GetBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		MaxAge:           GetIntEnv("CORS_MAX_AGE", 300),
	}

	if config.Security.JWTSecret == "" && serviceName == ServiceAPI {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required for the API server")
	}

	return config, nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetBoolEnv retrieves a boolean environment variable or returns a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetDurationEnv retrieves a duration environment variable or returns a default value
// Supports format like "30s", "5m", "1h"
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if config.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	if config.MongoDB.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}

	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database name is required")
	}

	if config.Security.JWTExpirationHours <= 0 {
		return fmt.Errorf("JWT expiration must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development environment
func (c *ServiceConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// EmailEnabled reports whether SendGrid credentials are present
func (c *ServiceConfig) EmailEnabled() bool {
	return c.Email.SendgridAPIKey != "" && c.Email.FromAddress != ""
}

// GradePolicy returns the zero-handling policy report averages use
func (c *ServiceConfig) GradePolicy() gradebook.Policy {
	if c.ZeroIsScore {
		return gradebook.ZeroIsScore
	}
	return gradebook.ZeroMeansMissing
}

// GetLogLevel returns the configured log level
func (c *ServiceConfig) GetLogLevel() string {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return c.LogLevel
	}
	return "info"
}

// ============================================================================
// Defaults
// ============================================================================

const (
	ServiceAPI    = "api"
	ServiceSeeder = "seeder"

	DefaultHTTPPort = "5000"
	DefaultGRPCPort = "50051"
)
