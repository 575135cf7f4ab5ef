package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Geofence GeofenceConfig
	Geocoder GeocoderConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
	ProvisionKey     string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// GeofenceConfig holds the attendance policy knobs
type GeofenceConfig struct {
	RadiusFeet         float64
	EarlyWindow        time.Duration
	MinMoveMeters      float64
	MinUpdateInterval  time.Duration
	MaxFixAge          time.Duration
	StaleSessionMaxAge time.Duration
	StaleSweepInterval time.Duration
}

// GeocoderConfig holds the forward-geocoding endpoint settings
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
}

func Load() (*Config, error) {
	// A missing .env is fine in deployed environments
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "fieldops"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "12h"),
		ProvisionKey:     getEnv("PROVISION_KEY", ""),
	}

	// Geofence policy configuration
	radiusFeet, err := strconv.ParseFloat(getEnv("GEOFENCE_RADIUS_FEET", "300"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GEOFENCE_RADIUS_FEET: %w", err)
	}
	earlyWindow, err := time.ParseDuration(getEnv("CLOCK_IN_EARLY_WINDOW", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOCK_IN_EARLY_WINDOW: %w", err)
	}
	minMove, err := strconv.ParseFloat(getEnv("LOCATION_MIN_MOVE_METERS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_MIN_MOVE_METERS: %w", err)
	}
	minInterval, err := time.ParseDuration(getEnv("LOCATION_MIN_UPDATE_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_MIN_UPDATE_INTERVAL: %w", err)
	}
	maxFixAge, err := time.ParseDuration(getEnv("LOCATION_MAX_FIX_AGE", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_MAX_FIX_AGE: %w", err)
	}
	staleMaxAge, err := time.ParseDuration(getEnv("STALE_SESSION_MAX_AGE", "16h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_SESSION_MAX_AGE: %w", err)
	}
	staleSweep, err := time.ParseDuration(getEnv("STALE_SWEEP_INTERVAL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_SWEEP_INTERVAL: %w", err)
	}

	config.Geofence = GeofenceConfig{
		RadiusFeet:         radiusFeet,
		EarlyWindow:        earlyWindow,
		MinMoveMeters:      minMove,
		MinUpdateInterval:  minInterval,
		MaxFixAge:          maxFixAge,
		StaleSessionMaxAge: staleMaxAge,
		StaleSweepInterval: staleSweep,
	}

	config.Geocoder = GeocoderConfig{
		BaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		UserAgent: getEnv("GEOCODER_USER_AGENT", "fieldops-backend/1.0"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.JWT.ProvisionKey == "" {
		return fmt.Errorf("PROVISION_KEY is required")
	}
	if c.Geofence.RadiusFeet <= 0 {
		return fmt.Errorf("GEOFENCE_RADIUS_FEET must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}
