package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FallbackTourCapacity is used when neither the config file nor the
// environment provide a default capacity.
const FallbackTourCapacity = 3

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Mail       MailConfig       `yaml:"mail"`
	Events     EventsConfig     `yaml:"events"`
	Worker     WorkerConfig     `yaml:"worker"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP       APIHTTPConfig       `yaml:"http"`
	RateLimit  APIRateLimitConfig  `yaml:"rate_limit"`
	Submission APISubmissionConfig `yaml:"submission"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

// APIRateLimitConfig configures the per-client token bucket applied to every request.
type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// APISubmissionConfig limits public write endpoints (bookings, contact form)
// per client within a fixed window.
type APISubmissionConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	UserTokenTTLHours  int    `yaml:"user_token_ttl_hours"`
	AdminTokenTTLHours int    `yaml:"admin_token_ttl_hours"`
}

type BookingConfig struct {
	DefaultCapacity   int            `yaml:"default_capacity"`
	TourCapacities    map[string]int `yaml:"tour_capacities"`
	StrictTransitions bool           `yaml:"strict_transitions"`
	ExcludeInactive   bool           `yaml:"exclude_inactive"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MailConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	AdminAddress   string `yaml:"admin_address"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type WorkerConfig struct {
	MaxRetries          int `yaml:"max_retries"`
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	MaxRangeDays int `yaml:"max_range_days"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments use the process environment.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := config.applyEnvOverrides(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.DefaultCapacity < 1 {
		return fmt.Errorf("booking.default_capacity must be positive, got %d", c.Booking.DefaultCapacity)
	}

	return ValidateTourCapacities(c.Booking.TourCapacities)
}

func ValidateTourCapacities(capacities map[string]int) error {
	for tourID, capacity := range capacities {
		if strings.TrimSpace(tourID) == "" {
			return errors.New("tour capacity with empty tour id")
		}
		if capacity < 1 {
			return fmt.Errorf("tour '%s' has invalid capacity %d", tourID, capacity)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if raw := strings.TrimSpace(os.Getenv("DEFAULT_TOUR_CAPACITY")); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse DEFAULT_TOUR_CAPACITY: %w", err)
		}
		c.Booking.DefaultCapacity = capacity
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.API.HTTP.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tourbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 5000
	}
	if c.API.Submission.Limit == 0 {
		c.API.Submission.Limit = 10
	}
	if c.API.Submission.WindowSeconds == 0 {
		c.API.Submission.WindowSeconds = 60
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Auth.UserTokenTTLHours == 0 {
		c.Auth.UserTokenTTLHours = 1
	}
	if c.Auth.AdminTokenTTLHours == 0 {
		c.Auth.AdminTokenTTLHours = 24
	}

	if c.Booking.DefaultCapacity == 0 {
		c.Booking.DefaultCapacity = FallbackTourCapacity
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.TimeoutSeconds == 0 {
		c.Mail.TimeoutSeconds = 30
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "bookings"
	}

	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelaySeconds == 0 {
		c.Worker.InitialDelaySeconds = 2
	}
	if c.Worker.MaxDelaySeconds == 0 {
		c.Worker.MaxDelaySeconds = 60
	}
	if c.Worker.PollIntervalSeconds == 0 {
		c.Worker.PollIntervalSeconds = 2
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}

	if c.Exports.MaxRangeDays == 0 {
		c.Exports.MaxRangeDays = 366
	}
}
