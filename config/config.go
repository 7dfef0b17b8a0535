package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Database  DatabaseConfig
	NATS      NATSConfig
	HTTP      HTTPConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Engine    EngineConfig
	Collector CollectorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL     string
	Stream  string
	Subject string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Port int
	Path string
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// EngineConfig holds question-answering engine settings
type EngineConfig struct {
	// ResultLimit bounds how many snapshots a single question may inspect
	ResultLimit int

	// ScopeHostname and ScopeUsername, when set, pin every question to one
	// machine and account
	ScopeHostname string
	ScopeUsername string

	// SearchTimeout caps the snapshot store lookup per question
	SearchTimeout time.Duration

	// GenerateTimeout caps the optional generative enrichment per question
	GenerateTimeout time.Duration

	// EnrichmentEnabled toggles the generative paraphrase layer
	EnrichmentEnabled bool
}

// CollectorConfig holds telemetry collector settings
type CollectorConfig struct {
	// Interval between snapshot captures
	Interval time.Duration

	// SpeedTestEvery runs the expensive speed probe once per N captures
	SpeedTestEvery int

	// ExpectedCountry is the home country code used by VPN detection; a
	// public IP geolocated elsewhere suggests a tunnel exit
	ExpectedCountry string

	// IPInfoURL and IPEchoURL are the geolocation and address lookup services
	IPInfoURL string
	IPEchoURL string

	// SpeedProbeURL is the endpoint downloaded to estimate throughput
	SpeedProbeURL string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "monitoring"),
			Password: getEnv("DB_PASSWORD", "monitoring"),
			Database: getEnv("DB_NAME", "monitoring"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "monitoring-snapshots"),
			Subject: getEnv("NATS_SUBJECT", "monitoring.snapshots.*"),
		},
		HTTP: HTTPConfig{
			Port:         getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Port: getEnvInt("METRICS_PORT", 9090),
			Path: getEnv("METRICS_PATH", "/metrics"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", true),
			ServiceName: getEnv("SERVICE_NAME", "telemetry-qa"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4318"),
		},
		Engine: EngineConfig{
			ResultLimit:       getEnvInt("ENGINE_RESULT_LIMIT", 10),
			ScopeHostname:     getEnv("ENGINE_SCOPE_HOSTNAME", ""),
			ScopeUsername:     getEnv("ENGINE_SCOPE_USERNAME", ""),
			SearchTimeout:     getEnvDuration("ENGINE_SEARCH_TIMEOUT", 5*time.Second),
			GenerateTimeout:   getEnvDuration("ENGINE_GENERATE_TIMEOUT", 10*time.Second),
			EnrichmentEnabled: getEnvBool("ENGINE_ENRICHMENT_ENABLED", true),
		},
		Collector: CollectorConfig{
			Interval:        getEnvDuration("COLLECTOR_INTERVAL", 5*time.Minute),
			SpeedTestEvery:  getEnvInt("COLLECTOR_SPEED_TEST_EVERY", 6),
			ExpectedCountry: getEnv("COLLECTOR_EXPECTED_COUNTRY", "TR"),
			IPInfoURL:       getEnv("COLLECTOR_IPINFO_URL", "https://ipinfo.io/json"),
			IPEchoURL:       getEnv("COLLECTOR_IPECHO_URL", "https://api.ipify.org"),
			SpeedProbeURL:   getEnv("COLLECTOR_SPEED_PROBE_URL", "https://speed.cloudflare.com/__down?bytes=10000000"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
