package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultWeatherURL     = "https://api.openweathermap.org/data/2.5/weather"
	DefaultImageSearchURL = "https://www.googleapis.com/customsearch/v1"
	DefaultCity           = "indore"
)

type Config struct {
	HTTPPort string
	Env      string
	LogLevel string

	WeatherAPIKey   string
	WeatherURL      string
	GoogleAPIKey    string
	SearchEngineID  string
	ImageSearchURL  string
	UpstreamTimeout time.Duration
	DefaultCity     string

	KafkaBrokers     []string
	DiagnosticsTopic string
	DiagnosticsGroup string

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string
	ServiceName  string
}

func Load() *Config {
	timeout := getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 5)
	if timeout <= 0 {
		timeout = 5
	}

	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		WeatherAPIKey:    getEnv("OPENWEATHER_API_KEY", ""),
		WeatherURL:       getEnv("WEATHER_API_URL", DefaultWeatherURL),
		GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		SearchEngineID:   getEnv("SEARCH_ENGINE_ID", ""),
		ImageSearchURL:   getEnv("IMAGE_SEARCH_URL", DefaultImageSearchURL),
		UpstreamTimeout:  time.Duration(timeout) * time.Second,
		DefaultCity:      getEnv("DEFAULT_CITY", DefaultCity),
		KafkaBrokers:     getEnvSlice("KAFKA_BROKERS", nil),
		DiagnosticsTopic: getEnv("DIAGNOSTICS_TOPIC", "citypage.diagnostics"),
		DiagnosticsGroup: getEnv("DIAGNOSTICS_GROUP", "citypage_diagnostics_tail"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:      getEnv("OTEL_SERVICE_NAME", "citypage"),
	}
}

// ImageSearchEnabled reports whether both image-search credentials are set.
func (c *Config) ImageSearchEnabled() bool {
	return c.GoogleAPIKey != "" && c.SearchEngineID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
