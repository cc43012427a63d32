package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the dashboard service.
type Config struct {
	CollectionBaseURL  string
	CollectionUsername string
	CollectionPassword string
	DemoMode           bool
	PollInterval       time.Duration
	HTTPListenAddr     string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	CollectionTimeout  time.Duration
	LogLevel           string
	LogDebug           bool
}

// Load reads environment variables and validates required settings.
// An empty COLLECTION_BASE_URL enables demonstration mode.
func Load() (Config, error) {
	baseURL := strings.TrimSpace(os.Getenv("COLLECTION_BASE_URL"))
	cfg := Config{
		DemoMode:          baseURL == "",
		PollInterval:      durationFromEnv("DASHBOARD_POLL_INTERVAL", 2*time.Second),
		HTTPListenAddr:    stringFromEnv("DASHBOARD_LISTEN_ADDRESS", ":8080"),
		HTTPReadTimeout:   durationFromEnv("DASHBOARD_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:  durationFromEnv("DASHBOARD_WRITE_TIMEOUT", 10*time.Second),
		CollectionTimeout: durationFromEnv("COLLECTION_TIMEOUT", 8*time.Second),
		LogLevel:          stringFromEnv("LOG_LEVEL", "info"),
		LogDebug:          boolFromEnv("LOG_DEBUG", false),
	}

	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("DASHBOARD_POLL_INTERVAL must be > 0")
	}

	if cfg.DemoMode {
		return cfg, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return Config{}, fmt.Errorf("COLLECTION_BASE_URL must be a valid absolute URL")
	}

	username := strings.TrimSpace(os.Getenv("COLLECTION_USERNAME"))
	if username == "" {
		return Config{}, fmt.Errorf("COLLECTION_USERNAME must be set")
	}

	password, err := loadPassword()
	if err != nil {
		return Config{}, err
	}

	cfg.CollectionBaseURL = strings.TrimRight(parsedURL.String(), "/")
	cfg.CollectionUsername = username
	cfg.CollectionPassword = password

	return cfg, nil
}

func loadPassword() (string, error) {
	if password := strings.TrimSpace(os.Getenv("COLLECTION_PASSWORD")); password != "" {
		return password, nil
	}

	secretPath := strings.TrimSpace(os.Getenv("COLLECTION_PASSWORD_FILE"))
	if secretPath == "" {
		return "", fmt.Errorf("either COLLECTION_PASSWORD or COLLECTION_PASSWORD_FILE must be set")
	}

	secretData, err := os.ReadFile(secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to read COLLECTION_PASSWORD_FILE: %w", err)
	}

	password := strings.TrimSpace(string(secretData))
	if password == "" {
		return "", fmt.Errorf("COLLECTION_PASSWORD_FILE is empty")
	}

	return password, nil
}

func durationFromEnv(name string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err == nil {
		return parsed
	}

	// Accept plain integers as seconds for convenience (e.g. "2" => 2s).
	if seconds, parseErr := strconv.Atoi(value); parseErr == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	return fallback
}

func boolFromEnv(name string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}

	return parsed
}

func stringFromEnv(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	return value
}
