package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envHookPort         = "RS_HOOK_PORT"
	envHealthPort       = "RS_HEALTH_PORT"
	envMetricsPort      = "RS_METRICS_PORT"
	envStorePath        = "RS_STORE_PATH"
	envGroupsFile       = "RS_GROUPS_FILE"
	envSlackWebhookURL  = "RS_SLACK_WEBHOOK_URL"
	envWebhookURL       = "RS_WEBHOOK_URL"
	envPopularThreshold = "RS_POPULAR_THRESHOLD"
)

const (
	defaultHookPort         = 8080
	defaultHealthPort       = 8081
	defaultMetricsPort      = 9090
	defaultStorePath        = "./data/registry-sentinel.json"
	defaultPopularThreshold = 100
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	HookPort         int
	HealthPort       int
	MetricsPort      int
	StorePath        string
	GroupsFile       string
	SlackWebhookURL  string
	WebhookURL       string
	PopularThreshold int
}

// Load reads configuration from environment variables and a local .env file
// if present. Existing environment variables take precedence over values in
// .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HookPort:         defaultHookPort,
		HealthPort:       defaultHealthPort,
		MetricsPort:      defaultMetricsPort,
		StorePath:        defaultStorePath,
		PopularThreshold: defaultPopularThreshold,
	}

	var err error
	if cfg.HookPort, err = lookupPort(envHookPort, cfg.HookPort); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort, err = lookupPort(envHealthPort, cfg.HealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = lookupPort(envMetricsPort, cfg.MetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envStorePath); ok {
		cfg.StorePath = value
	}
	if cfg.StorePath == "" {
		return Config{}, errors.New("RS_STORE_PATH must not be empty")
	}

	if value, ok := lookupTrimmed(envGroupsFile); ok {
		cfg.GroupsFile = value
	}

	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}
	if cfg.SlackWebhookURL != "" {
		if err := validateURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}

	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}
	if cfg.WebhookURL != "" {
		if err := validateURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	if value, ok := lookupTrimmed(envPopularThreshold); ok {
		threshold, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPopularThreshold, err)
		}
		if threshold <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envPopularThreshold)
		}
		cfg.PopularThreshold = threshold
	}

	if cfg.HookPort == 0 {
		return Config{}, errors.New("RS_HOOK_PORT must not be zero")
	}

	return cfg, nil
}

func lookupPort(key string, fallback int) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return fallback, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s out of range", key)
	}
	return port, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
