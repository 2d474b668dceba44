package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HookPort != defaultHookPort {
		t.Fatalf("hook port = %d, want %d", cfg.HookPort, defaultHookPort)
	}
	if cfg.StorePath != defaultStorePath {
		t.Fatalf("store path = %q", cfg.StorePath)
	}
	if cfg.PopularThreshold != defaultPopularThreshold {
		t.Fatalf("threshold = %d, want %d", cfg.PopularThreshold, defaultPopularThreshold)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(envHookPort, "9999")
	t.Setenv(envStorePath, "/tmp/sentinel.json")
	t.Setenv(envPopularThreshold, "25")
	t.Setenv(envSlackWebhookURL, "https://hooks.slack.com/services/T/B/X")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HookPort != 9999 {
		t.Fatalf("hook port = %d", cfg.HookPort)
	}
	if cfg.StorePath != "/tmp/sentinel.json" {
		t.Fatalf("store path = %q", cfg.StorePath)
	}
	if cfg.PopularThreshold != 25 {
		t.Fatalf("threshold = %d", cfg.PopularThreshold)
	}
	if cfg.SlackWebhookURL == "" {
		t.Fatal("slack webhook not loaded")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "hook port not a number", key: envHookPort, value: "banana"},
		{name: "hook port out of range", key: envHookPort, value: "70000"},
		{name: "hook port zero", key: envHookPort, value: "0"},
		{name: "threshold not a number", key: envPopularThreshold, value: "many"},
		{name: "threshold zero", key: envPopularThreshold, value: "0"},
		{name: "slack url without scheme", key: envSlackWebhookURL, value: "hooks.slack.com/x"},
		{name: "webhook url without host", key: envWebhookURL, value: "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
