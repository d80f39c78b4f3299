package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}

	if cfg.BackendURL != "http://127.0.0.1:5000" {
		t.Errorf("Expected loopback backend URL, got %q", cfg.BackendURL)
	}
	if cfg.GatewayMode != "http" {
		t.Errorf("Expected http gateway mode, got %q", cfg.GatewayMode)
	}
	if cfg.StoreBackend != "file" {
		t.Errorf("Expected file store backend, got %q", cfg.StoreBackend)
	}
	if cfg.StoreProfile != "default" {
		t.Errorf("Expected default profile, got %q", cfg.StoreProfile)
	}
	if cfg.GatewayTimeout != 0 {
		t.Errorf("Expected no gateway timeout, got %v", cfg.GatewayTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com/")
	t.Setenv("GATEWAY_TIMEOUT", "45s")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("STORE_PROFILE", "alice")
	t.Setenv("GEMINI_CONCURRENT_REQUESTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.BackendURL != "https://api.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.GatewayTimeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", cfg.GatewayTimeout)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("Expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.StoreProfile != "alice" {
		t.Errorf("Expected profile alice, got %q", cfg.StoreProfile)
	}
	if cfg.GeminiConcurrentReqs != 7 {
		t.Errorf("Expected 7 concurrent requests, got %d", cfg.GeminiConcurrentReqs)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown gateway mode", map[string]string{"GATEWAY_MODE": "grpc"}},
		{"gemini without key", map[string]string{"GATEWAY_MODE": "gemini"}},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}},
		{"bad backend url", map[string]string{"BACKEND_URL": "not a url"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_GeminiWithKey(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.GatewayMode != "gemini" {
		t.Errorf("Expected gemini mode, got %q", cfg.GatewayMode)
	}
}
