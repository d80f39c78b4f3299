package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Gateway
	BackendURL     string        `mapstructure:"backend_url" validate:"required,url"`
	GatewayMode    string        `mapstructure:"gateway_mode" validate:"oneof=http gemini"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout" validate:"gte=0"`

	// Gemini (direct mode)
	GeminiAPIKey         string `mapstructure:"gemini_api_key" validate:"required_if=GatewayMode gemini"`
	GeminiModel          string `mapstructure:"gemini_model" validate:"required"`
	GeminiConcurrentReqs int    `mapstructure:"gemini_concurrent_requests" validate:"gte=1"`

	// Session store
	StoreBackend string `mapstructure:"store_backend" validate:"oneof=memory file redis postgres"`
	StorePath    string `mapstructure:"store_path" validate:"required_if=StoreBackend file"`
	StoreProfile string `mapstructure:"store_profile" validate:"required"`
	RedisURL     string `mapstructure:"redis_url" validate:"required_if=StoreBackend redis"`
	DatabaseURL  string `mapstructure:"database_url" validate:"required_if=StoreBackend postgres"`

	// Local API
	Port        string `mapstructure:"port" validate:"required,numeric"`
	FrontendURL string `mapstructure:"frontend_url" validate:"required,url"`

	// Logging
	Env      string `mapstructure:"env" validate:"oneof=development production test"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `mapstructure:"log_file"`
}

var defaults = map[string]interface{}{
	"backend_url":                "http://127.0.0.1:5000",
	"gateway_mode":               "http",
	"gateway_timeout":            "0s",
	"gemini_api_key":             "",
	"gemini_model":               "gemini-2.0-flash",
	"gemini_concurrent_requests": 3,
	"store_backend":              "file",
	"store_path":                 "./.smartstudy",
	"store_profile":              "default",
	"redis_url":                  "",
	"database_url":               "",
	"port":                       "8080",
	"frontend_url":               "http://localhost:3000",
	"env":                        "development",
	"log_level":                  "info",
	"log_file":                   "./logs/smartstudy.log",
}

// Load reads .env (if present) and the process environment. Environment
// variables win over .env values.
func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.GatewayMode = strings.ToLower(cfg.GatewayMode)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
