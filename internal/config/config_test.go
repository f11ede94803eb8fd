package config

import (
	"os"
	"testing"
)

var configEnvKeys = []string{
	"APP_PORT",
	"DATABASE_DSN",
	"JWT_SECRET",
	"APP_ENV",
	"APP_URL",
	"ACCESS_TOKEN_TTL_MINUTES",
	"REFRESH_TOKEN_TTL_DAYS",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.AppURL != "http://localhost:8080" {
		t.Errorf("Load() AppURL = %v, want http://localhost:8080", cfg.AppURL)
	}
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7", cfg.RefreshTokenTTLDays)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("APP_PORT", "9090")
	os.Setenv("DATABASE_DSN", "host=db user=chat dbname=chat")
	os.Setenv("JWT_SECRET", "my-secret")
	os.Setenv("APP_ENV", "prod")
	os.Setenv("APP_URL", "https://chat.example.com")
	os.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	os.Setenv("REFRESH_TOKEN_TTL_DAYS", "14")
	defer clearConfigEnv(t)

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.DatabaseDSN != "host=db user=chat dbname=chat" {
		t.Errorf("Load() DatabaseDSN = %v, want host=db user=chat dbname=chat", cfg.DatabaseDSN)
	}
	if cfg.JWTSecret != "my-secret" {
		t.Errorf("Load() JWTSecret = %v, want my-secret", cfg.JWTSecret)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if cfg.AppURL != "https://chat.example.com" {
		t.Errorf("Load() AppURL = %v, want https://chat.example.com", cfg.AppURL)
	}
	if cfg.AccessTokenTTLMinutes != 30 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 30", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 14 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 14", cfg.RefreshTokenTTLDays)
	}
}

func TestLoad_InvalidTTL(t *testing.T) {
	clearConfigEnv(t)
	os.Setenv("ACCESS_TOKEN_TTL_MINUTES", "invalid")
	os.Setenv("REFRESH_TOKEN_TTL_DAYS", "-5")
	defer clearConfigEnv(t)

	cfg := Load()

	// Unparseable and non-positive TTLs fall back to defaults
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15 (default)", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7 (default)", cfg.RefreshTokenTTLDays)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Port:        "8080",
		DatabaseDSN: "host=localhost dbname=chat",
		JWTSecret:   "a-real-secret",
		Env:         "dev",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid dev config", func(c *Config) {}, false},
		{"valid prod config", func(c *Config) { c.Env = "prod" }, false},
		{"default secret in dev", func(c *Config) { c.JWTSecret = "dev-secret-change-me" }, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = "" }, true},
		{"default secret in prod", func(c *Config) { c.Env = "prod"; c.JWTSecret = "dev-secret-change-me" }, true},
		{"default secret in staging", func(c *Config) { c.Env = "staging"; c.JWTSecret = "dev-secret-change-me" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
