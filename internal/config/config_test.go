package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "DB_DSN", "HTTP_ADDR", "TOKEN_TTL", "CORS_ORIGINS", "ENABLE_SCHEDULER", "NOTIFICATION_START_HOUR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.DBDriver != "sqlite3" {
		t.Errorf("Expected sqlite3 driver, got %q", cfg.DBDriver)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected :8080, got %q", cfg.HTTPAddr)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("Expected 24h token TTL, got %s", cfg.TokenTTL)
	}
	if !cfg.SchedulerEnabled {
		t.Error("Expected scheduler to be enabled by default")
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("Expected no CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("CORS_ORIGINS", " https://a.example, https://b.example ,,")
	t.Setenv("ENABLE_SCHEDULER", "false")
	t.Setenv("NOTIFICATION_START_HOUR", "25")
	t.Setenv("REMINDER_AFTER", "not-a-duration")

	cfg := Load()
	if cfg.DBDriver != "postgres" {
		t.Errorf("Expected postgres driver, got %q", cfg.DBDriver)
	}
	if cfg.TokenTTL != 90*time.Minute {
		t.Errorf("Expected 90m, got %s", cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins: %v", cfg.CORSOrigins)
	}
	if cfg.SchedulerEnabled {
		t.Error("Expected scheduler to be disabled")
	}
	if cfg.NotificationStartHour != 8 {
		t.Errorf("Out of range hour should fall back to 8, got %d", cfg.NotificationStartHour)
	}
	if cfg.ReminderAfter != 6*time.Hour {
		t.Errorf("Invalid duration should fall back to 6h, got %s", cfg.ReminderAfter)
	}
}

func TestJWTSecretValidation(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		devMode string
		wantErr bool
	}{
		{"missing secret", "", "", true},
		{"missing secret in dev mode", "", "true", false},
		{"development secret outside dev mode", devJWTSecret, "false", true},
		{"configured secret", "s3cr3t-from-vault", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("DEV_MODE", tt.devMode)

			cfg := Load()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.JWTSecret == "" {
				t.Error("Expected a signing secret to be set")
			}
		})
	}
}
