package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.SendDelay() != 200*time.Millisecond {
		t.Errorf("SendDelay = %v, want 200ms", cfg.SendDelay())
	}
	if cfg.SMTPHost != "localhost" || cfg.SMTPPort != 25 {
		t.Errorf("SMTP defaults = %s:%d, want localhost:25", cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.DBMaxOpenConns != 25 || cfg.DBMaxIdleConns != 5 {
		t.Errorf("DB pool defaults = %d/%d, want 25/5", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	}

	transports, err := cfg.Transports()
	if err != nil {
		t.Fatalf("Transports() error = %v", err)
	}
	want := []string{"sendmail", "smtp", "api", "file"}
	if len(transports) != len(want) {
		t.Fatalf("transports = %v, want %v", transports, want)
	}
	for i := range want {
		if transports[i] != want[i] {
			t.Fatalf("transports = %v, want %v", transports, want)
		}
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("TRANSPORT_PRIORITY", "SMTP, file")
	t.Setenv("SEND_DELAY_MS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 250 {
		t.Errorf("RateLimitPerSec = %d, want 250", cfg.RateLimitPerSec)
	}
	if cfg.SendDelay() != 50*time.Millisecond {
		t.Errorf("SendDelay = %v, want 50ms", cfg.SendDelay())
	}

	transports, err := cfg.Transports()
	if err != nil {
		t.Fatalf("Transports() error = %v", err)
	}
	if len(transports) != 2 || transports[0] != "smtp" || transports[1] != "file" {
		t.Fatalf("transports = %v, want [smtp file]", transports)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "placeholder")
	os.Unsetenv("DATABASE_DSN")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
}

func TestLoad_UnknownTransport(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRANSPORT_PRIORITY", "smtp,carrier-pigeon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unknown transport, got nil")
	}
}
