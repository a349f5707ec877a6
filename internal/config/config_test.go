package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load("", tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8475 {
		t.Errorf("expected default port 8475, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.SweepInterval != 5 {
		t.Errorf("expected default sweep interval 5, got %d", cfg.Scheduler.SweepInterval)
	}
	if cfg.Storage.SQLitePath != filepath.Join(tmpDir, "dosetrack.db") {
		t.Errorf("unexpected sqlite path: %s", cfg.Storage.SQLitePath)
	}
	if cfg.Security.JWTSecret == "" {
		t.Error("expected JWT secret to be generated")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "dosetrack.yaml")

	content := `server:
  port: 9000
scheduler:
  sweep_interval: 1
  missed_grace_period: 30
notifications:
  rate_per_minute: 5
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configFile, tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.MissedGracePeriod != 30 {
		t.Errorf("expected grace period 30, got %d", cfg.Scheduler.MissedGracePeriod)
	}
	if cfg.Notifications.RatePerMinute != 5 {
		t.Errorf("expected rate 5, got %d", cfg.Notifications.RatePerMinute)
	}
}

func TestValidateRejectsEnabledChannelWithoutToken(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8475
	cfg.Notifications.Telegram.Enabled = true

	if err := validate(cfg); err == nil {
		t.Error("expected validation error for telegram without token")
	}
}

func TestValidateClampsSchedulerValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8475
	cfg.Scheduler.SweepInterval = -1
	cfg.Scheduler.MissedGracePeriod = -5

	if err := validate(cfg); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.Scheduler.SweepInterval != 5 {
		t.Errorf("expected sweep interval reset to 5, got %d", cfg.Scheduler.SweepInterval)
	}
	if cfg.Scheduler.MissedGracePeriod != 0 {
		t.Errorf("expected grace period clamped to 0, got %d", cfg.Scheduler.MissedGracePeriod)
	}
}
