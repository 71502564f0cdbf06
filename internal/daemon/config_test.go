package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8085 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8085)
	}
	if cfg.Progression.Cooldown != "5m" {
		t.Errorf("Progression.Cooldown = %q, want %q", cfg.Progression.Cooldown, "5m")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Progression.Timezone = "Europe/Berlin"
	cfg.Progression.SummaryLimit = 3
	ec := cfg.EngineConfig()

	if ec.Cooldown != 5*time.Minute {
		t.Errorf("Cooldown = %v", ec.Cooldown)
	}
	if ec.Quota.Summary != 3 || ec.Quota.Flashcard != 5 || ec.Quota.Window != 24*time.Hour {
		t.Errorf("Quota = %+v", ec.Quota)
	}
	if ec.Location.String() != "Europe/Berlin" {
		t.Errorf("Location = %v", ec.Location)
	}
	if ec.StudyXP != 100 || ec.MinStudyDuration != 30*time.Second || ec.WriteTimeout != 5*time.Second {
		t.Errorf("engine config = %+v", ec)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative xp", func(c *Config) { c.Progression.StudyXP = -1 }, "xp values"},
		{"negative limit", func(c *Config) { c.Progression.FlashcardLimit = -1 }, "quota limits"},
		{"zero cooldown", func(c *Config) { c.Progression.Cooldown = "0s" }, "progression.cooldown"},
		{"bad window", func(c *Config) { c.Progression.QuotaWindow = "daily" }, "progression.quota_window"},
		{"unknown tz", func(c *Config) { c.Progression.Timezone = "Mars/Olympus" }, "progression.timezone"},
		{"no retries", func(c *Config) { c.Progression.CommitRetries = 0 }, "commit_retries"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EDUGUARDIAN_HOME", home)

	cfg := DefaultConfig()
	cfg.Progression.StudyXP = 150
	cfg.Redis.Addr = "redis:6379"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Progression.StudyXP != 150 || got.Redis.Addr != "redis:6379" {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("EDUGUARDIAN_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Progression.StudyXP != 100 {
		t.Errorf("StudyXP = %d, want default", cfg.Progression.StudyXP)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EDUGUARDIAN_HOME", t.TempDir())
	t.Setenv("EDUGUARDIAN_API_PORT", "9999")
	t.Setenv("EDUGUARDIAN_REDIS_ADDR", "cache:6379")
	t.Setenv("EDUGUARDIAN_LOG_LEVEL", "debug")
	t.Setenv("EDUGUARDIAN_AI_ENDPOINT", "http://ai:8000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9999 || cfg.Redis.Addr != "cache:6379" ||
		cfg.Logging.Level != "debug" || cfg.AI.Endpoint != "http://ai:8000" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadConfig_BadPortEnv(t *testing.T) {
	t.Setenv("EDUGUARDIAN_HOME", t.TempDir())
	t.Setenv("EDUGUARDIAN_API_PORT", "eighty")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("empty = %v", got)
	}
	if got := parseDuration("nonsense", time.Second); got != time.Second {
		t.Errorf("invalid = %v", got)
	}
	if got := parseDuration("90s", time.Second); got != 90*time.Second {
		t.Errorf("90s = %v", got)
	}
}
