// Package daemon manages the EduGuardian service lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // progression.timezone must resolve on minimal images

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/eduguardian/guardian/internal/app/progression"
)

// Config holds all service configuration.
type Config struct {
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Progression ProgressionConfig `toml:"progression"`
	Redis       RedisConfig       `toml:"redis"`
	AI          AIConfig          `toml:"ai"`
	Jobs        JobsConfig        `toml:"jobs"`
	Logging     LoggingConfig     `toml:"logging"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Dir           string `toml:"dir"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	WriteTimeout  string `toml:"write_timeout"`
}

// ProgressionConfig holds the game rules.
type ProgressionConfig struct {
	StudyXP          int64  `toml:"study_xp"`
	MaxStudyXP       int64  `toml:"max_study_xp"`
	UploadXP         int64  `toml:"upload_xp"`
	RatingXP         int64  `toml:"rating_xp"`
	AIUsageXP        int64  `toml:"ai_usage_xp"`
	MinStudyDuration string `toml:"min_study_duration"`
	Cooldown         string `toml:"cooldown"`
	SummaryLimit     int    `toml:"summary_limit"`
	FlashcardLimit   int    `toml:"flashcard_limit"`
	QuotaWindow      string `toml:"quota_window"`
	Timezone         string `toml:"timezone"`
	CommitRetries    int    `toml:"commit_retries"`
}

// RedisConfig enables the cross-instance user lock. Empty Addr keeps the
// in-process lock.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	LockTTL  string `toml:"lock_ttl"`
}

// AIConfig points at the generation service. Empty Endpoint uses the
// built-in mock.
type AIConfig struct {
	Endpoint string `toml:"endpoint"`
	Timeout  string `toml:"timeout"`
}

// JobsConfig controls background jobs.
type JobsConfig struct {
	CooldownSweepInterval string `toml:"cooldown_sweep_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	Mode  string `toml:"mode"` // dev | prod
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8085,
			CORSOrigins:    []string{},
			RequestTimeout: "30s",
		},
		Database: DatabaseConfig{
			Dir:           eduHome(),
			BusyTimeoutMS: 5000,
			WriteTimeout:  "5s",
		},
		Progression: ProgressionConfig{
			StudyXP:          100,
			MaxStudyXP:       500,
			UploadXP:         20,
			RatingXP:         10,
			AIUsageXP:        5,
			MinStudyDuration: "30s",
			Cooldown:         "5m",
			SummaryLimit:     5,
			FlashcardLimit:   5,
			QuotaWindow:      "24h",
			Timezone:         "UTC",
			CommitRetries:    3,
		},
		Redis: RedisConfig{
			LockTTL: "10s",
		},
		AI: AIConfig{
			Timeout: "60s",
		},
		Jobs: JobsConfig{
			CooldownSweepInterval: "10m",
		},
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "dev",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads $EDUGUARDIAN_HOME/config.toml over the defaults, then
// applies environment overrides (a .env file in the working directory is
// loaded first when present).
func LoadConfig() (Config, error) {
	_ = godotenv.Load() // optional

	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("EDUGUARDIAN_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EDUGUARDIAN_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("EDUGUARDIAN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EDUGUARDIAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EDUGUARDIAN_AI_ENDPOINT"); v != "" {
		cfg.AI.Endpoint = v
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	p := c.Progression
	if p.StudyXP < 0 || p.MaxStudyXP < 0 || p.UploadXP < 0 || p.RatingXP < 0 || p.AIUsageXP < 0 {
		errs = append(errs, errors.New("progression: xp values must not be negative"))
	}
	if p.SummaryLimit < 0 || p.FlashcardLimit < 0 {
		errs = append(errs, errors.New("progression: quota limits must not be negative"))
	}
	if p.CommitRetries < 1 {
		errs = append(errs, errors.New("progression: commit_retries must be at least 1"))
	}
	for _, d := range []struct {
		name, value string
	}{
		{"progression.cooldown", p.Cooldown},
		{"progression.quota_window", p.QuotaWindow},
		{"database.write_timeout", c.Database.WriteTimeout},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("%s: %q is not a positive duration", d.name, d.value))
		}
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("progression.timezone: %w", err))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port: %d out of range", c.API.Port))
	}
	return errors.Join(errs...)
}

// EngineConfig converts the progression section into engine rules.
// Call Validate first; unparsable durations fall back to defaults.
func (c Config) EngineConfig() progression.Config {
	def := progression.DefaultConfig()
	p := c.Progression
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return progression.Config{
		StudyXP:          p.StudyXP,
		MaxStudyXP:       p.MaxStudyXP,
		UploadXP:         p.UploadXP,
		RatingXP:         p.RatingXP,
		AIUsageXP:        p.AIUsageXP,
		MinStudyDuration: parseDuration(p.MinStudyDuration, def.MinStudyDuration),
		MaxStudyDuration: def.MaxStudyDuration,
		Cooldown:         parseDuration(p.Cooldown, def.Cooldown),
		Quota: progression.QuotaLimits{
			Summary:   p.SummaryLimit,
			Flashcard: p.FlashcardLimit,
			Window:    parseDuration(p.QuotaWindow, def.Quota.Window),
		},
		Location:      loc,
		CommitRetries: p.CommitRetries,
		WriteTimeout:  parseDuration(c.Database.WriteTimeout, def.WriteTimeout),
	}
}

// SaveConfig writes the config to $EDUGUARDIAN_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(eduHome(), "config.toml")
}

// eduHome returns the EduGuardian data directory.
func eduHome() string {
	if env := os.Getenv("EDUGUARDIAN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".eduguardian")
}

// Home is exported for use by other packages.
func Home() string {
	return eduHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
