// Package config loads portal configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the portal service.
type Config struct {
	HTTPPort             int
	SQLiteDSN            string
	SessionTTL           time.Duration
	SessionSweepSchedule string
	BootstrapAdminEmail  string
	BootstrapAdminPass   string
}

// fileConfig is the YAML shape. Durations are spelled as Go duration
// strings such as "24h".
type fileConfig struct {
	HTTPPort             *int   `yaml:"http_port"`
	SQLiteDSN            string `yaml:"sqlite_dsn"`
	SessionTTL           string `yaml:"session_ttl"`
	SessionSweepSchedule string `yaml:"session_sweep_schedule"`
	BootstrapAdminEmail  string `yaml:"bootstrap_admin_email"`
	BootstrapAdminPass   string `yaml:"bootstrap_admin_password"`
}

// Load builds the configuration in three layers: defaults, then the YAML
// file named by PORTAL_CONFIG_FILE (if set), then PORTAL_* environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		SQLiteDSN:            "file:portal.db",
		SessionTTL:           24 * time.Hour,
		SessionSweepSchedule: "@hourly",
	}

	if path := strings.TrimSpace(os.Getenv("PORTAL_CONFIG_FILE")); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("PORTAL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PORTAL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("PORTAL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("PORTAL_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "PORTAL_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if schedule := strings.TrimSpace(os.Getenv("PORTAL_SESSION_SWEEP_SCHEDULE")); schedule != "" {
		cfg.SessionSweepSchedule = schedule
	}

	if email := strings.TrimSpace(os.Getenv("PORTAL_BOOTSTRAP_ADMIN_EMAIL")); email != "" {
		cfg.BootstrapAdminEmail = email
	}
	if password := os.Getenv("PORTAL_BOOTSTRAP_ADMIN_PASSWORD"); password != "" {
		cfg.BootstrapAdminPass = password
	}

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPass == "" {
		return Config{}, errors.New("a bootstrap admin email was provided without a password")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.HTTPPort != nil {
		if *file.HTTPPort <= 0 {
			return fmt.Errorf("config file %s: http_port must be positive", path)
		}
		cfg.HTTPPort = *file.HTTPPort
	}
	if dsn := strings.TrimSpace(file.SQLiteDSN); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if ttlValue := strings.TrimSpace(file.SessionTTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("config file %s: session_ttl is invalid", path)
		}
		cfg.SessionTTL = ttl
	}
	if schedule := strings.TrimSpace(file.SessionSweepSchedule); schedule != "" {
		cfg.SessionSweepSchedule = schedule
	}
	if email := strings.TrimSpace(file.BootstrapAdminEmail); email != "" {
		cfg.BootstrapAdminEmail = email
	}
	if file.BootstrapAdminPass != "" {
		cfg.BootstrapAdminPass = file.BootstrapAdminPass
	}

	return nil
}
