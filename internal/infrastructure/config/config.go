package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Threat     ThreatConfig     `koanf:"threat"`
	Audit      AuditConfig      `koanf:"audit"`
	Compliance ComplianceConfig `koanf:"compliance"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// ThreatConfig tunes the detector thresholds and windows of the threat
// scoring engine.
type ThreatConfig struct {
	FailedLoginThreshold int           `koanf:"failed_login_threshold"`
	FailedLoginWindow    time.Duration `koanf:"failed_login_window"`
	ExportThreshold      int           `koanf:"export_threshold"`
	ExportWindow         time.Duration `koanf:"export_window"`
	DistinctIPThreshold  int           `koanf:"distinct_ip_threshold"`
	DistinctIPWindow     time.Duration `koanf:"distinct_ip_window"`
	QuietHourStart       int           `koanf:"quiet_hour_start"`
	QuietHourEnd         int           `koanf:"quiet_hour_end"`
	SuspiciousIPs        []string      `koanf:"suspicious_ips"`
	SubjectCacheSize     int           `koanf:"subject_cache_size"`
}

// AuditConfig tunes the audit risk tracker.
type AuditConfig struct {
	SubjectCacheSize int           `koanf:"subject_cache_size"`
	MetricThreshold  int           `koanf:"metric_threshold"`
	MaxAgeDays       int           `koanf:"max_age_days"`
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`
}

type ComplianceConfig struct {
	CheckOnStartup bool          `koanf:"check_on_startup"`
	CheckInterval  time.Duration `koanf:"check_interval"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Threat: ThreatConfig{
			FailedLoginThreshold: 5,
			FailedLoginWindow:    5 * time.Minute,
			ExportThreshold:      10,
			ExportWindow:         time.Hour,
			DistinctIPThreshold:  3,
			DistinctIPWindow:     24 * time.Hour,
			QuietHourStart:       22,
			QuietHourEnd:         6,
			SubjectCacheSize:     10000,
		},
		Audit: AuditConfig{
			SubjectCacheSize: 10000,
			MetricThreshold:  100,
			MaxAgeDays:       90,
			CleanupInterval:  time.Hour,
		},
		Compliance: ComplianceConfig{
			CheckInterval: time.Hour,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Environment variables override everything else.
	if err := k.Load(env.Provider("SECCORE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SECCORE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
