package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configuration errors. They are reported before a collection cycle starts.
var (
	ErrInvalidScanRange   = errors.New("invalid scan range")
	ErrInvalidPrefix      = errors.New("invalid scan prefix")
	ErrInvalidProtocol    = errors.New("invalid scan protocol")
	ErrInvalidConcurrency = errors.New("invalid scan concurrency")
	ErrInvalidThresholds  = errors.New("invalid alert thresholds")
)

// Config is the root configuration document.
type Config struct {
	Scan      ScanConfig      `toml:"scan" json:"scan"`
	Devices   []StaticDevice  `toml:"devices" json:"devices"`
	SNMP      SNMPConfig      `toml:"snmp" json:"snmp"`
	Alerts    AlertsConfig    `toml:"alerts" json:"alerts"`
	Analytics AnalyticsConfig `toml:"analytics" json:"analytics"`
	Database  DatabaseConfig  `toml:"database" json:"database"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Web       WebConfig       `toml:"web" json:"web"`
}

// ScanConfig describes which addresses a collection cycle probes and how.
type ScanConfig struct {
	Enabled         bool          `toml:"enabled" json:"enabled"`
	Prefixes        []PrefixEntry `toml:"prefixes" json:"prefixes"`
	Start           int           `toml:"start" json:"start"`
	End             int           `toml:"end" json:"end"`
	Protocol        string        `toml:"protocol" json:"protocol"`
	Concurrency     int           `toml:"concurrency" json:"concurrency"`
	TimeoutMs       int           `toml:"timeout_ms" json:"timeout_ms"`
	Retries         int           `toml:"retries" json:"retries"`
	IntervalSeconds int           `toml:"interval_seconds" json:"interval_seconds"`
	MDNS            bool          `toml:"mdns" json:"mdns"`
}

// PrefixEntry is an address prefix such as "192.168.1." with an optional
// location label. It decodes from a bare string or a table.
type PrefixEntry struct {
	Prefix  string `toml:"prefix" json:"prefix"`
	Label   string `toml:"label,omitempty" json:"label,omitempty"`
	Enabled *bool  `toml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the prefix takes part in scans. Entries without
// an explicit flag are enabled.
func (p PrefixEntry) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// UnmarshalTOML implements toml.Unmarshaler.
func (p *PrefixEntry) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*p = PrefixEntry{Prefix: val}
		return nil
	case map[string]interface{}:
		return p.fromMap(val)
	default:
		return fmt.Errorf("%w: unsupported value %T", ErrInvalidPrefix, v)
	}
}

// UnmarshalJSON accepts "10.0.0." as well as {"prefix": "10.0.0.", "label": "HQ"}.
func (p *PrefixEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PrefixEntry{Prefix: s}
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	return p.fromMap(m)
}

func (p *PrefixEntry) fromMap(m map[string]interface{}) error {
	out := PrefixEntry{}
	if s, ok := m["prefix"].(string); ok {
		out.Prefix = s
	}
	if s, ok := m["label"].(string); ok {
		out.Label = s
	}
	if b, ok := m["enabled"].(bool); ok {
		out.Enabled = &b
	}
	*p = out
	return nil
}

// StaticDevice is a device declared in configuration rather than discovered.
type StaticDevice struct {
	Name     string `toml:"name" json:"name"`
	URL      string `toml:"url" json:"url"`
	IP       string `toml:"ip,omitempty" json:"ip,omitempty"`
	Location string `toml:"location,omitempty" json:"location,omitempty"`
}

// SNMPConfig controls optional SNMP enrichment of probed devices.
type SNMPConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled"`
	Community string `toml:"community" json:"community"`
	TimeoutMs int    `toml:"timeout_ms" json:"timeout_ms"`
	Retries   int    `toml:"retries" json:"retries"`
}

// Band is a severity band: levels strictly below Below belong to it.
type Band struct {
	Name  string  `toml:"name" json:"name"`
	Below float64 `toml:"below" json:"below"`
}

// AlertsConfig holds the severity bands used for low-supply alerts.
type AlertsConfig struct {
	Bands          []Band `toml:"bands" json:"bands"`
	PrimeSnapshots int    `toml:"prime_snapshots" json:"prime_snapshots"`
}

// AnalyticsConfig controls the reliability and trend window.
type AnalyticsConfig struct {
	Window         int     `toml:"window" json:"window"`
	Method         string  `toml:"method" json:"method"`
	ForecastFactor float64 `toml:"forecast_factor" json:"forecast_factor"`
	IncidentBelow  float64 `toml:"incident_below" json:"incident_below"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver       string `toml:"driver" json:"driver"`
	Path         string `toml:"path" json:"path"`
	DSN          string `toml:"dsn" json:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" json:"max_open_conns"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	Dir   string `toml:"dir" json:"dir"`
	// Rotation applies to file output only. Zero disables the limit.
	MaxSizeMB  int `toml:"max_size_mb" json:"max_size_mb"`
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days"`
	MaxFiles   int `toml:"max_files" json:"max_files"`
}

// WebConfig holds the query server settings.
type WebConfig struct {
	HTTPPort int `toml:"http_port" json:"http_port"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Enabled:         true,
			Prefixes:        []PrefixEntry{},
			Start:           1,
			End:             254,
			Protocol:        "https",
			Concurrency:     15,
			TimeoutMs:       4000,
			Retries:         1,
			IntervalSeconds: 300,
		},
		SNMP: SNMPConfig{
			Community: "public",
			TimeoutMs: 2000,
			Retries:   1,
		},
		Alerts: AlertsConfig{
			Bands: []Band{
				{Name: "low", Below: 30},
				{Name: "critical", Below: 10},
			},
			PrimeSnapshots: 20,
		},
		Analytics: AnalyticsConfig{
			Window:         10,
			Method:         "regression",
			ForecastFactor: 1.0,
			IncidentBelow:  5,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxAgeDays: 7,
			MaxFiles:   10,
		},
		Web: WebConfig{
			HTTPPort: 8080,
		},
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	for i, b := range c.Alerts.Bands {
		if b.Name == "" || b.Below <= 0 || b.Below > 100 {
			return fmt.Errorf("%w: band %d (%q below %v)", ErrInvalidThresholds, i, b.Name, b.Below)
		}
	}
	return nil
}

// Validate checks the scan range, prefixes, protocol and concurrency.
// Host numbers address the last IPv4 octet so they are bounded to 0..255.
func (s ScanConfig) Validate() error {
	if s.Start < 0 || s.End > 255 || s.Start > s.End {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidScanRange, s.Start, s.End)
	}
	for i, p := range s.Prefixes {
		if strings.TrimSpace(p.Prefix) == "" {
			return fmt.Errorf("%w: entry %d is empty", ErrInvalidPrefix, i)
		}
	}
	switch s.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, s.Protocol)
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, s.Concurrency)
	}
	if s.Retries < 0 {
		return fmt.Errorf("%w: retries %d", ErrInvalidScanRange, s.Retries)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
func ApplyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SCAN_PROTOCOL"); val != "" {
		cfg.Scan.Protocol = val
	}
	if n, ok := envInt("SCAN_CONCURRENCY"); ok {
		cfg.Scan.Concurrency = n
	}
	if n, ok := envInt("SCAN_TIMEOUT_MS"); ok {
		cfg.Scan.TimeoutMs = n
	}
	if n, ok := envInt("SCAN_RETRIES"); ok {
		cfg.Scan.Retries = n
	}
	if val := os.Getenv("SNMP_COMMUNITY"); val != "" {
		cfg.SNMP.Community = val
	}
	ApplyDatabaseEnvOverrides(&cfg.Database)
	ApplyLoggingEnvOverrides(&cfg.Logging)
	if n, ok := envInt("WEB_HTTP_PORT"); ok {
		cfg.Web.HTTPPort = n
	}
}

// ApplyDatabaseEnvOverrides applies DB_* overrides.
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig) {
	if val := os.Getenv("DB_DRIVER"); val != "" {
		cfg.Driver = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.Path = val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DSN = val
	}
}

func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
}

func envInt(key string) (int, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}
