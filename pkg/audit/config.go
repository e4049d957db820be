package audit

import (
	"os"
	"strconv"
)

// Config controls the audit log.
type Config struct {
	RetentionDays int  // 0 keeps events forever
	LogDenied     bool // record requests rejected with 403
	Enabled       bool
}

// DefaultConfig keeps 90 days and records denied requests.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		LogDenied:     true,
		Enabled:       true,
	}
}

// ConfigFromEnv applies PROVENANCE_AUDIT_RETENTION_DAYS,
// PROVENANCE_AUDIT_LOG_DENIED and PROVENANCE_AUDIT_ENABLED on top of base.
// Unparseable values are ignored.
func ConfigFromEnv(base *Config) *Config {
	cfg := DefaultConfig()
	if base != nil {
		*cfg = *base
	}

	if v := os.Getenv("PROVENANCE_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("PROVENANCE_AUDIT_LOG_DENIED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogDenied = b
		}
	}
	if v := os.Getenv("PROVENANCE_AUDIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	return cfg
}
