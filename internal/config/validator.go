package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogFormats = map[string]bool{"json": true, "text": true}

var validLogLevels = map[string]bool{"debug": true, "trace": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks settings that would stop the server from starting.
// Problems with individual webhooks are reported as warnings by Load.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format must be one of: json, text (got %q)", c.LogFormat))
	}
	if c.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("max_body_size must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must not be negative"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must not be negative"))
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics_path must start with / (got %q)", c.MetricsPath))
	}

	return errors.Join(errs...)
}

// validateFragment checks the settings a single fragment sets. Unset fields
// are left to later fragments and defaults.
func (c *Config) validateFragment() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port))
	}
	if c.LogFormat != "" && !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format must be one of: json, text (got %q)", c.LogFormat))
	}
	if c.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("max_body_size must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must not be negative"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must not be negative"))
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics_path must start with / (got %q)", c.MetricsPath))
	}

	return errors.Join(errs...)
}

// webhookWarnings reports definitions that load but can never succeed.
func (c *Config) webhookWarnings() []string {
	var warnings []string
	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warnings = append(warnings, fmt.Sprintf("unknown log_level %q, using info", c.LogLevel))
	}
	for i, hook := range c.Webhooks {
		name := hook.Path
		if name == "" {
			name = fmt.Sprintf("webhooks[%d]", i)
		}
		switch {
		case hook.Path == "":
			warnings = append(warnings, fmt.Sprintf("%s: no path, webhook is unrouted", name))
		case hook.Path == c.MetricsPath || hook.Path == HealthPath:
			warnings = append(warnings, fmt.Sprintf("%s: shadowed by a built-in endpoint", name))
		}
		switch {
		case hook.Command != "" && hook.Script != "":
			warnings = append(warnings, fmt.Sprintf("%s: both command and script set, script wins", name))
		case hook.Command == "" && hook.Script == "":
			warnings = append(warnings, fmt.Sprintf("%s: neither command nor script set, deliveries will fail", name))
		}
		if hook.Script != "" && !fileExists(hook.Script) {
			warnings = append(warnings, fmt.Sprintf("%s: script %s not found", name, hook.Script))
		}
	}
	return warnings
}
