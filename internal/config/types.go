package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mattjoyce/grhooks/internal/origin"
)

const (
	// WildcardEvent in a webhook's events list allows every event type.
	WildcardEvent = "*"

	// HealthPath is served by the gateway itself and never routed.
	HealthPath = "/healthz"
)

// Config represents the complete grhooks configuration, possibly merged from
// several fragments.
type Config struct {
	Listen         string          `yaml:"listen" toml:"listen" json:"listen" default:"0.0.0.0"`
	Port           int             `yaml:"port" toml:"port" json:"port" default:"8080"`
	LogLevel       string          `yaml:"log_level" toml:"log_level" json:"log_level" default:"info"`
	LogFormat      string          `yaml:"log_format" toml:"log_format" json:"log_format" default:"json"`
	MaxBodySize    ByteSize        `yaml:"max_body_size" toml:"max_body_size" json:"max_body_size" default:"1048576"`
	CommandTimeout Duration        `yaml:"command_timeout" toml:"command_timeout" json:"command_timeout"`
	MetricsPath    string          `yaml:"metrics_path" toml:"metrics_path" json:"metrics_path"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	Webhooks       []Webhook       `yaml:"webhooks" toml:"webhooks" json:"webhooks"`

	// Source is the file or directory the configuration was loaded from.
	Source string `yaml:"-" toml:"-" json:"-"`
	// Fragments lists the files that were parsed, in merge order.
	Fragments []string `yaml:"-" toml:"-" json:"-"`
	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-" toml:"-" json:"-"`
}

// RateLimitConfig bounds the global request rate. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst" json:"burst"`
}

// Webhook is a single webhook definition: the route, how to authenticate it
// and what to run.
type Webhook struct {
	// Path is the routing key, e.g. "/ci". Empty means unrouted.
	Path string `yaml:"path" toml:"path" json:"path"`

	// Origin selects the header and signature dialect (default github).
	Origin origin.Origin `yaml:"origin" toml:"origin" json:"origin"`

	// Secret is the HMAC secret; it may reference ${{event.type}}.
	Secret string `yaml:"secret" toml:"secret" json:"secret,omitempty"`

	// Events allowed to trigger the webhook; empty or "*" allows all.
	Events []string `yaml:"events" toml:"events" json:"events,omitempty"`

	// Command is an inline shell command template.
	Command string `yaml:"command" toml:"command" json:"command,omitempty"`

	// Script is the path to a script template on disk.
	Script string `yaml:"script" toml:"script" json:"script,omitempty"`

	// Shell is the interpreter and its arguments (default: sh -c).
	Shell []string `yaml:"shell" toml:"shell" json:"shell,omitempty"`

	// Timeout bounds the command; zero falls back to command_timeout.
	Timeout Duration `yaml:"timeout" toml:"timeout" json:"timeout,omitempty"`
}

// AllowsEvent reports whether eventType passes the webhook's allow-list.
func (w Webhook) AllowsEvent(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	return slices.Contains(w.Events, WildcardEvent) || slices.Contains(w.Events, eventType)
}

// HasSecret reports whether signature verification applies.
func (w Webhook) HasSecret() bool {
	return w.Secret != ""
}

// Target describes what the webhook runs, for logs and listings.
func (w Webhook) Target() string {
	switch {
	case w.Script != "":
		return "script: " + w.Script
	case w.Command != "":
		return "command: " + w.Command
	default:
		return "(none)"
	}
}

// Duration is a time.Duration that decodes from strings like "30s" in every
// supported config format.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("duration must not be negative: %q", s)
	}
	*d = Duration(v)
	return nil
}

// ByteSize is a size in bytes that decodes from "1MB", "512KB" or "1048576".
type ByteSize int64

// MarshalText implements encoding.TextMarshaler.
func (s ByteSize) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(s))), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ByteSize) UnmarshalText(text []byte) error {
	v, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*s = ByteSize(v)
	return nil
}

// UnmarshalJSON accepts both numbers and strings.
func (s *ByteSize) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return s.UnmarshalText([]byte(n.String()))
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("max_body_size must be a number or string: %w", err)
	}
	return s.UnmarshalText([]byte(str))
}
