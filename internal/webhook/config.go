package webhook

import (
	"net"
	"strconv"

	"github.com/mattjoyce/grhooks/internal/config"
)

// Config holds webhook server settings. Webhook definitions are not part of
// it: they are looked up per request through Routes.
type Config struct {
	Listen            string
	MaxBodySize       int64
	MetricsPath       string
	RequestsPerSecond float64
	Burst             int
}

// ConfigFrom extracts the server settings from a loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	maxBodySize := int64(cfg.MaxBodySize)
	if maxBodySize <= 0 {
		maxBodySize = config.DefaultMaxBodySize
	}

	burst := cfg.RateLimit.Burst
	if burst <= 0 && cfg.RateLimit.RequestsPerSecond > 0 {
		burst = max(1, int(cfg.RateLimit.RequestsPerSecond))
	}

	return Config{
		Listen:            net.JoinHostPort(cfg.Listen, strconv.Itoa(cfg.Port)),
		MaxBodySize:       maxBodySize,
		MetricsPath:       cfg.MetricsPath,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             burst,
	}
}
