package config

import "slices"

// Merge folds other into c. Webhooks are keyed by path: a path seen before
// is replaced in place by the incoming definition with the two event lists
// unioned, a new path is appended. Top-level settings take other's value
// when it is set.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Listen != "" {
		c.Listen = other.Listen
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxBodySize != 0 {
		c.MaxBodySize = other.MaxBodySize
	}
	if other.CommandTimeout != 0 {
		c.CommandTimeout = other.CommandTimeout
	}
	if other.MetricsPath != "" {
		c.MetricsPath = other.MetricsPath
	}
	if other.RateLimit != (RateLimitConfig{}) {
		c.RateLimit = other.RateLimit
	}

	c.Webhooks = MergeWebhooks(c.Webhooks, other.Webhooks)
}

// MergeWebhooks returns base with incoming merged in by path. Definitions
// without a path are unrouted and always appended.
func MergeWebhooks(base, incoming []Webhook) []Webhook {
	out := slices.Clone(base)
	for _, hook := range incoming {
		idx := -1
		if hook.Path != "" {
			idx = slices.IndexFunc(out, func(w Webhook) bool { return w.Path == hook.Path })
		}
		if idx < 0 {
			hook.Events = unionEvents(nil, hook.Events)
			out = append(out, hook)
			continue
		}
		hook.Events = unionEvents(out[idx].Events, hook.Events)
		out[idx] = hook
	}
	return out
}

// unionEvents keeps first-seen order and drops duplicates.
func unionEvents(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	for _, e := range slices.Concat(a, b) {
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}
