package routing

import (
	"slices"
	"sync"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/metrics"
)

// Table maps request paths to webhook definitions.
type Table struct {
	mu          sync.RWMutex
	hooks       []config.Webhook
	index       map[string]int
	fingerprint string
}

// NewTable builds a table from merged definitions.
func NewTable(hooks []config.Webhook) *Table {
	t := &Table{}
	t.Replace(hooks)
	return t
}

// Load builds a table from a configuration file or directory.
func Load(source string) (*Table, *config.Config, error) {
	cfg, err := config.Load(source)
	if err != nil {
		return nil, nil, err
	}
	return NewTable(cfg.Webhooks), cfg, nil
}

// Find returns a copy of the definition routed at path.
func (t *Table) Find(path string) (config.Webhook, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[path]
	if !ok {
		return config.Webhook{}, false
	}
	return cloneWebhook(t.hooks[i]), true
}

// Replace swaps in a new set of definitions. It reports false, leaving the
// table untouched, when the definitions are identical to the active ones.
func (t *Table) Replace(hooks []config.Webhook) bool {
	fingerprint := config.Fingerprint(hooks)

	next := make([]config.Webhook, len(hooks))
	index := make(map[string]int, len(hooks))
	for i, hook := range hooks {
		next[i] = cloneWebhook(hook)
		if hook.Path == "" {
			continue
		}
		if _, dup := index[hook.Path]; !dup {
			index[hook.Path] = i
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index != nil && fingerprint == t.fingerprint {
		return false
	}
	t.hooks = next
	t.index = index
	t.fingerprint = fingerprint
	metrics.Routes.Set(float64(len(index)))
	return true
}

// Snapshot returns a copy of every definition, in merge order.
func (t *Table) Snapshot() []config.Webhook {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]config.Webhook, len(t.hooks))
	for i, hook := range t.hooks {
		out[i] = cloneWebhook(hook)
	}
	return out
}

// Len returns the number of routed paths.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Fingerprint identifies the active generation of the table.
func (t *Table) Fingerprint() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fingerprint
}

func cloneWebhook(w config.Webhook) config.Webhook {
	w.Events = slices.Clone(w.Events)
	w.Shell = slices.Clone(w.Shell)
	return w
}
