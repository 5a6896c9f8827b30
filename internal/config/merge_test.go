package config

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMerge_TopLevelLastSetWins(t *testing.T) {
	base := &Config{Port: 8080, LogLevel: "info", MetricsPath: "/metrics"}
	base.Merge(&Config{Port: 9090, RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 10}})

	assert.Equal(t, 9090, base.Port)
	assert.Equal(t, "info", base.LogLevel)
	assert.Equal(t, "/metrics", base.MetricsPath)
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 5, Burst: 10}, base.RateLimit)
}

func TestMergeWebhooks(t *testing.T) {
	base := []Webhook{
		{Path: "/ci", Events: []string{"push"}, Command: "echo one"},
		{Path: "/deploy", Command: "make"},
	}
	incoming := []Webhook{
		{Path: "/ci", Events: []string{"tag", "push"}, Command: "echo two", Secret: "s"},
		{Path: "/new", Command: "true"},
		{Command: "unrouted"},
		{Command: "unrouted again"},
	}

	got := MergeWebhooks(base, incoming)

	assert.Equal(t, []Webhook{
		{Path: "/ci", Events: []string{"push", "tag"}, Command: "echo two", Secret: "s"},
		{Path: "/deploy", Command: "make"},
		{Path: "/new", Command: "true"},
		{Command: "unrouted"},
		{Command: "unrouted again"},
	}, got)

	// base is not modified
	assert.Equal(t, "echo one", base[0].Command)
}

var (
	genPath  = rapid.SampledFrom([]string{"/a", "/b", "/c", "/d"})
	genEvent = rapid.SampledFrom([]string{"push", "tag", "issues", "*"})
)

func genHooks() *rapid.Generator[[]Webhook] {
	hook := rapid.Custom(func(t *rapid.T) Webhook {
		return Webhook{
			Path:    genPath.Draw(t, "path"),
			Events:  rapid.SliceOfN(genEvent, 0, 3).Draw(t, "events"),
			Command: "echo",
		}
	})
	return rapid.SliceOfN(hook, 0, 6)
}

type routeSummary map[string][]string

func summarize(hooks []Webhook) routeSummary {
	out := routeSummary{}
	for _, h := range hooks {
		events := slices.Clone(h.Events)
		slices.Sort(events)
		out[h.Path] = events
	}
	return out
}

// The set of routed paths and each path's event set do not depend on the
// order fragments are merged in.
func TestProperty_MergeCommutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genHooks().Draw(t, "a")
		b := genHooks().Draw(t, "b")

		ab := summarize(MergeWebhooks(MergeWebhooks(nil, a), b))
		ba := summarize(MergeWebhooks(MergeWebhooks(nil, b), a))
		if !assert.ObjectsAreEqual(ab, ba) {
			t.Fatalf("merge order changed the result:\n a+b = %v\n b+a = %v", ab, ba)
		}
	})
}

// Merging a fragment into a table that already contains it changes nothing.
func TestProperty_MergeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genHooks().Draw(t, "a")

		once := MergeWebhooks(nil, a)
		twice := MergeWebhooks(once, a)
		if !assert.ObjectsAreEqual(once, twice) {
			t.Fatalf("merging twice differs:\n once  = %v\n twice = %v", once, twice)
		}
	})
}

// Paths stay unique and every event from the inputs survives.
func TestProperty_MergeUniquePaths(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genHooks().Draw(t, "a")
		b := genHooks().Draw(t, "b")
		merged := MergeWebhooks(MergeWebhooks(nil, a), b)

		seen := map[string]bool{}
		for _, h := range merged {
			if seen[h.Path] {
				t.Fatalf("path %s appears twice in %v", h.Path, merged)
			}
			seen[h.Path] = true
			if len(h.Events) != len(unionEvents(nil, h.Events)) {
				t.Fatalf("duplicate events for %s: %v", h.Path, h.Events)
			}
		}

		for _, in := range slices.Concat(a, b) {
			idx := slices.IndexFunc(merged, func(w Webhook) bool { return w.Path == in.Path })
			if idx < 0 {
				t.Fatalf("path %s lost", in.Path)
			}
			for _, e := range in.Events {
				if !slices.Contains(merged[idx].Events, e) {
					t.Fatalf("event %s lost from %s", e, in.Path)
				}
			}
		}
	})
}
