package selcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/model"
)

func sampleTask() model.TaskRequest {
	return model.TaskRequest{
		RequiredCapabilities: []model.Capability{model.CapWriting, model.CapReasoning},
		Domain:               "finance",
		TaskType:             "analysis",
		EstimatedTokens:      1200,
		Constraints: model.Constraints{
			MaxCostPerUnit: 0.01, MaxLatencyMS: 5000, MinPrivacyLevel: 5,
			QualityThreshold: 6, Urgency: 5,
		},
	}
}

func TestFingerprintStability(t *testing.T) {
	t.Parallel()

	a := sampleTask()
	b := sampleTask()
	// Capability order must not matter.
	b.RequiredCapabilities = []model.Capability{model.CapReasoning, model.CapWriting}

	assert.Equal(t, Fingerprint(a, model.StrategyAuto, nil), Fingerprint(b, model.StrategyAuto, nil))
}

func TestFingerprintSensitivity(t *testing.T) {
	t.Parallel()

	base := Fingerprint(sampleTask(), model.StrategyAuto, nil)

	changed := sampleTask()
	changed.Constraints.MaxCostPerUnit = 0.02
	assert.NotEqual(t, base, Fingerprint(changed, model.StrategyAuto, nil))

	assert.NotEqual(t, base, Fingerprint(sampleTask(), model.StrategyCostFirst, nil))
	assert.NotEqual(t, base, Fingerprint(sampleTask(), model.StrategyAuto, map[string]string{"team": "research"}))
}

func TestFingerprintPreferenceOrder(t *testing.T) {
	t.Parallel()

	p1 := map[string]string{"a": "1", "b": "2"}
	p2 := map[string]string{"b": "2", "a": "1"}
	assert.Equal(t, Fingerprint(sampleTask(), model.StrategyAuto, p1), Fingerprint(sampleTask(), model.StrategyAuto, p2))
}

func TestGetSetRoundTrip(t *testing.T) {
	t.Parallel()

	c := New(5*time.Minute, 100)
	fp := Fingerprint(sampleTask(), model.StrategyAuto, nil)

	_, ok := c.Get(fp)
	assert.False(t, ok)

	c.Set(fp, model.SelectionResult{SelectedBackend: "local-llama"})
	got, ok := c.Get(fp)
	require.True(t, ok)
	assert.Equal(t, "local-llama", got.SelectedBackend)

	hits, misses, size := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, size)
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	c := New(300*time.Second, 100)
	now := time.Unix(1_700_000_000, 0)
	c.SetClock(func() time.Time { return now })

	c.Set("fp", model.SelectionResult{SelectedBackend: "b"})

	now = now.Add(299 * time.Second)
	_, ok := c.Get("fp")
	assert.True(t, ok, "still fresh just under the TTL")

	now = now.Add(2 * time.Second)
	_, ok = c.Get("fp")
	assert.False(t, ok, "expired at the TTL boundary")

	// Expired entry was dropped, not just hidden.
	_, _, size := c.Stats()
	assert.Zero(t, size)
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	t.Parallel()

	c := New(time.Hour, 2)
	now := time.Unix(1_700_000_000, 0)
	c.SetClock(func() time.Time { return now })

	c.Set("first", model.SelectionResult{SelectedBackend: "a"})
	now = now.Add(time.Second)
	c.Set("second", model.SelectionResult{SelectedBackend: "b"})
	now = now.Add(time.Second)
	c.Set("third", model.SelectionResult{SelectedBackend: "c"})

	_, ok := c.Get("first")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	c := New(time.Hour, 10)
	c.Set("fp", model.SelectionResult{SelectedBackend: "b"})
	c.Invalidate()
	_, ok := c.Get("fp")
	assert.False(t, ok)
}

func TestHitRate(t *testing.T) {
	t.Parallel()

	c := New(time.Hour, 10)
	assert.Zero(t, c.HitRate())

	c.Set("fp", model.SelectionResult{})
	c.Get("fp")
	c.Get("missing")
	assert.InDelta(t, 0.5, c.HitRate(), 1e-9)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(time.Hour, 1000)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				fp := Fingerprint(sampleTask(), model.StrategyAuto, map[string]string{"n": string(rune('a' + n))})
				c.Set(fp, model.SelectionResult{SelectedBackend: "b"})
				c.Get(fp)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
