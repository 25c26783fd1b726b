package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FallbackRateThreshold: 0.10,
		BypassRateThreshold:   0.20,
		MinConfidence:         0.60,
	})

	snap := &MetricsSnapshot{
		TotalSelections:   100,
		Fallbacks:         5,
		FallbackRate:      0.05,
		FilterBypasses:    10,
		BypassRate:        0.10,
		AverageConfidence: 0.85,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FallbackRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		TotalSelections: 20,
		Fallbacks:       8,
		FallbackRate:    0.4, // 8/20 = 40%
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFallbackRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_SuppressedBelowMinTraffic(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		TotalSelections: 4,
		Fallbacks:       4,
		FallbackRate:    1.0,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_BypassAndConfidence(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		BypassRateThreshold: 0.20,
		MinConfidence:       0.60,
	})

	snap := &MetricsSnapshot{
		TotalSelections:   50,
		FilterBypasses:    15,
		BypassRate:        0.30,
		AverageConfidence: 0.52,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertBypassRate, alerts[0].Type)
	assert.Equal(t, AlertLowConfidence, alerts[1].Type)
}

func TestAlerter_Evaluate_UnreliableBackends(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		TotalSelections:    2,
		UnreliableBackends: []string{"hosted-sonnet"},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUnreliableBackends, alerts[0].Type)
	assert.Equal(t, []string{"hosted-sonnet"}, alerts[0].Details["backends"])
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFallbackRate, Severity: "high", Message: "test"},
		{Type: AlertBypassRate, Severity: "medium", Message: "test"},
	})

	assert.Equal(t, 2, sent)
	assert.Equal(t, int64(2), received.Load())
}

func TestAlerter_SendAlerts_Throttled(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	alerts := make([]Alert, webhookBurst+3)
	for i := range alerts {
		alerts[i] = Alert{Type: AlertFallbackRate, Severity: "high", Message: "test"}
	}

	// The limiter refills one token a minute, so only the initial burst
	// makes it to the webhook.
	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, webhookBurst, sent)
	assert.Equal(t, int64(webhookBurst), received.Load())

	assert.Equal(t, 0, a.SendAlerts(context.Background(), alerts[:1]))
	assert.Equal(t, int64(webhookBurst), received.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFallbackRate}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFallbackRate}})
	assert.Equal(t, 0, sent)
}
