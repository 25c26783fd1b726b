package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/taskrouter/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFallbackRate       AlertType = "fallback_rate"
	AlertBypassRate         AlertType = "bypass_rate"
	AlertLowConfidence      AlertType = "low_confidence"
	AlertUnreliableBackends AlertType = "unreliable_backends"
)

// minSelectionsForRates suppresses rate alerts until enough decisions have
// been made for the rates to mean anything.
const minSelectionsForRates = 10

// webhookRate bounds alert delivery so a persistently breached threshold
// does not hammer the receiving endpoint every check cycle.
var webhookRate = rate.Limit(1.0 / 60.0)

const webhookBurst = 4

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(webhookRate, webhookBurst),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	enoughTraffic := snap.TotalSelections >= minSelectionsForRates

	if enoughTraffic && a.cfg.FallbackRateThreshold > 0 && snap.FallbackRate > a.cfg.FallbackRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFallbackRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Fallback rate %.1f%% exceeds threshold %.1f%% (%d of %d selections)",
				snap.FallbackRate*100, a.cfg.FallbackRateThreshold*100,
				snap.Fallbacks, snap.TotalSelections,
			),
			Details: map[string]any{
				"fallback_rate": snap.FallbackRate,
				"threshold":     a.cfg.FallbackRateThreshold,
				"fallbacks":     snap.Fallbacks,
				"selections":    snap.TotalSelections,
			},
			Timestamp: now,
		})
	}

	if enoughTraffic && a.cfg.BypassRateThreshold > 0 && snap.BypassRate > a.cfg.BypassRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBypassRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Filter bypass rate %.1f%% exceeds threshold %.1f%%; backends may be over-constrained",
				snap.BypassRate*100, a.cfg.BypassRateThreshold*100,
			),
			Details: map[string]any{
				"bypass_rate": snap.BypassRate,
				"threshold":   a.cfg.BypassRateThreshold,
				"bypasses":    snap.FilterBypasses,
				"selections":  snap.TotalSelections,
			},
			Timestamp: now,
		})
	}

	if enoughTraffic && a.cfg.MinConfidence > 0 && snap.AverageConfidence < a.cfg.MinConfidence {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidence,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average decision confidence %.2f fell below %.2f",
				snap.AverageConfidence, a.cfg.MinConfidence,
			),
			Details: map[string]any{
				"average_confidence": snap.AverageConfidence,
				"threshold":          a.cfg.MinConfidence,
			},
			Timestamp: now,
		})
	}

	if len(snap.UnreliableBackends) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertUnreliableBackends,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d backend(s) fell below the reliability floor",
				len(snap.UnreliableBackends),
			),
			Details: map[string]any{
				"backends": snap.UnreliableBackends,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if !a.limiter.Allow() {
			zap.L().Warn("monitoring: alert throttled",
				zap.String("type", string(alert.Type)),
			)
			continue
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
