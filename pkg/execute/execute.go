// Package execute runs a routed task on its selected backend. The router
// treats execution as opaque: adapters return the measured latency, token
// usage, and cost that feed the outcome loop.
package execute

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/taskrouter/internal/config"
)

// Result is the measured outcome of one backend execution.
type Result struct {
	BackendID    string  `json:"backend_id"`
	Output       string  `json:"output"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMS    int64   `json:"latency_ms"`
}

// RateSource resolves a backend's per-1k-token rates, typically backed by
// the catalog. ok is false for unknown backends.
type RateSource func(backendID string) (inPer1k, outPer1k float64, ok bool)

// Executor runs a payload on a named backend.
type Executor interface {
	Execute(ctx context.Context, backendID, payload string) (*Result, error)
}

// New builds the executor named by the config adapter. An empty adapter
// selects the mock.
func New(cfg config.ExecuteConfig, rates RateSource) (Executor, error) {
	switch cfg.Adapter {
	case "", "mock":
		return NewMock(rates), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, eris.New("execute: anthropic adapter requires an api key")
		}
		return NewAnthropic(cfg, rates), nil
	default:
		return nil, eris.Errorf("execute: unknown adapter %q", cfg.Adapter)
	}
}

// tokenCost converts token usage to USD using per-1k rates.
func tokenCost(rates RateSource, backendID string, in, out int64) float64 {
	if rates == nil {
		return 0
	}
	inRate, outRate, ok := rates(backendID)
	if !ok {
		return 0
	}
	return float64(in)/1000*inRate + float64(out)/1000*outRate
}

// MockExecutor fabricates deterministic results without calling any backend.
// It backs dry runs and tests.
type MockExecutor struct {
	rates RateSource
}

// NewMock creates a mock executor.
func NewMock(rates RateSource) *MockExecutor {
	return &MockExecutor{rates: rates}
}

// Execute returns a canned response sized from the payload.
func (m *MockExecutor) Execute(ctx context.Context, backendID, payload string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "execute: mock")
	}

	in := int64(len(payload)/4 + 1)
	out := in/2 + 1
	return &Result{
		BackendID:    backendID,
		Output:       fmt.Sprintf("[mock %s] %d-token response", backendID, out),
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      tokenCost(m.rates, backendID, in, out),
		// Deterministic stand-in for a real call's duration.
		LatencyMS: in/10 + 1,
	}, nil
}
