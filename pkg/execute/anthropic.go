package execute

import (
	"context"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/resilience"
)

// defaultMaxTokens bounds responses when the config leaves max_tokens unset.
const defaultMaxTokens = 1024

// AnthropicExecutor runs payloads against the Anthropic Messages API. The
// backend id doubles as the model identifier.
type AnthropicExecutor struct {
	client    sdk.Client
	maxTokens int64
	rates     RateSource
	retry     resilience.RetryConfig
}

// NewAnthropic creates an executor backed by the official SDK.
func NewAnthropic(cfg config.ExecuteConfig, rates RateSource) *AnthropicExecutor {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.ShouldRetry = retryableAPIError
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create message")

	return &AnthropicExecutor{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		maxTokens: maxTokens,
		rates:     rates,
		retry:     retryCfg,
	}
}

// Execute sends the payload as a single user message and measures the call.
func (e *AnthropicExecutor) Execute(ctx context.Context, backendID, payload string) (*Result, error) {
	start := time.Now()

	msg, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*sdk.Message, error) {
		return e.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(backendID),
			MaxTokens: e.maxTokens,
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(payload)),
			},
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "execute: anthropic backend %s", backendID)
	}

	res := &Result{
		BackendID:    backendID,
		Output:       collectText(msg),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		CostUSD:      tokenCost(e.rates, backendID, msg.Usage.InputTokens, msg.Usage.OutputTokens),
		LatencyMS:    time.Since(start).Milliseconds(),
	}

	zap.L().Info("execute: backend call complete",
		zap.String("backend_id", backendID),
		zap.Int64("input_tokens", res.InputTokens),
		zap.Int64("output_tokens", res.OutputTokens),
		zap.Float64("cost_usd", res.CostUSD),
		zap.Int64("latency_ms", res.LatencyMS),
	)
	return res, nil
}

// collectText concatenates the text blocks of a response.
func collectText(msg *sdk.Message) string {
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// retryableAPIError retries rate limits and server-side failures.
func retryableAPIError(err error) bool {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return resilience.IsTransientHTTPStatus(apierr.StatusCode)
	}
	return resilience.IsTransient(err)
}
