// Package classify is the typed task layer over the classification
// service. Each method issues one bounded call and validates the response
// into a concrete result type at the boundary; malformed output is an
// error, never a value passed onward.
//
// Calls are rate-limited and carry a hard timeout. A timed-out or failed
// call leaves no side effect, so callers retry by resubmitting next cycle.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/logging"
)

// Client issues classification calls through a provider manager.
type Client struct {
	providers *brain.Manager
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewClient builds a Client from the configured pipeline tuning.
func NewClient(providers *brain.Manager, pipeline config.PipelineConfig) *Client {
	perMinute := pipeline.CallsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := pipeline.Fanout
	if burst <= 0 {
		burst = 1
	}
	timeout := time.Duration(pipeline.CallTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		providers: providers,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		timeout:   timeout,
	}
}

// call sends one prompt through the preferred available provider.
func (c *Client) call(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	provider := c.providers.GetAvailable()
	if provider == nil {
		return "", fmt.Errorf("no classification provider available")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := provider.Generate(callCtx, brain.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s call: %w", provider.Name(), err)
	}
	return resp.Content, nil
}

// decodeJSON strips markdown fences and prose glue around a JSON payload
// and unmarshals it. Models wrap JSON in ```json fences often enough that
// raw unmarshal alone loses good responses.
func decodeJSON(content string, v any) error {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	// Fall back to the outermost JSON value if prose surrounds it.
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		start := strings.IndexAny(trimmed, "{[")
		if start < 0 {
			return fmt.Errorf("no JSON found in response")
		}
		end := strings.LastIndexAny(trimmed, "}]")
		if end <= start {
			return fmt.Errorf("unterminated JSON in response")
		}
		trimmed = trimmed[start : end+1]
	}

	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		logging.Debug("classification response failed to parse", "error", err, "content_length", len(content))
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// parseYesNo reads a minimal yes/no answer, tolerating case and trailing
// punctuation but nothing looser: an ambiguous answer is an error, not a
// default accept.
func parseYesNo(content string) (bool, error) {
	answer := strings.ToLower(strings.TrimSpace(content))
	answer = strings.Trim(answer, ".!,\"' ")
	switch {
	case answer == "yes" || strings.HasPrefix(answer, "yes"):
		return true, nil
	case answer == "no" || strings.HasPrefix(answer, "no"):
		return false, nil
	}
	return false, fmt.Errorf("ambiguous yes/no answer: %q", truncate(content, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
