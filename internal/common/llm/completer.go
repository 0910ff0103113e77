// Package llm talks to the structured completion service: schema-constrained
// completions and intent classification.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pantry-assistant/internal/common/config"
	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/metrics"
	"pantry-assistant/internal/common/validation"
)

var (
	ErrModelTimeout     = errors.New("MODEL_TIMEOUT")
	ErrCompletionFailed = errors.New("COMPLETION_FAILED")
)

// Completer returns a JSON object produced by the model for text, shaped by
// systemPrompt and constrained by schema. Callers validate the result.
type Completer interface {
	Complete(ctx context.Context, text, systemPrompt string, schema validation.Schema) (map[string]interface{}, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFrom(cfg config.ModelConfig) *Config {
	return &Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.TimeoutDuration(),
		MaxRetries: cfg.MaxRetries,
	}
}

type operationKey struct{}

// WithOperation labels model calls made with ctx for metrics and logs.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationOf(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "complete"
}

// HTTPCompleter calls POST {base}/api/ai/complete.
type HTTPCompleter struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewHTTPCompleter(cfg *Config, log logger.Logger) *HTTPCompleter {
	return &HTTPCompleter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.With(map[string]interface{}{"component": "llm"}),
	}
}

type completionRequest struct {
	Input          string            `json:"input"`
	System         string            `json:"system"`
	ResponseSchema validation.Schema `json:"response_schema"`
}

type completionResponse struct {
	Output map[string]interface{} `json:"output"`
}

// Complete enforces the configured timeout on top of ctx. A call that runs
// out of time returns a StandardError with code LLM_TIMEOUT wrapping
// ErrModelTimeout.
func (c *HTTPCompleter) Complete(ctx context.Context, text, systemPrompt string, schema validation.Schema) (map[string]interface{}, error) {
	op := operationOf(ctx)
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.execute(ctx, text, systemPrompt, schema)
	status := "ok"
	switch {
	case errors.Is(err, ErrModelTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	metrics.ModelCallDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("model call failed", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
			"duration":  time.Since(start).Milliseconds(),
		})
		if errors.Is(err, ErrModelTimeout) {
			return nil, apperrors.NewLLMTimeoutError(err)
		}
		return nil, apperrors.NewLLMCompletionFailedError(err)
	}
	return out, nil
}

// contextFailure maps a finished context to an error: only a deadline counts
// as a model timeout.
func contextFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrModelTimeout
	}
	return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
}

func (c *HTTPCompleter) execute(ctx context.Context, text, systemPrompt string, schema validation.Schema) (map[string]interface{}, error) {
	body, err := json.Marshal(completionRequest{Input: text, System: systemPrompt, ResponseSchema: schema})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrCompletionFailed, err)
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, contextFailure(ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/ai/complete", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(lastErr, context.DeadlineExceeded) || isTimeout(lastErr) {
			if resp != nil {
				resp.Body.Close()
			}
			if ctxErr != nil {
				return nil, contextFailure(ctxErr)
			}
			return nil, ErrModelTimeout
		}
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			status := resp.StatusCode
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", status)
			resp = nil
			if !retryableStatus(status) {
				break
			}
		}
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = errors.New("no successful response after retries")
		}
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, lastErr)
	}
	defer resp.Body.Close()

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrCompletionFailed, err)
	}
	if decoded.Output == nil {
		return nil, fmt.Errorf("%w: empty output", ErrCompletionFailed)
	}
	return decoded.Output, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// retryableStatus reports whether a non-OK status is worth another attempt.
// Client errors other than 429 are not.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
