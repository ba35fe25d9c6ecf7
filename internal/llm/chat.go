package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/metrics"
)

const maxErrorBodySize = 64 * 1024

// Generate sends message as a single user turn and returns message.content
// from the reply. Every failure is an *UpstreamError.
func (c *OllamaClient) Generate(parentCtx context.Context, message string) (string, error) {
	start := time.Now()

	body, err := json.Marshal(newProviderChatRequest(message))
	if err != nil {
		return "", &UpstreamError{Message: "marshal request", Err: err}
	}

	ctx := parentCtx
	if c.cfg.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
		defer cancel()
	}

	c.logger.Info("sending request to inference server",
		zap.String("url", c.cfg.ChatURL),
		zap.String("model", DefaultModel),
		zap.Int("message_bytes", len(message)),
	)

	text, err := c.chat(ctx, body)
	duration := time.Since(start)
	metrics.UpstreamDurationSeconds.Observe(duration.Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Error("inference request failed",
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return "", err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues("success").Inc()
	c.logger.Info("inference request completed",
		zap.Int("response_bytes", len(text)),
		zap.Duration("duration", duration),
	)
	return text, nil
}

func (c *OllamaClient) chat(ctx context.Context, body []byte) (string, error) {
	doOnce := func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build HTTP request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		return c.httpClient.Do(httpReq)
	}

	resp, err := c.doWithRetry(ctx, doOnce)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

		var perr providerErrorResponse
		if err := json.Unmarshal(raw, &perr); err == nil && perr.Error != "" {
			return "", &UpstreamError{StatusCode: resp.StatusCode, Message: perr.Error}
		}
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(raw)), 200),
		}
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return "", malformed("decode body: %v", err)
	}
	if pResp.Message == nil {
		return "", malformed("missing message")
	}
	if pResp.Message.Content == nil {
		return "", malformed("missing message.content")
	}

	c.logger.Debug("inference response decoded",
		zap.String("model", pResp.Model),
		zap.Bool("done", pResp.Done),
		zap.Int("prompt_eval_count", pResp.PromptEvalCount),
		zap.Int("eval_count", pResp.EvalCount),
	)

	return *pResp.Message.Content, nil
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
