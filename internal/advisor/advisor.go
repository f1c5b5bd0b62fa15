// Package advisor is the HTTP client for the external LLM advisor
// (spec.md §6): a chat-completions-style request/response, whose reply
// text is scanned for TUNING_JSON/LEARNING/FORGET directives by the
// tuning and learning stores. Grounded on Valkyrie's integration client
// get/post pattern, instrumented with an OpenTelemetry span per call
// (SPEC_FULL.md domain stack).
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/windward/autoflight/internal/apperr"
	"github.com/windward/autoflight/internal/metrics"
)

const tracerName = "autoflight/advisor"

// Mode selects the timeout budget: hosted providers get 30s, local
// providers get 120s (spec.md §5 "Cancellation and timeouts").
type Mode int

const (
	ModeHosted Mode = iota
	ModeLocal
)

// Client queries the advisor's chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient creates an advisor client with the timeout appropriate to
// mode.
func NewClient(baseURL, apiKey, model string, mode Mode, logger *logrus.Logger) *Client {
	timeout := 30 * time.Second
	if mode == ModeLocal {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Query sends prompt as the user message and returns the advisor's raw
// response text for the caller (tuning/learning stores) to parse.
// Failures are mapped to an AdvisorFailure error per spec.md §7; no
// store is mutated on failure since parsing only happens on success.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	correlationID := uuid.New().String()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "advisor.Query")
	span.SetAttributes(attribute.String("advisor.correlation_id", correlationID))
	defer span.End()

	queryStart := time.Now()
	logger := c.logger.WithField("correlationId", correlationID)
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 1024,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		metrics.RecordAdvisorQuery("encode_error", time.Since(queryStart))
		return "", apperr.Wrap(apperr.KindAdvisorFailure, "failed to encode advisor request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		metrics.RecordAdvisorQuery("request_error", time.Since(queryStart))
		return "", apperr.Wrap(apperr.KindAdvisorFailure, "failed to build advisor request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithField("error", err).Warn("advisor request failed")
		metrics.RecordAdvisorQuery("unreachable", time.Since(queryStart))
		return "", apperr.Wrap(apperr.KindAdvisorFailure, "provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordAdvisorQuery("http_error", time.Since(queryStart))
		return "", apperr.New(apperr.KindAdvisorFailure, statusMessage(resp.StatusCode))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.RecordAdvisorQuery("decode_error", time.Since(queryStart))
		return "", apperr.Wrap(apperr.KindAdvisorFailure, "malformed advisor response", err)
	}
	if len(decoded.Choices) == 0 {
		metrics.RecordAdvisorQuery("empty_choices", time.Since(queryStart))
		return "", apperr.New(apperr.KindAdvisorFailure, "advisor returned no choices")
	}
	metrics.RecordAdvisorQuery("success", time.Since(queryStart))
	return decoded.Choices[0].Message.Content, nil
}

// statusMessage maps an HTTP status code to the operator-facing message
// of spec.md §7.
func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid API key"
	case http.StatusTooManyRequests:
		return "Rate limited"
	case http.StatusForbidden:
		return "Forbidden"
	default:
		if status >= 500 {
			return "Upstream unavailable"
		}
		return fmt.Sprintf("Provider error (status %d)", status)
	}
}
