// Package notification is the boundary to outbound SMS delivery. The core
// treats dispatch as best-effort: retry and backoff live here, not in the
// callers.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Gateway delivers a text message to a phone number and returns the
// provider's reference for the dispatch, when one exists.
type Gateway interface {
	Send(ctx context.Context, phone, body string) (providerRef string, err error)
}

// LoggerGateway is a stub implementation that writes messages to the logger.
// Used in development and tests.
type LoggerGateway struct {
	logger *slog.Logger
}

// NewLoggerGateway constructs a logging gateway stub.
func NewLoggerGateway(logger *slog.Logger) *LoggerGateway {
	return &LoggerGateway{logger: logger}
}

// Send writes the message to the structured logger.
func (g *LoggerGateway) Send(_ context.Context, phone, body string) (string, error) {
	if g == nil || g.logger == nil {
		return "", nil
	}
	g.logger.Info("sms dispatched", "phone", phone, "body", body)
	return "", nil
}

const (
	httpGatewayTimeout = 5 * time.Second
	httpGatewayRetries = 2
	httpGatewayBackoff = 500 * time.Millisecond
)

// HTTPGateway posts messages to an SMS provider endpoint.
type HTTPGateway struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPGateway constructs a gateway targeting the provider at url.
func NewHTTPGateway(url string, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		client: &http.Client{Timeout: httpGatewayTimeout},
		logger: logger,
	}
}

type sendRequest struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

type sendResponse struct {
	ProviderRef string `json:"provider_ref"`
}

// Send posts the message, retrying transient failures with a short backoff.
func (g *HTTPGateway) Send(ctx context.Context, phone, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{Phone: phone, Body: body})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= httpGatewayRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(httpGatewayBackoff * time.Duration(attempt)):
			}
		}
		ref, err := g.post(ctx, payload)
		if err == nil {
			return ref, nil
		}
		lastErr = err
		g.logger.Warn("sms dispatch attempt failed", "phone", phone, "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}

func (g *HTTPGateway) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ProviderRef, nil
}
