// Package webhook delivers chat messages to the external workflow
// endpoints that hold the assistants' actual logic.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// Client is an interface for calling an assistant webhook.
type Client interface {
	Send(ctx context.Context, url string, req models.AssistantRequest) (models.AssistantReply, error)
}

// HTTPClient implements Client using standard HTTP requests. The webhook
// contract is POST {message, userId} → {reply}; anything else is a
// delivery failure.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds a client with the given per-call timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Send posts the message and validates the response shape before trusting
// it. A non-2xx status or a missing/empty reply field is an error.
func (c *HTTPClient) Send(ctx context.Context, url string, reqBody models.AssistantRequest) (models.AssistantReply, error) {
	if c.client == nil {
		c.client = &http.Client{Timeout: 10 * time.Second}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return models.AssistantReply{}, fmt.Errorf("failed to marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.AssistantReply{}, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.AssistantReply{}, fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AssistantReply{}, fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AssistantReply{}, fmt.Errorf("failed to read webhook response: %w", err)
	}

	reply := gjson.GetBytes(body, "reply")
	if !reply.Exists() || reply.Type != gjson.String || reply.String() == "" {
		return models.AssistantReply{}, fmt.Errorf("webhook response missing reply field")
	}

	return models.AssistantReply{Reply: reply.String()}, nil
}

// MockClient is a mock implementation for testing.
type MockClient struct {
	mu    sync.Mutex
	Reply models.AssistantReply
	Err   error
	Calls []Call
}

// Call records one invocation of the mock.
type Call struct {
	URL     string
	Request models.AssistantRequest
}

func (m *MockClient) Send(_ context.Context, url string, req models.AssistantRequest) (models.AssistantReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{URL: url, Request: req})
	return m.Reply, m.Err
}
