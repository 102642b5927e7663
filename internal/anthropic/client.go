package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/nuance/internal/breaker"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	// Anthropic returns 529 when the API itself is overloaded.
	statusOverloaded = 529
)

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker

	maxRetries int
	backoff    time.Duration
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    apiURL,
		client:     &http.Client{Timeout: 120 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// SetTestTransport points the client at a test server.
func (c *Client) SetTestTransport(baseURL string) {
	c.baseURL = baseURL
}

// SetBreaker installs a circuit breaker consulted before every API call.
func (c *Client) SetBreaker(b *breaker.Breaker) {
	c.breaker = b
}

// Breaker returns the installed circuit breaker, nil if none.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the text of a model response plus its token usage.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a message to the Anthropic API and returns the text response
// with token usage. Rate-limit (429) and overload (529) responses are retried
// with exponential backoff before giving up.
func (c *Client) Complete(ctx context.Context, system string, messages []Message, maxTokens int) (Completion, error) {
	resp, err := c.send(ctx, request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return Completion{}, &ProviderError{Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return Completion{}, apiError(resp.StatusCode, respBody)
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		c.recordFailure()
		return Completion{}, &ProviderError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unmarshal response: %v", err)}
	}

	if len(apiResp.Content) == 0 {
		c.recordFailure()
		return Completion{}, &ProviderError{StatusCode: resp.StatusCode, Message: "empty response content"}
	}

	c.recordSuccess()
	return Completion{
		Content:      apiResp.Content[0].Text,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}

// send marshals the payload and posts it, retrying 429/529 up to maxRetries
// attempts. The caller owns the returned body.
func (c *Client) send(ctx context.Context, payload request) (*http.Response, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, &ProviderError{Type: "circuit_open", Message: err.Error()}
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.client.Do(req)
		if err != nil {
			c.recordFailure()
			return nil, &ProviderError{Message: fmt.Sprintf("api call: %v", err)}
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusOverloaded
		if !retryable || attempt >= c.maxRetries-1 {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-time.After(c.backoff << attempt):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.Success()
	}
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.Failure()
	}
}

func apiError(status int, body []byte) *ProviderError {
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return &ProviderError{StatusCode: status, Type: errResp.Error.Type, Message: errResp.Error.Message}
	}
	return &ProviderError{StatusCode: status, Message: string(body)}
}
