package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream sends a message with streaming enabled, invoking onDelta for each
// text chunk as it arrives. It returns the full concatenated response once
// the stream ends.
func (c *Client) Stream(ctx context.Context, system string, messages []Message, maxTokens int, onDelta func(string)) (Completion, error) {
	resp, err := c.send(ctx, request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
		Stream:    true,
	})
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.recordFailure()
		return Completion{}, apiError(resp.StatusCode, respBody)
	}

	var (
		text strings.Builder
		comp Completion
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			comp.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				text.WriteString(ev.Delta.Text)
				if onDelta != nil {
					onDelta(ev.Delta.Text)
				}
			}
		case "message_delta":
			comp.OutputTokens = ev.Usage.OutputTokens
		case "error":
			c.recordFailure()
			return Completion{}, &ProviderError{Type: ev.Error.Type, Message: ev.Error.Message}
		}
	}
	if err := scanner.Err(); err != nil {
		c.recordFailure()
		return Completion{}, &ProviderError{Message: fmt.Sprintf("read stream: %v", err)}
	}

	c.recordSuccess()
	comp.Content = text.String()
	return comp, nil
}
