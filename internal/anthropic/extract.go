package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const extractMaxTokens = 2048

// ExtractInto asks the model to produce JSON matching out's shape and
// unmarshals the response into it. The instructions carry the schema; the
// model occasionally wraps output in markdown fences or prose anyway, so the
// response is cleaned before parsing. A response that still fails to parse
// returns an *ExtractionError.
func (c *Client) ExtractInto(ctx context.Context, instructions, text string, out any) error {
	prompt := instructions +
		"\n\nText to extract from:\n" + text +
		"\n\nRespond with only the JSON object, no other text."

	comp, err := c.Complete(ctx, "", []Message{{Role: "user", Content: prompt}}, extractMaxTokens)
	if err != nil {
		return err
	}

	cleaned := cleanJSON(comp.Content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &ExtractionError{Raw: comp.Content, Err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response, leaving the outermost JSON object.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
