// Package tokencount implements the optional token-counting collaborator
// backing POST /v1/messages/count_tokens (spec.md §6). It wraps a loaded
// HuggingFace tokenizer via github.com/daulet/tokenizers; when no tokenizer
// is configured, Counter is nil and the handler returns 501, exactly as
// spec.md §6 permits ("the counter's availability is not guaranteed").
package tokencount

import (
	"fmt"

	"github.com/daulet/tokenizers"

	"github.com/howard-nolan/llmproxy/internal/schema"
)

// Counter counts tokens in a translated upstream request's messages using a
// loaded tokenizer.
type Counter struct {
	tok *tokenizers.Tokenizer
}

// Load reads the tokenizer file at path. Callers should call Close when
// done; the proxy keeps one Counter for the process lifetime.
func Load(path string) (*Counter, error) {
	tok, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokencount: loading tokenizer %q: %w", path, err)
	}
	return &Counter{tok: tok}, nil
}

// Close releases the underlying tokenizer's native resources.
func (c *Counter) Close() error {
	if c == nil || c.tok == nil {
		return nil
	}
	return c.tok.Close()
}

// Count returns the total token count across a translated upstream
// request's messages: the system/user/assistant/tool content strings plus
// each tool call's function name and serialized arguments. Each piece is
// encoded separately and the counts are summed.
func (c *Counter) Count(req *schema.ChatRequest) (int, error) {
	if c == nil || c.tok == nil {
		return 0, fmt.Errorf("tokencount: no tokenizer loaded")
	}

	total := 0
	for _, msg := range req.Messages {
		if msg.Content != nil {
			n, err := c.countText(messageText(msg.Content))
			if err != nil {
				return 0, err
			}
			total += n
		}
		for _, tc := range msg.ToolCalls {
			n, err := c.countText(tc.Function.Name + tc.Function.Arguments)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func (c *Counter) countText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _ := c.tok.Encode(text, false)
	return len(ids), nil
}

// messageText flattens a message content union into plain text for counting
// purposes (image parts contribute no text tokens here; the upstream's own
// image-token accounting is out of scope for this estimator).
func messageText(content *schema.MessageContent) string {
	if content.IsText {
		return content.Text
	}
	var out string
	for _, part := range content.Parts {
		if t, ok := part.(schema.ChatTextPart); ok {
			out += t.Text
		}
	}
	return out
}
