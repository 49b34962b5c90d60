// Package schema defines the wire types for both sides of the proxy: the
// Anthropic Messages API the caller speaks, and the OpenAI-shaped Chat
// Completions API the upstream speaks (used for both OpenAI and, via its
// OpenAI-compatible endpoint, Gemini).
//
// Content blocks are a closed sum type discriminated by a "type" field.
// Decoding rejects unknown content-block discriminators rather than passing
// them through silently — callers get a clear error instead of a partially
// understood message. The SSE event types in sse.go are encode-only; no
// decoder is provided for them.
package schema

import (
	"encoding/json"
	"fmt"
)

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	System        *SystemPrompt  `json:"system,omitempty"`
	MaxTokens     int            `json:"max_tokens"`
	Stream        bool           `json:"stream,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	TopK          *int           `json:"top_k,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    *ToolChoice    `json:"tool_choice,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Message is one turn of the conversation. Content is either a bare string
// (shorthand for a single text block) or an ordered sequence of typed blocks.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is the union type backing Message.Content: either a plain string
// or an ordered list of content blocks.
type Content struct {
	Text    string
	Blocks  []ContentBlock
	IsText  bool
	present bool
}

// Present reports whether the field was included in the source JSON at all.
func (c Content) Present() bool { return c.present }

func (c *Content) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	c.present = true
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsText = true
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content: expected string or array of blocks: %w", err)
	}
	blocks := make([]ContentBlock, 0, len(raw))
	for _, r := range raw {
		b, err := decodeContentBlock(r)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	c.Blocks = blocks
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// SystemPrompt is the union backing MessagesRequest.System: either a plain
// string or an ordered sequence of text blocks.
type SystemPrompt struct {
	Text   string
	Blocks []TextBlock
	IsText bool
}

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		s.IsText = true
		return nil
	}
	var blocks []TextBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("system: expected string or array of text blocks: %w", err)
	}
	s.Blocks = blocks
	return nil
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.IsText {
		return json.Marshal(s.Text)
	}
	return json.Marshal(s.Blocks)
}

// ContentBlock is the interface every Anthropic content block kind
// implements. It exists purely to discriminate the union on decode;
// encoding a slice of ContentBlock works via each concrete type's own
// struct tags, no special marshaling needed.
type ContentBlock interface {
	contentBlockType() string
}

// TextBlock is a plain text content block.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextBlock) contentBlockType() string { return "text" }

// ImageSource is the base64-encoded payload of an ImageBlock.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data"`
}

// ImageBlock is a base64-encoded image content block.
type ImageBlock struct {
	Type   string      `json:"type"`
	Source ImageSource `json:"source"`
}

func (ImageBlock) contentBlockType() string { return "image" }

// ToolUseBlock is an assistant-authored request to invoke a tool.
type ToolUseBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolUseBlock) contentBlockType() string { return "tool_use" }

// ToolResultBlock is a user-authored reply carrying a tool's output.
type ToolResultBlock struct {
	Type      string            `json:"type"`
	ToolUseID string            `json:"tool_use_id"`
	Content   ToolResultContent `json:"content"`
	IsError   *bool             `json:"is_error,omitempty"`
}

func (ToolResultBlock) contentBlockType() string { return "tool_result" }

// ToolResultContent is the union backing ToolResultBlock.Content: either a
// plain string or an ordered sequence of opaque JSON objects.
type ToolResultContent struct {
	Text   string
	Parts  []map[string]any
	IsText bool
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsText = true
		return nil
	}
	var parts []map[string]any
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("tool_result content: expected string or array of objects: %w", err)
	}
	c.Parts = parts
	return nil
}

func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	if c.IsText {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

// Stringify returns the tool result content as a string: the text unchanged
// when it is already a string, otherwise a canonical JSON serialisation of
// the structured parts. This matches the upstream "tool" message's plain
// string content field.
func (c ToolResultContent) Stringify() (string, error) {
	if c.IsText {
		return c.Text, nil
	}
	b, err := json.Marshal(c.Parts)
	if err != nil {
		return "", fmt.Errorf("stringify tool_result content: %w", err)
	}
	return string(b), nil
}

func decodeContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil, fmt.Errorf("content block: %w", err)
	}
	switch disc.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("text block: %w", err)
		}
		return b, nil
	case "image":
		var b ImageBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("image block: %w", err)
		}
		return b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("tool_use block: %w", err)
		}
		return b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("tool_result block: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: content block type %q", ErrUnknownDiscriminator, disc.Type)
	}
}

// Tool is a caller-declared function the model may invoke.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolChoice constrains how the model selects a tool.
//
//	{"type": "auto"}
//	{"type": "any"}
//	{"type": "tool", "name": "get_weather"}
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Usage reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessagesResponse is the body returned from a non-streaming POST /v1/messages.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      ContentBlocks  `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ContentBlocks is a decodable slice of ContentBlock. Only TextBlock and
// ToolUseBlock are valid in a response.
type ContentBlocks []ContentBlock

func (bs *ContentBlocks) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	out := make(ContentBlocks, 0, len(raw))
	for _, r := range raw {
		var disc struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(r, &disc); err != nil {
			return fmt.Errorf("content block: %w", err)
		}
		switch disc.Type {
		case "text":
			var b TextBlock
			if err := json.Unmarshal(r, &b); err != nil {
				return err
			}
			out = append(out, b)
		case "tool_use":
			var b ToolUseBlock
			if err := json.Unmarshal(r, &b); err != nil {
				return err
			}
			out = append(out, b)
		default:
			return fmt.Errorf("%w: response content block type %q", ErrUnknownDiscriminator, disc.Type)
		}
	}
	*bs = out
	return nil
}

// ErrUnknownDiscriminator is returned when a JSON "type" field does not match
// any known variant of a closed sum type.
var ErrUnknownDiscriminator = fmt.Errorf("unknown type discriminator")
