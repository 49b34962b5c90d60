// Package translate implements C3 (Anthropic request -> upstream request)
// and C4 (upstream response -> Anthropic response). Both directions are
// pure functions over in-memory structures: no I/O, no global state.
//
// Grounded on original_source/src/services/request_translator_service.py
// and original_source/src/services/response_translator_service.py.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/howard-nolan/llmproxy/internal/schema"
)

// Request builds the upstream Chat Completions request for an Anthropic
// MessagesRequest bound for upstreamModel (as resolved by the router).
func Request(req *schema.MessagesRequest, upstreamModel string) (*schema.ChatRequest, error) {
	var messages []schema.ChatMessage

	if sys := systemMessage(req.System); sys != nil {
		messages = append(messages, *sys)
	}

	for _, m := range req.Messages {
		translated, err := translateMessage(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, translated...)
	}

	out := &schema.ChatRequest{
		Model:       upstreamModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}
	// top_k has no upstream equivalent and is dropped silently (spec.md §4.3).

	if len(req.Tools) > 0 {
		tools := make([]schema.ChatTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, schema.ChatTool{
				Type: "function",
				Function: schema.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  SanitizeSchema(t.InputSchema),
				},
			})
		}
		out.Tools = tools
	}

	if req.ToolChoice != nil {
		tc, err := translateToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = tc
	}

	return out, nil
}

// systemMessage builds the leading system message, if any. A string system
// prompt is emitted unchanged; a list of text blocks is joined with "\n"
// and trimmed, and emits nothing when the result is empty.
func systemMessage(sys *schema.SystemPrompt) *schema.ChatMessage {
	if sys == nil {
		return nil
	}
	var content string
	if sys.IsText {
		content = sys.Text
	} else {
		parts := make([]string, 0, len(sys.Blocks))
		for _, b := range sys.Blocks {
			parts = append(parts, b.Text)
		}
		content = strings.TrimSpace(strings.Join(parts, "\n"))
	}
	if content == "" {
		return nil
	}
	return &schema.ChatMessage{
		Role:    "system",
		Content: textContent(content),
	}
}

func textContent(s string) *schema.MessageContent {
	return &schema.MessageContent{Text: s, IsText: true}
}

// translateMessage translates one Anthropic message into zero or more
// upstream messages (a user tool_result turn may expand into several tool
// messages plus one aggregated user message).
func translateMessage(m schema.Message) ([]schema.ChatMessage, error) {
	switch m.Role {
	case "user":
		return translateUserMessage(m)
	case "assistant":
		msg, err := translateAssistantMessage(m)
		if err != nil {
			return nil, err
		}
		return []schema.ChatMessage{msg}, nil
	default:
		return nil, fmt.Errorf("translate: unsupported message role %q", m.Role)
	}
}

func translateUserMessage(m schema.Message) ([]schema.ChatMessage, error) {
	if m.Content.IsText {
		return []schema.ChatMessage{{Role: "user", Content: textContent(m.Content.Text)}}, nil
	}

	if len(m.Content.Blocks) == 0 {
		return []schema.ChatMessage{{Role: "user", Content: textContent("")}}, nil
	}

	var toolMessages []schema.ChatMessage
	var parts []schema.ChatContentPart

	for _, b := range m.Content.Blocks {
		switch block := b.(type) {
		case schema.TextBlock:
			parts = append(parts, schema.ChatTextPart{Type: "text", Text: block.Text})
		case schema.ImageBlock:
			mediaType := block.Source.MediaType
			if mediaType == "" {
				mediaType = "image/jpeg"
			}
			parts = append(parts, schema.ChatImagePart{
				Type: "image_url",
				ImageURL: schema.ChatImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mediaType, block.Source.Data),
				},
			})
		case schema.ToolResultBlock:
			content, err := block.Content.Stringify()
			if err != nil {
				return nil, fmt.Errorf("translate tool_result %s: %w", block.ToolUseID, err)
			}
			toolMessages = append(toolMessages, schema.ChatMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    textContent(content),
			})
		default:
			return nil, fmt.Errorf("translate: unsupported content block in user message: %T", block)
		}
	}

	out := toolMessages
	if len(parts) > 0 {
		out = append(out, schema.ChatMessage{Role: "user", Content: aggregateParts(parts)})
	}
	return out, nil
}

// aggregateParts collapses a single text-only part list to a bare string,
// matching spec.md §4.3's "single text part" shorthand.
func aggregateParts(parts []schema.ChatContentPart) *schema.MessageContent {
	if len(parts) == 1 {
		if t, ok := parts[0].(schema.ChatTextPart); ok {
			return textContent(t.Text)
		}
	}
	return &schema.MessageContent{Parts: parts}
}

func translateAssistantMessage(m schema.Message) (schema.ChatMessage, error) {
	out := schema.ChatMessage{Role: "assistant"}

	if m.Content.IsText {
		out.Content = textContent(m.Content.Text)
		return out, nil
	}

	var texts []string
	var toolCalls []schema.ToolCall

	for _, b := range m.Content.Blocks {
		switch block := b.(type) {
		case schema.TextBlock:
			texts = append(texts, block.Text)
		case schema.ToolUseBlock:
			args, err := canonicalJSON(block.Input)
			if err != nil {
				return schema.ChatMessage{}, fmt.Errorf("translate tool_use %s: %w", block.ID, err)
			}
			toolCalls = append(toolCalls, schema.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			})
		default:
			return schema.ChatMessage{}, fmt.Errorf("translate: unsupported content block in assistant message: %T", block)
		}
	}

	joined := strings.Join(texts, "\n")

	switch {
	case len(toolCalls) > 0 && joined != "":
		out.Content = textContent(joined)
		out.ToolCalls = toolCalls
	case len(toolCalls) > 0:
		// content absent (not empty-string) when only tool_calls exist.
		out.ToolCalls = toolCalls
	default:
		out.Content = textContent(joined)
	}
	return out, nil
}

func canonicalJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func translateToolChoice(tc schema.ToolChoice) (any, error) {
	switch tc.Type {
	case "auto", "any":
		return "auto", nil
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}, nil
	default:
		return nil, fmt.Errorf("translate: unsupported tool_choice type %q", tc.Type)
	}
}

// SanitizeSchema recursively strips "format" from string-typed schema nodes
// unless the format is "date-time", per spec.md §4.3: some upstream
// providers reject unrecognised string formats. Idempotent: applying it
// twice yields the same result as applying it once.
func SanitizeSchema(node map[string]any) map[string]any {
	if node == nil {
		return nil
	}
	out := sanitizeValue(node).(map[string]any)
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitizeValue(child)
		}
		if t, ok := out["type"]; ok && t == "string" {
			if f, ok := out["format"]; ok && f != "date-time" {
				delete(out, "format")
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeValue(child)
		}
		return out
	default:
		return v
	}
}
