package translate

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/howard-nolan/llmproxy/internal/schema"
)

// stopReasonMap translates an upstream finish_reason to an Anthropic
// stop_reason, per spec.md §4.4. Unrecognised values pass through unchanged.
var stopReasonMap = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"function_call":  "tool_use",
	"content_filter": "content_filtered",
}

func mapStopReason(finishReason string) string {
	if mapped, ok := stopReasonMap[finishReason]; ok {
		return mapped
	}
	return finishReason
}

// Response builds the Anthropic response for a complete upstream unary
// response. callerModel is echoed back verbatim in the result so the caller
// sees the model id it asked for, not whatever the upstream reports.
func Response(upstream *schema.ChatResponse, callerModel string) schema.MessagesResponse {
	out := schema.MessagesResponse{
		ID:    upstream.ID,
		Type:  "message",
		Role:  "assistant",
		Model: callerModel,
	}
	if out.ID == "" {
		out.ID = "msg_" + uuid.NewString()
	}

	if len(upstream.Choices) == 0 {
		out.Content = schema.ContentBlocks{schema.TextBlock{Type: "text", Text: ""}}
		out.StopReason = "end_turn"
		return out
	}

	choice := upstream.Choices[0]
	var blocks schema.ContentBlocks
	if choice.Message.Content != "" {
		blocks = append(blocks, schema.TextBlock{Type: "text", Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, schema.ToolUseBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	if len(blocks) == 0 {
		blocks = schema.ContentBlocks{schema.TextBlock{Type: "text", Text: ""}}
	}
	out.Content = blocks
	out.StopReason = mapStopReason(choice.FinishReason)

	if upstream.Usage != nil {
		out.Usage = schema.Usage{
			InputTokens:  upstream.Usage.PromptTokens,
			OutputTokens: upstream.Usage.CompletionTokens,
		}
	}
	return out
}

// parseToolArguments parses a tool call's JSON-string arguments into a raw
// JSON object. On parse failure, the raw string is preserved under a
// single-key object so the response still builds instead of failing.
func parseToolArguments(arguments string) json.RawMessage {
	var v any
	if err := json.Unmarshal([]byte(arguments), &v); err != nil {
		raw, marshalErr := json.Marshal(map[string]string{"_raw_arguments": arguments})
		if marshalErr != nil {
			return json.RawMessage(`{}`)
		}
		return raw
	}
	// Re-marshal to ensure canonical, compact JSON regardless of upstream
	// whitespace.
	canonical, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(arguments)
	}
	return canonical
}
