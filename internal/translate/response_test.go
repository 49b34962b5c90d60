package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmproxy/internal/schema"
)

func TestResponse_PlainTextRoundTrip(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{
			{Message: schema.ChatResponseMessage{Role: "assistant", Content: "Hello"}, FinishReason: "stop"},
		},
		Usage: &schema.ChatUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
	}
	out := Response(upstream, "claude-3-haiku")
	assert.Equal(t, "assistant", out.Role)
	assert.Equal(t, "message", out.Type)
	require.Len(t, out.Content, 1)
	text, ok := out.Content[0].(schema.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Hello", text.Text)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, schema.Usage{InputTokens: 3, OutputTokens: 1}, out.Usage)
}

func TestResponse_ToolCallUnary(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{{
			Message: schema.ChatResponseMessage{
				Role: "assistant",
				ToolCalls: []schema.ToolCall{{
					ID:   "c1",
					Type: "function",
					Function: schema.FunctionCall{
						Name:      "get_weather",
						Arguments: `{"city":"SF"}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	out := Response(upstream, "claude-3-haiku")
	require.Len(t, out.Content, 1)
	tu, ok := out.Content[0].(schema.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", tu.ID)
	assert.Equal(t, "get_weather", tu.Name)
	assert.JSONEq(t, `{"city":"SF"}`, string(tu.Input))
	assert.Equal(t, "tool_use", out.StopReason)
}

func TestResponse_MalformedToolArgumentsSurfaceRawString(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{{
			Message: schema.ChatResponseMessage{
				Role: "assistant",
				ToolCalls: []schema.ToolCall{{
					ID:       "c1",
					Function: schema.FunctionCall{Name: "f", Arguments: "not json"},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	out := Response(upstream, "claude-3-haiku")
	tu, ok := out.Content[0].(schema.ToolUseBlock)
	require.True(t, ok)
	assert.JSONEq(t, `{"_raw_arguments":"not json"}`, string(tu.Input))
}

func TestResponse_UsageDefaultsToZeroWhenAbsent(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{{
			Message:      schema.ChatResponseMessage{Role: "assistant", Content: "hi"},
			FinishReason: "stop",
		}},
	}
	out := Response(upstream, "claude-3-haiku")
	assert.Equal(t, schema.Usage{}, out.Usage)
}

func TestResponse_NoContentEmitsSingleEmptyTextBlock(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{{
			Message:      schema.ChatResponseMessage{Role: "assistant"},
			FinishReason: "stop",
		}},
	}
	out := Response(upstream, "claude-3-haiku")
	require.Len(t, out.Content, 1)
	text, ok := out.Content[0].(schema.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "", text.Text)
}

func TestResponse_GeneratesIDWhenAbsent(t *testing.T) {
	upstream := &schema.ChatResponse{
		Choices: []schema.ChatChoice{{
			Message:      schema.ChatResponseMessage{Role: "assistant", Content: "hi"},
			FinishReason: "stop",
		}},
	}
	out := Response(upstream, "claude-3-haiku")
	assert.NotEmpty(t, out.ID)
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, "end_turn", mapStopReason("stop"))
	assert.Equal(t, "max_tokens", mapStopReason("length"))
	assert.Equal(t, "tool_use", mapStopReason("tool_calls"))
	assert.Equal(t, "tool_use", mapStopReason("function_call"))
	assert.Equal(t, "content_filtered", mapStopReason("content_filter"))
	assert.Equal(t, "something_else", mapStopReason("something_else"))
}
