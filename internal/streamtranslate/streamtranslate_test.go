package streamtranslate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/schema"
)

func eventTypes(all ...Events) []string {
	var out []string
	for _, es := range all {
		for _, e := range es {
			out = append(out, e.Type)
		}
	}
	return out
}

func finish(reason string) *string { return &reason }

func TestStreamingText_Scenario5(t *testing.T) {
	m := New("claude-3-haiku")

	e1 := m.Chunk(&schema.ChatCompletionChunk{
		ID:      "chatcmpl-1",
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "He"}}},
	})
	e2 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "llo"}}},
	})
	e3 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{FinishReason: finish("stop")}},
		Usage:   &schema.ChatUsage{CompletionTokens: 2},
	})

	got := eventTypes(e1, e2, e3)
	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, got)

	start := e1[0].Payload.(schema.MessageStartEvent)
	assert.Equal(t, "chatcmpl-1", start.Message.ID)
	assert.Equal(t, "claude-3-haiku", start.Message.Model)

	delta1 := e1[2].Payload.(schema.ContentBlockDeltaEvent)
	td1 := delta1.Delta.(schema.TextDelta)
	assert.Equal(t, "He", td1.Text)

	mdelta := e3[1].Payload.(schema.MessageDeltaEvent)
	assert.Equal(t, "end_turn", mdelta.Delta.StopReason)
	assert.Nil(t, mdelta.Delta.StopSequence)
	assert.Equal(t, 2, mdelta.Usage.OutputTokens)
}

func TestStreamingToolCall_Scenario6(t *testing.T) {
	m := New("claude-3-haiku")

	e1 := m.Chunk(&schema.ChatCompletionChunk{
		ID: "chatcmpl-1",
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{
			ToolCalls: []schema.ToolCallDelta{{Index: 0, ID: "c1", Function: &schema.FunctionCallDelta{Name: "f"}}},
		}}},
	})
	e2 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{
			ToolCalls: []schema.ToolCallDelta{{Index: 0, Function: &schema.FunctionCallDelta{Arguments: `{"x":`}}},
		}}},
	})
	e3 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{
			ToolCalls: []schema.ToolCallDelta{{Index: 0, Function: &schema.FunctionCallDelta{Arguments: `1}`}}},
		}}},
	})
	e4 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{FinishReason: finish("tool_calls")}},
	})

	got := eventTypes(e1, e2, e3, e4)
	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, got)

	start := e1[1].Payload.(schema.ContentBlockStartEvent)
	tool := start.ContentBlock.(schema.StartingToolUseBlock)
	assert.Equal(t, "c1", tool.ID)
	assert.Equal(t, "f", tool.Name)

	d1 := e2[0].Payload.(schema.ContentBlockDeltaEvent)
	frag1 := d1.Delta.(schema.InputJSONDelta).PartialJSON
	d2 := e3[0].Payload.(schema.ContentBlockDeltaEvent)
	frag2 := d2.Delta.(schema.InputJSONDelta).PartialJSON

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(frag1+frag2), &parsed))
	assert.Equal(t, float64(1), parsed["x"])

	mdelta := e4[1].Payload.(schema.MessageDeltaEvent)
	assert.Equal(t, "tool_use", mdelta.Delta.StopReason)
}

func TestIndexMonotonicity_AcrossTextThenTool(t *testing.T) {
	m := New("claude-3-haiku")
	e1 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "hi"}}},
	})
	e2 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{
			ToolCalls: []schema.ToolCallDelta{{Index: 0, ID: "c1", Function: &schema.FunctionCallDelta{Name: "f"}}},
		}}},
	})

	textStart := e1[1].Payload.(schema.ContentBlockStartEvent)
	assert.Equal(t, 0, textStart.Index)

	// A text block is open; a tool-call delta must close it before opening
	// the tool block at the next index.
	require.Len(t, e2, 2)
	assert.Equal(t, "content_block_stop", e2[0].Type)
	closeEvt := e2[0].Payload.(schema.ContentBlockStopEvent)
	assert.Equal(t, 0, closeEvt.Index)

	toolStart := e2[1].Payload.(schema.ContentBlockStartEvent)
	assert.Equal(t, 1, toolStart.Index)
}

func TestEnd_SynthesisesEndTurnWhenNoFinishReason(t *testing.T) {
	m := New("claude-3-haiku")
	e1 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "hi"}}},
	})
	e2 := m.End()

	got := eventTypes(e1, e2)
	assert.Equal(t, []string{
		"message_start", "content_block_start", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop",
	}, got)
	mdelta := e2[1].Payload.(schema.MessageDeltaEvent)
	assert.Equal(t, "end_turn", mdelta.Delta.StopReason)
}

func TestFail_ClosesOpenBlockBeforeErrorEvent(t *testing.T) {
	m := New("claude-3-haiku")
	e1 := m.Chunk(&schema.ChatCompletionChunk{
		Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "hi"}}},
	})
	e2 := m.Fail(apierror.New(apierror.KindAPIConnection, "upstream reset"))

	got := eventTypes(e1, e2)
	assert.Equal(t, []string{
		"message_start", "content_block_start", "content_block_delta",
		"content_block_stop", "error", "message_stop",
	}, got)
}

func TestChunk_IgnoredAfterClose(t *testing.T) {
	m := New("claude-3-haiku")
	m.Chunk(&schema.ChatCompletionChunk{Choices: []schema.ChatChunkChoice{{FinishReason: finish("stop")}}})
	more := m.Chunk(&schema.ChatCompletionChunk{Choices: []schema.ChatChunkChoice{{Delta: schema.ChatDelta{Content: "late"}}}})
	assert.Empty(t, more)
}

func TestOutputTokensPlaceholderWhenUsageMissing(t *testing.T) {
	m := New("claude-3-haiku")
	events := m.Chunk(&schema.ChatCompletionChunk{Choices: []schema.ChatChunkChoice{{FinishReason: finish("stop")}}})
	var mdelta schema.MessageDeltaEvent
	for _, e := range events {
		if e.Type == "message_delta" {
			mdelta = e.Payload.(schema.MessageDeltaEvent)
		}
	}
	assert.Equal(t, 1, mdelta.Usage.OutputTokens)
}
