// Package streamtranslate implements C5, the stream translator: a
// finite-state machine that consumes upstream Chat Completions SSE chunks
// and emits Anthropic SSE events, maintaining the bracketing invariant in
// spec.md §3 (one message_start, zero or more complete
// content_block_start/delta*/stop groups at strictly increasing index, one
// message_delta, one message_stop).
//
// Grounded on original_source/src/services/anthropic_sse_builder_service.py,
// reworked from its boolean-latch style (`text_block_closed`,
// `has_sent_stop_reason`) into an explicit state machine with an indexed
// block table, per spec.md §9's "FSM over ad-hoc flags" redesign note. The
// Python original leaves streaming tool-call support as a literal TODO; this
// implements it fully (spec.md §4.5, §8 scenario 6).
package streamtranslate

import (
	"github.com/google/uuid"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/schema"
)

type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockTool
)

// Machine is the per-request stream translator. It is not safe for
// concurrent use — spec.md §5 requires exactly one producer advancing it at
// a time.
type Machine struct {
	callerModel string

	started bool
	closed  bool

	openKind  blockKind
	openIndex int
	nextIndex int

	// toolIndex maps an upstream tool-call index to the Anthropic block
	// index it was opened at, so later argument fragments route correctly.
	toolIndex map[int]int

	lastOutputTokens int
}

// New constructs a Machine for one request. callerModel is echoed in
// message_start so the caller sees the model id it asked for.
func New(callerModel string) *Machine {
	return &Machine{
		callerModel: callerModel,
		toolIndex:   make(map[int]int),
	}
}

// Events is the ordered list of Anthropic SSE events produced from a single
// upstream chunk (a chunk can produce more than one event, e.g. closing a
// block before opening another, or closing + message_delta + message_stop).
type Events []Event

// Event pairs an SSE event's wire type name with its JSON payload.
type Event struct {
	Type    string
	Payload any
}

func (e *Events) emit(eventType string, payload any) {
	*e = append(*e, Event{Type: eventType, Payload: payload})
}

// Chunk processes one upstream streaming chunk, returning the Anthropic
// events it produces. Once End, Fail or a terminal chunk has been processed,
// further calls return no events (spec.md §4.5: "any further chunks are
// ignored").
func (m *Machine) Chunk(chunk *schema.ChatCompletionChunk) Events {
	if m.closed {
		return nil
	}

	var events Events
	m.maybeEmitStart(&events, chunk.ID)

	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		m.emitText(&events, choice.Delta.Content)
	}

	for _, tc := range choice.Delta.ToolCalls {
		m.emitToolDelta(&events, tc)
	}

	if usage := chunk.Usage; usage != nil {
		m.lastOutputTokens = usage.CompletionTokens
	}

	if choice.FinishReason != nil {
		m.closeStream(&events, mapStopReason(*choice.FinishReason), chunk.Usage)
	}

	return events
}

// End is called when the upstream stream ends without ever reporting a
// finish_reason. It synthesises the close sequence with stop_reason
// "end_turn", per spec.md §4.5.
func (m *Machine) End() Events {
	if m.closed {
		return nil
	}
	var events Events
	m.maybeEmitStart(&events, "")
	m.closeStream(&events, "end_turn", nil)
	return events
}

// Fail is called on a mid-stream upstream failure (transport error or
// non-2xx status arriving after the stream has already started). It closes
// any open block, emits a single in-band error event, then message_stop.
func (m *Machine) Fail(err *apierror.Error) Events {
	if m.closed {
		return nil
	}
	var events Events
	m.maybeEmitStart(&events, "")
	m.closeOpenBlock(&events)
	events.emit("error", err.Event())
	events.emit("message_stop", schema.MessageStopEvent{Type: "message_stop"})
	m.closed = true
	return events
}

func (m *Machine) maybeEmitStart(events *Events, firstChunkID string) {
	if m.started {
		return
	}
	m.started = true
	id := firstChunkID
	if id == "" {
		id = "msg_" + uuid.NewString()
	}
	events.emit("message_start", schema.MessageStartEvent{
		Type: "message_start",
		Message: schema.MessagesResponse{
			ID:      id,
			Type:    "message",
			Role:    "assistant",
			Model:   m.callerModel,
			Content: schema.ContentBlocks{},
			Usage:   schema.Usage{},
		},
	})
}

func (m *Machine) emitText(events *Events, text string) {
	if m.openKind != blockText {
		m.closeOpenBlock(events)
		m.openBlock(events, blockText, schema.StartingTextBlock{Type: "text", Text: ""})
	}
	events.emit("content_block_delta", schema.ContentBlockDeltaEvent{
		Type:  "content_block_delta",
		Index: m.openIndex,
		Delta: schema.TextDelta{Type: "text_delta", Text: text},
	})
}

func (m *Machine) emitToolDelta(events *Events, delta schema.ToolCallDelta) {
	index, seen := m.toolIndex[delta.Index]
	if !seen {
		m.closeOpenBlock(events)
		name := ""
		id := ""
		if delta.Function != nil {
			name = delta.Function.Name
		}
		if delta.ID != "" {
			id = delta.ID
		} else {
			id = "toolu_" + uuid.NewString()
		}
		index = m.openBlock(events, blockTool, schema.StartingToolUseBlock{
			Type:  "tool_use",
			ID:    id,
			Name:  name,
			Input: map[string]any{},
		})
		m.toolIndex[delta.Index] = index
	}

	if delta.Function != nil && delta.Function.Arguments != "" {
		events.emit("content_block_delta", schema.ContentBlockDeltaEvent{
			Type:  "content_block_delta",
			Index: index,
			Delta: schema.InputJSONDelta{Type: "input_json_delta", PartialJSON: delta.Function.Arguments},
		})
	}
}

// openBlock opens a new content block of kind k with the given starting
// content_block payload, and returns the Anthropic index it was assigned.
func (m *Machine) openBlock(events *Events, k blockKind, contentBlock schema.ContentBlock) int {
	index := m.nextIndex
	m.nextIndex++
	m.openKind = k
	m.openIndex = index
	events.emit("content_block_start", schema.ContentBlockStartEvent{
		Type:         "content_block_start",
		Index:        index,
		ContentBlock: contentBlock,
	})
	return index
}

func (m *Machine) closeOpenBlock(events *Events) {
	if m.openKind == blockNone {
		return
	}
	events.emit("content_block_stop", schema.ContentBlockStopEvent{
		Type:  "content_block_stop",
		Index: m.openIndex,
	})
	m.openKind = blockNone
}

func (m *Machine) closeStream(events *Events, stopReason string, usage *schema.ChatUsage) {
	m.closeOpenBlock(events)

	outputTokens := 1
	if usage != nil {
		outputTokens = usage.CompletionTokens
	} else if m.lastOutputTokens > 0 {
		outputTokens = m.lastOutputTokens
	}

	events.emit("message_delta", schema.MessageDeltaEvent{
		Type: "message_delta",
		Delta: schema.MessageDeltaInner{
			StopReason:   stopReason,
			StopSequence: nil,
		},
		Usage: schema.MessageDeltaUsage{OutputTokens: outputTokens},
	})
	events.emit("message_stop", schema.MessageStopEvent{Type: "message_stop"})
	m.closed = true
}

// mapStopReason mirrors translate.mapStopReason; duplicated rather than
// imported to keep C5 free of a dependency on C4 (they translate the same
// table independently, per spec.md's component boundaries).
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
