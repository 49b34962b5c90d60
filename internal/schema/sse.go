package schema

// SSE event payloads for the Anthropic streaming wire format. The proxy only
// ever produces these (it never has to parse them back), so no custom
// UnmarshalJSON is provided — each type's struct tags are enough for
// encoding/json to encode it. They are not decodable as-is:
// ContentBlockStartEvent.ContentBlock is an interface.

// MessageStartEvent opens a streamed message.
type MessageStartEvent struct {
	Type    string           `json:"type"`
	Message MessagesResponse `json:"message"`
}

// ContentBlockStartEvent opens a new content block at Index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// StartingTextBlock is the zero-length text block a content_block_start
// event carries when opening a text block (its contents arrive via
// subsequent content_block_delta events).
type StartingTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (StartingTextBlock) contentBlockType() string { return "text" }

// StartingToolUseBlock is the content_block carried by content_block_start
// when opening a tool_use block; Input is always `{}` at open time.
type StartingToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (StartingToolUseBlock) contentBlockType() string { return "tool_use" }

// TextDelta is the inner delta of a content_block_delta event for a text block.
type TextDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InputJSONDelta is the inner delta of a content_block_delta event for a
// tool_use block: a raw fragment of the partially-streamed JSON arguments.
type InputJSONDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

// ContentBlockDeltaEvent carries one incremental update to an open block.
// Delta is either a TextDelta or an InputJSONDelta.
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta any    `json:"delta"`
}

// ContentBlockStopEvent closes the block at Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaInner carries the fields that change on message_delta.
// StopSequence must be emitted as an explicit JSON null when absent — hence
// no omitempty — since that is part of the Anthropic wire contract.
type MessageDeltaInner struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageDeltaUsage carries the incremental usage reported with message_delta.
// InputTokens is omitted entirely when unknown (it belongs to message_start).
type MessageDeltaUsage struct {
	OutputTokens int  `json:"output_tokens"`
	InputTokens  *int `json:"input_tokens,omitempty"`
}

// MessageDeltaEvent reports the terminal stop_reason and incremental usage.
type MessageDeltaEvent struct {
	Type  string            `json:"type"`
	Delta MessageDeltaInner `json:"delta"`
	Usage MessageDeltaUsage `json:"usage"`
}

// MessageStopEvent ends the stream for one message.
type MessageStopEvent struct {
	Type string `json:"type"`
}

// PingEvent is a keepalive with no payload beyond its type.
type PingEvent struct {
	Type string `json:"type"`
}

// ErrorBody is the inner error object of an ErrorEvent and of a unary error response.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEvent is emitted in-band when a stream fails after headers have flushed.
type ErrorEvent struct {
	Type  string    `json:"type"`
	Error ErrorBody `json:"error"`
}

// ErrorResponse is the unary (pre-stream) error response body.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error ErrorBody `json:"error"`
}
