package streamtranslate

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteEvents serialises events to w using Anthropic's SSE framing: each
// event is two wire lines, "event: <type>\n" then "data: <compact JSON>\n\n"
// (spec.md §4.5). If w is an http.Flusher, callers should flush after each
// call the way the teacher's internal/stream.Write does, to keep streaming
// responsive under backpressure.
func WriteEvents(w io.Writer, events Events) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("streamtranslate: marshal %s event: %w", ev.Type, err)
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			return fmt.Errorf("streamtranslate: write %s event: %w", ev.Type, err)
		}
	}
	return nil
}

// WriteDoneSentinel writes the optional "[DONE]" terminator some simple SSE
// clients expect after the last real event, per spec.md §4.5.
func WriteDoneSentinel(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}
