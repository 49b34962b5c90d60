// Package apierror implements C6, the error translator: mapping an upstream
// error (structured JSON body or transport failure) into the Anthropic
// error shape, and carrying the HTTP status that goes with it.
package apierror

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/howard-nolan/llmproxy/internal/schema"
)

// Kind is the proxy's internal error taxonomy.
type Kind string

const (
	KindInvalidRequest    Kind = "invalid_request"
	KindAuthentication    Kind = "authentication"
	KindPermission        Kind = "permission"
	KindRateLimit         Kind = "rate_limit"
	KindNotFound          Kind = "not_found"
	KindOverloaded        Kind = "overloaded"
	KindAPIConnection     Kind = "api_connection"
	KindInternal          Kind = "internal"
	KindModelUnresolvable Kind = "model_unresolvable"
)

// anthropicType and httpStatus for each Kind, per spec.md §4.6 / §7.
var kindInfo = map[Kind]struct {
	anthropicType string
	httpStatus    int
}{
	KindInvalidRequest:    {"invalid_request_error", http.StatusBadRequest},
	KindAuthentication:    {"authentication_error", http.StatusUnauthorized},
	KindPermission:        {"authentication_error", http.StatusUnauthorized},
	KindRateLimit:         {"rate_limit_error", http.StatusTooManyRequests},
	KindNotFound:          {"not_found_error", http.StatusNotFound},
	KindOverloaded:        {"overloaded_error", http.StatusServiceUnavailable},
	KindAPIConnection:     {"api_connection_error", http.StatusServiceUnavailable},
	KindInternal:          {"api_error", http.StatusInternalServerError},
	KindModelUnresolvable: {"invalid_request_error", http.StatusBadRequest},
}

// Error is a stable, user-visible, Anthropic-shaped error. It never carries
// an internal traceback in Message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// HTTPStatus returns the HTTP status code that goes with this error's kind.
func (e *Error) HTTPStatus() int {
	return kindInfo[e.Kind].httpStatus
}

// Body renders the error as the Anthropic-shaped JSON error body.
func (e *Error) Body() schema.ErrorResponse {
	return schema.ErrorResponse{
		Type: "error",
		Error: schema.ErrorBody{
			Type:    kindInfo[e.Kind].anthropicType,
			Message: e.Message,
		},
	}
}

// Event renders the error as an in-band SSE error event.
func (e *Error) Event() schema.ErrorEvent {
	return schema.ErrorEvent{
		Type: "error",
		Error: schema.ErrorBody{
			Type:    kindInfo[e.Kind].anthropicType,
			Message: e.Message,
		},
	}
}

// substringKind maps a substring that may appear in an upstream error's
// "type" field to the proxy's internal Kind, per spec.md §4.6's table. Order
// matters: the first match wins, mirroring the table's precedence.
var substringKind = []struct {
	substr string
	kind   Kind
}{
	{"auth", KindAuthentication},
	{"permission", KindAuthentication},
	{"key", KindAuthentication},
	{"rate_limit", KindRateLimit},
	{"invalid_request", KindInvalidRequest},
	{"validation", KindInvalidRequest},
	{"bad_request", KindInvalidRequest},
	{"not_found", KindNotFound},
	{"model_not_found", KindNotFound},
	{"overloaded", KindOverloaded},
	{"capacity", KindOverloaded},
	{"unavailable", KindOverloaded},
}

func kindFromUpstreamType(upstreamType string) Kind {
	lower := strings.ToLower(upstreamType)
	for _, m := range substringKind {
		if strings.Contains(lower, m.substr) {
			return m.kind
		}
	}
	return KindInternal
}

// FromUpstreamBody parses a non-2xx upstream response body and translates it
// into an Error. A malformed (non-JSON) body is mapped to an api_error
// carrying the raw body as the message.
func FromUpstreamBody(body []byte) *Error {
	var parsed schema.ChatErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "upstream returned an error with no body"
		}
		return New(KindInternal, msg)
	}
	kind := kindFromUpstreamType(parsed.Error.Type)
	return New(kind, parsed.Error.Message)
}

// FromTransportError translates a transport-level failure (connection
// refused, timeout, context cancellation surfaced as an error) into an Error.
func FromTransportError(err error) *Error {
	return New(KindAPIConnection, "connecting to upstream: "+err.Error())
}
