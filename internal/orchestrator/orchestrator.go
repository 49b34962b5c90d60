// Package orchestrator implements C7: the per-request flow that ties
// together C2 (router), C3 (request translator), the upstream transport,
// and C4/C5/C6 (response/stream/error translators).
//
// Grounded on original_source/src/services/message_flow_orchestrator.py's
// translate -> dispatch -> branch-on-stream flow and its
// exception-hierarchy-to-translated-error pattern (httpx.HTTPStatusError /
// httpx.RequestError / ValueError / generic Exception, each routed through
// the error translator) — reimplemented as Go's single explicit *apierror.Error
// return value rather than a chain of exception types, since Go has no
// exception hierarchy to mirror.
package orchestrator

import (
	"context"
	"log"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/router"
	"github.com/howard-nolan/llmproxy/internal/schema"
	"github.com/howard-nolan/llmproxy/internal/streamtranslate"
	"github.com/howard-nolan/llmproxy/internal/translate"
	"github.com/howard-nolan/llmproxy/internal/upstream"
)

// Orchestrator glues the translation pipeline together for one process. It
// holds only read-only collaborators (spec.md §5: no shared mutable state
// besides the config snapshot and the upstream connection pool).
type Orchestrator struct {
	router   *router.Router
	upstream *upstream.Client
}

// New builds an Orchestrator bound to r (the model router) and up (the
// shared upstream transport).
func New(r *router.Router, up *upstream.Client) *Orchestrator {
	return &Orchestrator{router: r, upstream: up}
}

// HandleUnary runs the non-streaming path: translate, dispatch, translate
// back. It returns either a populated response or a typed *apierror.Error —
// never both.
func (o *Orchestrator) HandleUnary(ctx context.Context, req *schema.MessagesRequest) (*schema.MessagesResponse, *apierror.Error) {
	target, err := o.router.Resolve(req.Model)
	if err != nil {
		return nil, asAPIError(err)
	}

	upstreamReq, xerr := translate.Request(req, target.UpstreamModel)
	if xerr != nil {
		return nil, apierror.New(apierror.KindInvalidRequest, xerr.Error())
	}

	upstreamResp, apiErr := o.upstream.Do(ctx, upstream.Endpoint{BaseURL: target.BaseURL, APIKey: target.APIKey}, upstreamReq)
	if apiErr != nil {
		log.Printf("orchestrator: unary request to %s/%s failed: %s", target.Provider, target.UpstreamModel, apiErr.Message)
		return nil, apiErr
	}

	resp := translate.Response(upstreamResp, req.Model)
	return &resp, nil
}

// HandleStream runs the streaming path: translate, dispatch, and pipe the
// upstream chunk iterator through C5, invoking emit for every batch of
// Anthropic SSE events the FSM produces. emit is called synchronously from
// the same goroutine that reads upstream chunks, matching spec.md §5's
// single-producer/single-consumer model for one request's stream.
//
// If the upstream dispatch itself fails before any chunk is read, HandleStream
// returns a non-nil *apierror.Error for the caller to render as a pre-stream
// JSON error (headers not yet sent). Once streaming has begun, failures are
// folded into the FSM's Fail path and delivered to emit as an in-band error
// event; HandleStream returns nil in that case since the response has
// already started.
func (o *Orchestrator) HandleStream(ctx context.Context, req *schema.MessagesRequest, emit func(streamtranslate.Events)) *apierror.Error {
	target, err := o.router.Resolve(req.Model)
	if err != nil {
		return asAPIError(err)
	}

	upstreamReq, xerr := translate.Request(req, target.UpstreamModel)
	if xerr != nil {
		return apierror.New(apierror.KindInvalidRequest, xerr.Error())
	}

	events, dispatchErr := o.upstream.Stream(ctx, upstream.Endpoint{BaseURL: target.BaseURL, APIKey: target.APIKey}, upstreamReq)
	if dispatchErr != nil {
		apiErr, ok := dispatchErr.(*apierror.Error)
		if !ok {
			apiErr = apierror.New(apierror.KindInternal, dispatchErr.Error())
		}
		log.Printf("orchestrator: stream dispatch to %s/%s failed: %s", target.Provider, target.UpstreamModel, apiErr.Message)
		return apiErr
	}

	fsm := streamtranslate.New(req.Model)

	for ev := range events {
		if ev.Err != nil {
			log.Printf("orchestrator: mid-stream error from %s/%s: %s", target.Provider, target.UpstreamModel, ev.Err.Message)
			emit(fsm.Fail(ev.Err))
			return nil
		}
		emit(fsm.Chunk(ev.Chunk))
	}
	// Upstream closed the channel without a terminal error or finish_reason.
	emit(fsm.End())
	return nil
}

// asAPIError narrows an error returned by a collaborator (router, etc.)
// into the stable *apierror.Error shape every orchestrator return path uses.
func asAPIError(err error) *apierror.Error {
	if apiErr, ok := err.(*apierror.Error); ok {
		return apiErr
	}
	return apierror.New(apierror.KindInternal, err.Error())
}
