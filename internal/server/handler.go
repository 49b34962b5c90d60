package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/schema"
	"github.com/howard-nolan/llmproxy/internal/streamtranslate"
	"github.com/howard-nolan/llmproxy/internal/translate"
)

// handleHealth responds with a liveness probe that also reports the single
// configured target provider, per spec.md §6.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":              "ok",
		"target_llm_provider": s.cfg.TargetLLM,
	})
}

// handleMessages handles POST /v1/messages: the core protocol-translating
// endpoint, delegating to the orchestrator for everything past request
// decoding (spec.md §6, §4.7).
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req schema.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.New(apierror.KindInvalidRequest, "invalid request body: "+err.Error()))
		return
	}

	if req.Stream {
		s.handleMessagesStream(w, r, &req, start)
		return
	}

	resp, apiErr := s.orch.HandleUnary(r.Context(), &req)
	if apiErr != nil {
		log.Printf("messages model=%s stream=false status=%d duration=%s error=%q",
			req.Model, apiErr.HTTPStatus(), time.Since(start), apiErr.Message)
		writeError(w, apiErr)
		return
	}

	log.Printf("messages model=%s stream=false status=200 duration=%s", req.Model, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMessagesStream(w http.ResponseWriter, r *http.Request, req *schema.MessagesRequest, start time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apierror.New(apierror.KindInternal, "streaming not supported by this response writer"))
		return
	}

	headersSent := false
	var apiErr *apierror.Error

	emit := func(events streamtranslate.Events) {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			headersSent = true
		}
		if err := streamtranslate.WriteEvents(w, events); err != nil {
			log.Printf("messages model=%s stream=true write error: %v", req.Model, err)
			return
		}
		flusher.Flush()
	}

	apiErr = s.orch.HandleStream(r.Context(), req, emit)

	if apiErr != nil {
		// Dispatch failed before any chunk arrived: headers were never
		// sent, so this can still be a normal JSON error response.
		log.Printf("messages model=%s stream=true status=%d duration=%s error=%q",
			req.Model, apiErr.HTTPStatus(), time.Since(start), apiErr.Message)
		writeError(w, apiErr)
		return
	}

	if headersSent {
		_ = streamtranslate.WriteDoneSentinel(w)
		flusher.Flush()
	}
	log.Printf("messages model=%s stream=true status=200 duration=%s", req.Model, time.Since(start))
}

// handleCountTokens handles POST /v1/messages/count_tokens. Availability is
// not guaranteed (spec.md §6): when no tokenizer was loaded at startup, it
// responds 501.
func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotImplemented)
		json.NewEncoder(w).Encode(map[string]string{"error": "token counting is not configured on this server"})
		return
	}

	var req schema.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.New(apierror.KindInvalidRequest, "invalid request body: "+err.Error()))
		return
	}

	// Reuse C3 to get the same upstream-shaped messages the real request
	// would produce. The router (C2) is not consulted: the caller's model id
	// is passed through as the upstream model. max_tokens is irrelevant for
	// counting so a
	// placeholder is used when the caller omits it (count_tokens requests
	// carry only messages/system/tools per spec.md §6).
	if req.MaxTokens == 0 {
		req.MaxTokens = 1
	}
	upstreamReq, err := translate.Request(&req, req.Model)
	if err != nil {
		writeError(w, apierror.New(apierror.KindInvalidRequest, err.Error()))
		return
	}

	count, err := s.tokens.Count(upstreamReq)
	if err != nil {
		writeError(w, apierror.New(apierror.KindInternal, err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"input_tokens": count})
}

func writeError(w http.ResponseWriter, apiErr *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(apiErr.Body())
}
