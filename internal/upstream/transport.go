// Package upstream implements the shared HTTP transport that speaks the
// OpenAI Chat Completions wire format to whichever provider C2 resolved
// (OpenAI itself, or Gemini via its OpenAI-compatible endpoint). Per
// SPEC_FULL.md §0, both upstreams share this one transport and one wire
// codec — the old teacher pattern of one bespoke client per provider
// (internal/provider/anthropic.go, google.go) collapses to a single
// generalized client with a per-call base URL and auth header.
//
// Grounded on the teacher's internal/provider/anthropic.go: the same
// translate → marshal → POST → decode flow for the unary path, and the same
// goroutine + bufio.Scanner "data: " line reader for the streaming path,
// generalized from Anthropic's named-event SSE to OpenAI's single-shape
// "data: {json}" chunk stream (terminated by a literal "data: [DONE]" line).
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/schema"
)

// Endpoint identifies where and how to reach one upstream provider.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Client is the shared HTTP transport. A single Client is built once at
// process start and shared across all requests (spec.md §5); its
// *http.Client carries the connection pool.
type Client struct {
	http *http.Client
}

// New builds a Client around httpClient. Callers own httpClient's lifetime
// and timeout configuration.
func New(httpClient *http.Client) *Client {
	return &Client{http: httpClient}
}

func (c *Client) newRequest(ctx context.Context, ep Endpoint, body *schema.ChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}
	url := strings.TrimSuffix(ep.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	return req, nil
}

// Do sends a non-streaming Chat Completions request and returns the decoded
// response. Non-2xx responses and transport failures are translated via
// internal/apierror, never returned as a bare error.
func (c *Client) Do(ctx context.Context, ep Endpoint, body *schema.ChatRequest) (*schema.ChatResponse, *apierror.Error) {
	body.Stream = false

	httpReq, err := c.newRequest(ctx, ep, body)
	if err != nil {
		return nil, apierror.New(apierror.KindInternal, err.Error())
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apierror.FromUpstreamBody(raw)
	}

	var resp schema.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apierror.New(apierror.KindInternal, fmt.Sprintf("decoding upstream response: %v", err))
	}
	return &resp, nil
}

// StreamEvent is one item read off a streaming upstream response: either a
// decoded chunk, or a terminal error (after which no further events arrive).
type StreamEvent struct {
	Chunk *schema.ChatCompletionChunk
	Err   *apierror.Error
}

// Stream sends a streaming Chat Completions request and returns a channel of
// StreamEvents. The caller owns cancellation via ctx: cancelling ctx stops
// the goroutine and releases the upstream connection (spec.md §5).
func (c *Client) Stream(ctx context.Context, ep Endpoint, body *schema.ChatRequest) (<-chan StreamEvent, error) {
	body.Stream = true

	httpReq, err := c.newRequest(ctx, ep, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, apierror.FromUpstreamBody(raw)
	}

	ch := make(chan StreamEvent)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()

		scanner := bufio.NewScanner(httpResp.Body)
		// Upstream chunks can carry large tool-call argument fragments;
		// grow the scanner's buffer past bufio's 64KiB default.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk schema.ChatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				select {
				case ch <- StreamEvent{Err: apierror.New(apierror.KindInternal, fmt.Sprintf("decoding upstream chunk: %v", err))}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case ch <- StreamEvent{Chunk: &chunk}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case ch <- StreamEvent{Err: apierror.FromTransportError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
