// Package router implements C2, the model router: resolving a caller-facing
// model id to the upstream provider, upstream model id, and credential to
// dispatch to.
//
// Grounded on original_source/src/services/model_translator.py: a lookup
// that returns nothing when the caller's model is not in the configured map.
// It never substitutes a default model — see src/core/config.py's
// PREFERRED_PROVIDER/SMALL_MODEL/BIG_MODEL fallbacks for the bug this
// deliberately does not replicate (spec.md §9).
package router

import (
	"fmt"

	"github.com/howard-nolan/llmproxy/internal/apierror"
	"github.com/howard-nolan/llmproxy/internal/config"
)

// ProviderAnthropicPassthrough is the target-provider selection under which
// the caller model id is forwarded unchanged, bypassing the lookup table.
const ProviderAnthropicPassthrough = "anthropic-passthrough"

// Target is the resolved destination for one request.
type Target struct {
	Provider      string
	UpstreamModel string
	BaseURL       string
	APIKey        string
}

// Router resolves caller-facing model ids against the single statically
// configured target provider (spec.md §2: one target provider per process,
// set by TARGET_LLM_PROVIDER).
type Router struct {
	provider string
	models   map[string]string
	baseURL  string
	apiKey   string
}

// New builds a Router bound to cfg's configured target provider. For
// anthropic-passthrough, a provider entry is still required for the base URL
// and credential, but its models map is never consulted.
func New(cfg *config.Config) (*Router, error) {
	pc, ok := cfg.Providers[cfg.TargetLLM]
	if !ok {
		return nil, fmt.Errorf("router: target provider %q has no provider config", cfg.TargetLLM)
	}
	return &Router{
		provider: cfg.TargetLLM,
		models:   pc.Models,
		baseURL:  pc.BaseURL,
		apiKey:   pc.APIKey,
	}, nil
}

// Resolve maps a caller-supplied model id to a dispatch Target. It returns a
// KindModelUnresolvable *apierror.Error — never a silently substituted
// default model — when the id is not in the configured routing table.
func (r *Router) Resolve(callerModel string) (Target, error) {
	if callerModel == "" {
		return Target{}, apierror.New(apierror.KindInvalidRequest, "model is required")
	}

	if r.provider == ProviderAnthropicPassthrough {
		return Target{
			Provider:      r.provider,
			UpstreamModel: callerModel,
			BaseURL:       r.baseURL,
			APIKey:        r.apiKey,
		}, nil
	}

	upstreamModel, ok := r.models[callerModel]
	if !ok {
		return Target{}, apierror.New(apierror.KindModelUnresolvable,
			fmt.Sprintf("model %q is not configured for provider %q", callerModel, r.provider))
	}
	return Target{
		Provider:      r.provider,
		UpstreamModel: upstreamModel,
		BaseURL:       r.baseURL,
		APIKey:        r.apiKey,
	}, nil
}

// Provider returns the single target provider this Router was built for.
func (r *Router) Provider() string { return r.provider }
