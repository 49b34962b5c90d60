// Package main is the entry point for the llmproxy gateway.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/howard-nolan/llmproxy/internal/config"
	"github.com/howard-nolan/llmproxy/internal/orchestrator"
	"github.com/howard-nolan/llmproxy/internal/router"
	"github.com/howard-nolan/llmproxy/internal/server"
	"github.com/howard-nolan/llmproxy/internal/tokencount"
	"github.com/howard-nolan/llmproxy/internal/upstream"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	r, err := router.New(cfg)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	up := upstream.New(http.DefaultClient)
	orch := orchestrator.New(r, up)

	// Token counting is best-effort: a tokenizer file is only wired up when
	// the operator points at one, and its absence must not stop the proxy
	// from serving /v1/messages (spec.md §6).
	var counter *tokencount.Counter
	if cfg.TokenizerPath != "" {
		counter, err = tokencount.Load(cfg.TokenizerPath)
		if err != nil {
			log.Printf("count_tokens disabled: failed to load tokenizer %q: %v", cfg.TokenizerPath, err)
		} else {
			defer counter.Close()
		}
	}

	srv := server.New(cfg, orch, counter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("llmproxy listening on :%d, target_llm_provider=%s", cfg.Server.Port, cfg.TargetLLM)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
