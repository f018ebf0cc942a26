// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm defines the generation and embedding capabilities the router
// and both pipelines depend on, and their Ollama-backed implementations.
//
// The generation backend is expensive to bring up, so it is shared
// process-wide through a Lazy handle: built at most once on first use,
// reused forever, never torn down. The handle is injected by reference;
// nothing in this package is a package-level singleton.
//
// # Key Types
//
//   - Model: text-in/text-out completion
//   - Embedder: text to embedding vector
//   - OllamaModel / OllamaEmbedder: Ollama implementations
//   - Lazy: once-only construction barrier shared by all callers
//
// # Errors
//
// Every backend failure is reported as ErrGenerationUnavailable (wrapping
// the underlying cause), so callers can test with errors.Is without knowing
// which backend is in use.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(cfg)
//	model := llm.LazyModel(llm.NewLazy(func() (llm.Model, error) {
//	    return llm.NewOllamaModel(client, llm.DefaultModelConfig()), nil
//	}))
//	answer, err := model.Complete(ctx, "안녕")
package llm
