// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// Only the non-streaming endpoints are used: answers are returned to the
// caller as a whole, so there is nothing to gain from token streaming.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - GenerateRequest / GenerateResponse: single-prompt completion
//   - ChatRequest / ChatResponse: message-based completion
//   - ClientError: typed error with an ErrorType for handling
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://127.0.0.1:11434",
//	    DefaultModel: "Meta-Llama-3-Ko-Instruct-8B",
//	})
//	resp, err := client.Generate(ctx, &ollama.GenerateRequest{Prompt: "안녕"})
//	if ollama.IsNotRunning(err) {
//	    // backend down
//	}
//
// Embeddings:
//
//	vec, err := client.GenerateEmbedding(ctx, "", "국가장학금 신청 절차")
package ollama
