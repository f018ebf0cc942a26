// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llmtest provides deterministic llm.Model and llm.Embedder fakes
// for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/jeranaias/hybridqa/internal/llm"
)

// Model is a scripted llm.Model. Respond, when set, takes precedence over Reply.
type Model struct {
	Reply   string
	Respond func(prompt string) string
	Err     error

	mu      sync.Mutex
	prompts []string
}

// Complete implements llm.Model.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return "", llm.Unavailable(m.Err)
	}
	if err := ctx.Err(); err != nil {
		return "", llm.Unavailable(err)
	}
	if m.Respond != nil {
		return m.Respond(prompt), nil
	}
	return m.Reply, nil
}

// Calls returns how many times Complete was invoked.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received.
func (m *Model) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "".
func (m *Model) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Embedder hashes character bigrams into a fixed number of buckets, so texts
// that share wording land close together.
type Embedder struct {
	Dims int
	Err  error
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, llm.Unavailable(e.Err)
	}
	dims := e.Dims
	if dims <= 0 {
		dims = 64
	}
	vec := make([]float32, dims)
	runes := []rune(text)
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == ' ' || runes[i+1] == ' ' {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+2])))
		vec[h.Sum32()%uint32(dims)]++
	}
	return vec, nil
}
