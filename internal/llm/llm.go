// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jeranaias/hybridqa/internal/ollama"
)

// ErrGenerationUnavailable is returned when the generation or embedding
// backend cannot be reached or fails to produce output.
var ErrGenerationUnavailable = errors.New("generation model unavailable")

// Model produces a completion for a prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text onto an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Unavailable wraps err so that errors.Is(err, ErrGenerationUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrGenerationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
}

// =============================================================================
// OLLAMA MODEL
// =============================================================================

// DefaultSystemPrompt keeps every answer in Korean and inside the evidence.
const DefaultSystemPrompt = "당신은 한국어로만 답변하는 AI 어시스턴트입니다. " +
	"문서 근거 범위 내에서만 답변하고, 불필요한 영어를 사용하지 마세요."

// ModelConfig configures an OllamaModel.
type ModelConfig struct {
	Model       string
	System      string
	Temperature float64
	NumCtx      int
}

// DefaultModelConfig returns the settings the service was tuned with.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:       ollama.DefaultModel,
		System:      DefaultSystemPrompt,
		Temperature: 0.2,
		NumCtx:      4096,
	}
}

// OllamaModel implements Model over /api/generate.
type OllamaModel struct {
	client *ollama.Client
	cfg    ModelConfig
}

// NewOllamaModel creates a Model backed by client.
func NewOllamaModel(client *ollama.Client, cfg ModelConfig) *OllamaModel {
	return &OllamaModel{client: client, cfg: cfg}
}

// Complete implements Model.
func (m *OllamaModel) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  m.cfg.Model,
		Prompt: prompt,
		System: m.cfg.System,
		Options: &ollama.Options{
			Temperature: m.cfg.Temperature,
			NumCtx:      m.cfg.NumCtx,
		},
	})
	if err != nil {
		return "", Unavailable(err)
	}
	return resp.Response, nil
}

// OllamaChatModel implements Model over /api/chat. Each prompt is sent as a
// single user turn after the configured system message.
type OllamaChatModel struct {
	client *ollama.Client
	cfg    ModelConfig
}

// NewOllamaChatModel creates a chat-backed Model.
func NewOllamaChatModel(client *ollama.Client, cfg ModelConfig) *OllamaChatModel {
	return &OllamaChatModel{client: client, cfg: cfg}
}

// Complete implements Model.
func (m *OllamaChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]ollama.Message, 0, 2)
	if m.cfg.System != "" {
		messages = append(messages, ollama.NewSystemMessage(m.cfg.System))
	}
	messages = append(messages, ollama.NewUserMessage(prompt))

	resp, err := m.client.ChatWithOptions(ctx, m.cfg.Model, messages, &ollama.Options{
		Temperature: m.cfg.Temperature,
		NumCtx:      m.cfg.NumCtx,
	})
	if err != nil {
		return "", Unavailable(err)
	}
	return resp.Message.Content, nil
}

// =============================================================================
// OLLAMA EMBEDDER
// =============================================================================

// OllamaEmbedder implements Embedder over /api/embeddings.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

// NewOllamaEmbedder creates an Embedder; an empty model uses the client default.
func NewOllamaEmbedder(client *ollama.Client, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.GenerateEmbedding(ctx, e.model, text)
	if err != nil {
		return nil, Unavailable(err)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}

// =============================================================================
// LAZY SHARED HANDLE
// =============================================================================

// Lazy constructs a value at most once, on first use, and hands the same
// value (or the same construction error) to every caller afterwards.
// It is safe for concurrent first use.
type Lazy[T any] struct {
	once  sync.Once
	build func() (T, error)
	val   T
	err   error
}

// NewLazy returns a handle that will call build on first Get.
func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// Get returns the constructed value, building it if needed.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.val, l.err = l.build()
	})
	return l.val, l.err
}

// LazyModel adapts a lazy handle to Model.
func LazyModel(l *Lazy[Model]) Model {
	return lazyModel{l}
}

type lazyModel struct{ l *Lazy[Model] }

func (m lazyModel) Complete(ctx context.Context, prompt string) (string, error) {
	model, err := m.l.Get()
	if err != nil {
		return "", Unavailable(err)
	}
	return model.Complete(ctx, prompt)
}

// LazyEmbedder adapts a lazy handle to Embedder.
func LazyEmbedder(l *Lazy[Embedder]) Embedder {
	return lazyEmbedder{l}
}

type lazyEmbedder struct{ l *Lazy[Embedder] }

func (e lazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.l.Get()
	if err != nil {
		return nil, Unavailable(err)
	}
	return emb.Embed(ctx, text)
}

// =============================================================================
// VECTOR MATH
// =============================================================================

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
