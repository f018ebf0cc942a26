// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/config"
	"github.com/jeranaias/hybridqa/internal/indexer"
	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/ollama"
	"github.com/jeranaias/hybridqa/internal/rag"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/text2sql"
)

// App holds the dependency graph shared by the commands. Model handles are
// lazy, so commands that never generate text never touch the backend.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Client *ollama.Client

	// Model serves classification, SQL generation and grounded answers.
	Model    llm.Model
	// Chat answers conversational queries over the chat endpoint.
	Chat     llm.Model
	Embedder llm.Embedder
}

// NewApp wires the backend client and the lazy model handles.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	client := ollama.NewClientWithConfig(cfg.OllamaClientConfig())

	modelCfg := llm.ModelConfig{
		Model:       cfg.Ollama.Model,
		System:      llm.DefaultSystemPrompt,
		Temperature: cfg.Ollama.Temperature,
		NumCtx:      cfg.Ollama.NumCtx,
	}
	model := llm.NewLazy(func() (llm.Model, error) {
		if modelCfg.Model == "" {
			return nil, errors.New("no generation model configured")
		}
		logger.Debug("generation model ready", zap.String("model", modelCfg.Model))
		return llm.NewOllamaModel(client, modelCfg), nil
	})
	chat := llm.NewLazy(func() (llm.Model, error) {
		if modelCfg.Model == "" {
			return nil, errors.New("no generation model configured")
		}
		return llm.NewOllamaChatModel(client, modelCfg), nil
	})
	embedder := llm.NewLazy(func() (llm.Embedder, error) {
		if cfg.Ollama.EmbedModel == "" {
			return nil, errors.New("no embedding model configured")
		}
		return llm.NewOllamaEmbedder(client, cfg.Ollama.EmbedModel), nil
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Model:    llm.LazyModel(model),
		Chat:     llm.LazyModel(chat),
		Embedder: llm.LazyEmbedder(embedder),
	}
}

// Router assembles both pipelines and the classifier behind a router.
func (a *App) Router() (*router.Router, error) {
	cfg := a.Config

	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}
	keywords, err := cfg.Keywords()
	if err != nil {
		return nil, err
	}

	translator := text2sql.NewTranslator(a.Model, cfg.Data.DBPath, a.Logger,
		text2sql.WithTopK(cfg.Retrieval.SQLTopK),
		text2sql.WithSampleRows(cfg.Retrieval.SampleRows))
	structured := text2sql.NewPipeline(translator, text2sql.NewExecutor(cfg.Data.DBPath, a.Logger))

	retriever := rag.NewRetriever(cfg.Data.VectorDir, a.Embedder, a.Logger,
		rag.WithDefaultK(cfg.Retrieval.K),
		rag.WithEmbedModel(cfg.Ollama.EmbedModel))
	retrieval := rag.NewPipeline(retriever, rag.NewSynthesizer(a.Model, a.Logger))

	return router.New(router.Deps{
		Keywords:   keywords,
		Structured: structured,
		Retrieval:  retrieval,
		Classifier: intent.NewClassifier(a.Model, a.Logger),
		Model:      a.Chat,
	},
		router.WithStrategy(strategy),
		router.WithK(cfg.Retrieval.K),
		router.WithLogger(a.Logger),
	), nil
}

// Indexer returns an indexer over the configured documents directory.
func (a *App) Indexer() *indexer.Indexer {
	cfg := a.Config
	return indexer.New(a.Embedder, indexer.Options{
		DocsDir:      cfg.Data.DocsDir,
		IndexDir:     cfg.Data.VectorDir,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		Workers:      cfg.Retrieval.Workers,
		EmbedModel:   cfg.Ollama.EmbedModel,
	}, a.Logger)
}

// ChatLog opens the request log, or returns nil when logging is disabled.
func (a *App) ChatLog(ctx context.Context) (*storage.ChatLog, error) {
	if a.Config.Data.ChatLogPath == "" {
		return nil, nil
	}
	l, err := storage.OpenChatLog(ctx, a.Config.Data.ChatLogPath)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	return l, nil
}
