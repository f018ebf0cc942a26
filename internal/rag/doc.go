// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rag implements the retrieval pipeline: a Retriever that pulls the
// top-k passages for a query from the persisted index, and a Synthesizer
// that answers in Korean strictly from those passages.
//
// Both failure modes propagate: index.ErrIndexUnavailable when there is no
// index to search, llm.ErrGenerationUnavailable when the embedding or
// generation backend is down. Neither has a safe default answer.
//
// # Usage
//
//	p := rag.NewPipeline(
//	    rag.NewRetriever("data/vector", embedder, logger),
//	    rag.NewSynthesizer(model, logger),
//	)
//	ans, err := p.Answer(ctx, "국가장학금 신청 절차가 뭐야?", 3)
package rag
