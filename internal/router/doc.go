// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router dispatches a user query to one of the answer pipelines.
//
// Routing is two-staged: keyword heuristics first, the model classifier
// only when the heuristics are inconclusive:
//
//	structured hit only -> structured (text-to-SQL)
//	retrieval hit only  -> retrieval (RAG)
//	both or neither     -> Strategy (classify, or straight to retrieval)
//
// # Key Types
//
//   - Router: holds the pipelines and the keyword sets
//   - Decision: which intent was picked and why
//   - Result: tagged union returned by Route (StructuredResult,
//     RetrievalResult, ConversationalResult)
//   - Strategy: what to do with ambiguous queries
//
// # Errors
//
// Route never fails on its own for a non-empty query. Errors come only from
// pipelines with no safe degraded value: index.ErrIndexUnavailable and
// llm.ErrGenerationUnavailable. A failed SQL execution is not an error; it
// yields a StructuredResult with zero rows.
//
// # Usage
//
//	r := router.New(router.Deps{
//	    Keywords:   intent.DefaultKeywords(),
//	    Structured: text2sql.NewPipeline(translator, executor),
//	    Retrieval:  rag.NewPipeline(retriever, synthesizer),
//	    Classifier: intent.NewClassifier(model, logger),
//	    Model:      model,
//	}, router.WithLogger(logger))
//
//	res, err := r.Route(ctx, "서울 지역 대학의 평균 취업률은?")
//	switch v := res.(type) {
//	case *router.StructuredResult:
//	    fmt.Println(v.Query, v.RowCount)
//	case *router.RetrievalResult:
//	    fmt.Println(v.Answer)
//	case *router.ConversationalResult:
//	    fmt.Println(v.Answer)
//	}
package router
