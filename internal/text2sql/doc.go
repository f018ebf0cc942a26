// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package text2sql implements the structured pipeline: a schema-aware
// translator that turns a Korean question into one SQLite statement, and an
// executor that runs it against the university dataset.
//
// Execution failures never reach the caller as errors. A bad statement
// yields an empty TabularResult whose Err records why, and the failure is
// logged with the statement that caused it. The only error that does
// propagate is llm.ErrGenerationUnavailable from the translator, since
// there is no sensible query to run without a model.
//
// # Key Types
//
//   - Translator: question to GeneratedQuery via an llm.Model
//   - Executor: GeneratedQuery to TabularResult, one connection per call
//   - Pipeline: Translator followed by Executor
//
// # Usage
//
//	p := text2sql.NewPipeline(
//	    text2sql.NewTranslator(model, "data/db/univ.db", logger),
//	    text2sql.NewExecutor("data/db/univ.db", logger),
//	)
//	q, result, err := p.Run(ctx, "서울 지역 대학의 평균 취업률은?")
package text2sql
