// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package intent decides which pipeline a query belongs to.
//
// Two stages share one Intent enum and one canonical Priority order:
// a keyword heuristic that only answers when exactly one keyword set hits,
// and a model-based Classifier whose free-text output is parsed against the
// same Priority order. Changing Priority changes both stages together.
//
// # Key Types
//
//   - Intent: Structured, Retrieval or Conversational
//   - KeywordSet / Keywords: the two disjoint substring sets
//   - Classifier: escalation stage backed by an llm.Model
//
// # Usage
//
//	kw := intent.DefaultKeywords()
//	if in, ok := kw.Decide(query); ok {
//	    // keyword stage was conclusive
//	}
//	in := intent.NewClassifier(model, logger).Classify(ctx, query)
package intent
