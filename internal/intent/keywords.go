// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"fmt"
	"strings"
)

// ============================================================================
// KEYWORD SETS
// ============================================================================

// KeywordSet is an ordered list of substrings signalling one intent.
// Membership is case-sensitive substring containment; nothing is tokenized,
// so "국가장학금" contains "장학금".
type KeywordSet []string

// Match returns the first keyword contained in query, if any.
func (s KeywordSet) Match(query string) (string, bool) {
	for _, kw := range s {
		if strings.Contains(query, kw) {
			return kw, true
		}
	}
	return "", false
}

// DefaultStructuredKeywords signal numeric or statistical questions about
// the university dataset.
//
// The bare word 장학금 is deliberately absent: it is a substring of 국가장학금,
// which almost always appears in procedural questions. 장학금액 still catches
// per-student scholarship amount questions.
var DefaultStructuredKeywords = KeywordSet{
	"취업률", "평균", "비율", "순위", "등록금", "장학금액", "정원",
	"졸업생", "교원", "통계", "비교", "증가", "감소", "상위", "하위",
}

// DefaultRetrievalKeywords signal explanatory or procedural questions
// answered from policy documents.
var DefaultRetrievalKeywords = KeywordSet{
	"지원", "조건", "기준", "방법", "절차", "서류", "정의",
	"설명", "신청", "대상", "필요", "왜", "무엇", "어떻게",
}

// Keywords pairs the structured and retrieval sets.
type Keywords struct {
	structured KeywordSet
	retrieval  KeywordSet
}

// Hits reports which sets matched a query, and the first matching keyword of each.
type Hits struct {
	SQL        bool
	RAG        bool
	SQLKeyword string
	RAGKeyword string
}

// NewKeywords validates and pairs two keyword sets. The sets must be
// non-empty, contain no empty keyword, and share no keyword.
func NewKeywords(structured, retrieval KeywordSet) (*Keywords, error) {
	if len(structured) == 0 || len(retrieval) == 0 {
		return nil, fmt.Errorf("keyword sets must not be empty")
	}

	seen := make(map[string]bool, len(structured))
	for _, kw := range structured {
		if kw == "" {
			return nil, fmt.Errorf("structured keyword set contains an empty keyword")
		}
		seen[kw] = true
	}
	for _, kw := range retrieval {
		if kw == "" {
			return nil, fmt.Errorf("retrieval keyword set contains an empty keyword")
		}
		if seen[kw] {
			return nil, fmt.Errorf("keyword %q appears in both structured and retrieval sets", kw)
		}
	}

	return &Keywords{
		structured: append(KeywordSet(nil), structured...),
		retrieval:  append(KeywordSet(nil), retrieval...),
	}, nil
}

// DefaultKeywords returns the built-in sets.
func DefaultKeywords() *Keywords {
	kw, err := NewKeywords(DefaultStructuredKeywords, DefaultRetrievalKeywords)
	if err != nil {
		panic(err)
	}
	return kw
}

// Structured returns a copy of the structured set.
func (k *Keywords) Structured() KeywordSet {
	return append(KeywordSet(nil), k.structured...)
}

// Retrieval returns a copy of the retrieval set.
func (k *Keywords) Retrieval() KeywordSet {
	return append(KeywordSet(nil), k.retrieval...)
}

// Scan tests query against both sets independently.
func (k *Keywords) Scan(query string) Hits {
	var h Hits
	h.SQLKeyword, h.SQL = k.structured.Match(query)
	h.RAGKeyword, h.RAG = k.retrieval.Match(query)
	return h
}

// Decide applies the keyword decision table:
//  1. structured hit only: Structured
//  2. retrieval hit only: Retrieval
//  3. both or neither: inconclusive (ok == false)
func (k *Keywords) Decide(query string) (Intent, bool) {
	return k.Scan(query).Decide()
}

// Decide applies the keyword decision table to already computed hits.
func (h Hits) Decide() (Intent, bool) {
	switch {
	case h.SQL && !h.RAG:
		return Structured, true
	case h.RAG && !h.SQL:
		return Retrieval, true
	default:
		return Conversational, false
	}
}
