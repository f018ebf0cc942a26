// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/llm/llmtest"
)

// ============================================================================
// INTENT TESTS
// ============================================================================

func TestIntent_String(t *testing.T) {
	tests := []struct {
		in   Intent
		want string
	}{
		{Structured, "structured"},
		{Retrieval, "retrieval"},
		{Conversational, "conversational"},
		{Intent(9), "Intent(9)"},
	}

	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", int(tc.in), got, tc.want)
		}
	}
}

func TestIntent_Rank(t *testing.T) {
	if !(Structured.Rank() < Retrieval.Rank() && Retrieval.Rank() < Conversational.Rank()) {
		t.Errorf("Priority order broken: %v", Priority)
	}
	if Priority[len(Priority)-1] != Conversational {
		t.Error("Conversational must be the last resort")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Intent
		wantErr bool
	}{
		{"structured", Structured, false},
		{"SQL", Structured, false},
		{" rag ", Retrieval, false},
		{"Retrieval", Retrieval, false},
		{"chat", Conversational, false},
		{"lookup", Conversational, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// ============================================================================
// KEYWORD TESTS
// ============================================================================

func TestDefaultKeywords_Disjoint(t *testing.T) {
	kw := DefaultKeywords()
	retrieval := map[string]bool{}
	for _, k := range kw.Retrieval() {
		retrieval[k] = true
	}
	for _, k := range kw.Structured() {
		if retrieval[k] {
			t.Errorf("keyword %q in both sets", k)
		}
	}
}

func TestNewKeywords_Validation(t *testing.T) {
	tests := []struct {
		name       string
		structured KeywordSet
		retrieval  KeywordSet
		wantErr    string
	}{
		{"ok", KeywordSet{"평균"}, KeywordSet{"절차"}, ""},
		{"overlap", KeywordSet{"평균", "기준"}, KeywordSet{"기준"}, "both"},
		{"empty set", nil, KeywordSet{"절차"}, "empty"},
		{"empty keyword", KeywordSet{""}, KeywordSet{"절차"}, "empty keyword"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewKeywords(tc.structured, tc.retrieval)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestKeywords_Decide(t *testing.T) {
	kw := DefaultKeywords()

	tests := []struct {
		query  string
		want   Intent
		wantOK bool
	}{
		{"서울 지역 대학의 평균 취업률은?", Structured, true},
		{"등록금 상위 5개 대학", Structured, true},
		{"국가장학금 신청 절차가 뭐야?", Retrieval, true},
		{"기숙사 입주 조건 알려줘", Retrieval, true},
		{"안녕", Conversational, false},
		{"취업률 기준이 어떻게 돼?", Conversational, false}, // both sets hit
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, ok := kw.Decide(tc.query)
			if ok != tc.wantOK {
				t.Fatalf("Decide(%q) ok = %v, want %v", tc.query, ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("Decide(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestKeywords_CaseSensitive(t *testing.T) {
	kw, err := NewKeywords(KeywordSet{"GPA"}, KeywordSet{"how"})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := kw.Decide("what is the gpa"); ok {
		t.Error("lowercase gpa should not match GPA")
	}
	if got, ok := kw.Decide("average GPA"); !ok || got != Structured {
		t.Errorf("Decide(average GPA) = %v, %v", got, ok)
	}
}

func TestKeywords_ScanReportsKeyword(t *testing.T) {
	h := DefaultKeywords().Scan("국가장학금 신청 절차가 뭐야?")

	if h.SQL {
		t.Errorf("unexpected structured hit on %q", h.SQLKeyword)
	}
	if !h.RAG || h.RAGKeyword != "절차" {
		t.Errorf("RAG hit = %v (%q), want true (절차)", h.RAG, h.RAGKeyword)
	}
}

// ============================================================================
// LABEL PARSER TESTS
// ============================================================================

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Intent
	}{
		{"plain sql", "SQL", Structured},
		{"plain rag", "RAG", Retrieval},
		{"plain chat", "CHAT", Conversational},
		{"lowercase", "rag", Retrieval},
		{"mixed case with prose", "분류: Sql 입니다.", Structured},
		{"both labels prefers structured", "RAG 또는 SQL", Structured},
		{"no label", "잘 모르겠습니다", Conversational},
		{"empty", "", Conversational},
		{"whitespace and punctuation", "\n  [RAG]\n", Retrieval},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseLabel(tc.output); got != tc.want {
				t.Errorf("ParseLabel(%q) = %v, want %v", tc.output, got, tc.want)
			}
		})
	}
}

// ============================================================================
// CLASSIFIER TESTS
// ============================================================================

func TestPrompt_ListsEveryLabel(t *testing.T) {
	p := Prompt("안녕")
	for _, in := range Priority {
		if !strings.Contains(p, in.Label()) {
			t.Errorf("prompt missing label %s", in.Label())
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(p), "분류:") || !strings.Contains(p, "질문: 안녕") {
		t.Errorf("prompt does not embed the query:\n%s", p)
	}
}

func TestClassifier_Classify(t *testing.T) {
	model := &llmtest.Model{Reply: " RAG\n"}
	c := NewClassifier(model, nil)

	if got := c.Classify(context.Background(), "취업률 기준이 어떻게 돼?"); got != Retrieval {
		t.Errorf("Classify() = %v, want retrieval", got)
	}
	if model.Calls() != 1 {
		t.Errorf("model calls = %d, want 1", model.Calls())
	}
}

func TestClassifier_BackendDown(t *testing.T) {
	model := &llmtest.Model{Err: errors.New("connection refused")}
	c := NewClassifier(model, nil)

	if got := c.Classify(context.Background(), "안녕"); got != Conversational {
		t.Errorf("Classify() = %v, want conversational", got)
	}
}

func TestClassifier_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClassifier(&llmtest.Model{Reply: "SQL"}, nil)
	if got := c.Classify(ctx, "안녕"); got != Conversational {
		t.Errorf("Classify() = %v, want conversational", got)
	}
}

var _ llm.Model = (*llmtest.Model)(nil)
