// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package indextest builds small vector indexes for tests.
package indextest

import (
	"context"
	"testing"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/llm"
)

// Policies is a small policy corpus about national scholarships and dormitories.
var Policies = []index.Passage{
	{Source: "국가장학금.md", Chunk: 0, Content: "국가장학금 신청 절차: 한국장학재단 홈페이지에서 회원가입 후 학기별 신청 기간에 온라인으로 신청하고, 가구원 정보 제공 동의를 완료해야 합니다."},
	{Source: "국가장학금.md", Chunk: 1, Content: "국가장학금 지원 대상은 소득 8구간 이하의 대한민국 국적 대학생이며, 직전 학기 12학점 이상 이수와 성적 기준을 충족해야 합니다."},
	{Source: "기숙사.pdf", Page: 2, Chunk: 0, Content: "기숙사 입주 신청은 매 학기 시작 4주 전에 생활관 홈페이지에서 접수하며, 결핵 검진 결과서를 제출해야 합니다."},
	{Source: "등록금.pdf", Page: 1, Chunk: 0, Content: "등록금 분할 납부는 최대 4회까지 가능하며, 학기 개시일 이전에 신청해야 합니다."},
}

// Build embeds passages with e and writes them as an index in dir.
func Build(t testing.TB, dir string, e llm.Embedder, passages []index.Passage) index.Stats {
	t.Helper()
	ctx := context.Background()

	b, err := index.NewBuilder(ctx, dir, "test-embed")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	for _, p := range passages {
		vec, err := e.Embed(ctx, p.Content)
		if err != nil {
			b.Abort()
			t.Fatalf("embed: %v", err)
		}
		if _, err := b.Add(ctx, p, vec); err != nil {
			b.Abort()
			t.Fatalf("add: %v", err)
		}
	}
	stats, err := b.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return stats
}
