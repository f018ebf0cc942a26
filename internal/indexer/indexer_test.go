// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/llm/llmtest"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

var policyDocs = map[string]string{
	"장학/국가장학금.md": "# 국가장학금\n\n신청 절차: 한국장학재단 홈페이지에서 학기별 신청 기간에 온라인으로 신청합니다.\n\n지원 대상: 소득 8구간 이하 대학생.",
	"기숙사.txt":     "기숙사 입주 신청은 학기 시작 4주 전에 접수합니다. 결핵 검진 결과서를 제출해야 합니다.",
	"통계.csv":      "학교명,취업률\n서울대학교,70.5\n",
	".drafts/초안.txt": "공개되지 않은 초안",
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestLoadDocuments(t *testing.T) {
	dir := writeDocs(t, policyDocs)

	docs, err := LoadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2, "csv and hidden files are skipped")

	assert.Equal(t, "기숙사.txt", docs[0].Source)
	assert.Equal(t, "장학/국가장학금.md", docs[1].Source)
	assert.Equal(t, 0, docs[0].Page)
}

func TestLoadDocuments_StripsBOMAndSkipsBlank(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"bom.txt":   "\ufeff등록금 분할 납부 안내",
		"blank.txt": "  \n\n ",
	})

	docs, err := LoadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "등록금 분할 납부 안내", docs[0].Text)
}

func TestLoadDocuments_Errors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := LoadDocuments(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("not utf-8", func(t *testing.T) {
		dir := writeDocs(t, map[string]string{"cp949.txt": string([]byte{0xb1, 0xb9, 0xb0, 0xa1})})
		_, err := LoadDocuments(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UTF-8")
	})

	t.Run("broken pdf", func(t *testing.T) {
		dir := writeDocs(t, map[string]string{"broken.pdf": "not a pdf"})
		_, err := LoadDocuments(dir)
		assert.Error(t, err)
	})
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.txt": true, "b.MD": true, "c.pdf": true,
		"d.csv": false, "e.docx": false, "noext": false,
	} {
		assert.Equal(t, want, Supported(path), path)
	}
}

// =============================================================================
// SPLITTING
// =============================================================================

func TestSplit(t *testing.T) {
	ix := New(&llmtest.Embedder{}, Options{ChunkSize: 60, ChunkOverlap: 10}, nil)

	text := strings.Repeat("국가장학금은 소득 구간에 따라 차등 지원됩니다. ", 12)
	passages, err := ix.Split([]Document{{Source: "a.txt", Text: text}, {Source: "b.pdf", Page: 3, Text: "짧은 문단"}})
	require.NoError(t, err)
	require.Greater(t, len(passages), 2)

	last := passages[len(passages)-1]
	assert.Equal(t, "b.pdf", last.Source)
	assert.Equal(t, 3, last.Page)
	assert.Equal(t, 0, last.Chunk)

	for i, p := range passages[:len(passages)-1] {
		assert.Equal(t, "a.txt", p.Source)
		assert.Equal(t, i, p.Chunk)
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), 70)
		assert.Equal(t, p.Content, strings.TrimSpace(p.Content))
	}
}

func TestOptionsDefaults(t *testing.T) {
	ix := New(&llmtest.Embedder{}, Options{ChunkSize: 100, ChunkOverlap: 100}, nil)
	opts := ix.Options()
	assert.Equal(t, 100, opts.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, opts.ChunkOverlap)
	assert.Equal(t, defaultWorkers, opts.Workers)
}

// =============================================================================
// BUILD
// =============================================================================

func TestBuild(t *testing.T) {
	docs := writeDocs(t, policyDocs)
	vector := filepath.Join(t.TempDir(), "vector")
	embedder := &llmtest.Embedder{}

	ix := New(embedder, Options{DocsDir: docs, IndexDir: vector, Workers: 2, EmbedModel: "test-embed"}, nil)
	report, err := ix.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Stats.Sources)
	assert.Equal(t, 64, report.Stats.Dimensions)

	idx, err := index.Open(context.Background(), vector)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, "test-embed", idx.Stats().EmbedModel)

	q, _ := embedder.Embed(context.Background(), "기숙사 입주 신청")
	hits, err := idx.Search(context.Background(), q, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "기숙사.txt", hits[0].Source)
}

func TestBuild_EmbedFailureKeepsIndex(t *testing.T) {
	docs := writeDocs(t, policyDocs)
	vector := filepath.Join(t.TempDir(), "vector")

	_, err := New(&llmtest.Embedder{}, Options{DocsDir: docs, IndexDir: vector}, nil).Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(docs, "새문서.txt"), []byte("새 규정"), 0o644))
	_, err = New(&llmtest.Embedder{Err: errors.New("down")}, Options{DocsDir: docs, IndexDir: vector}, nil).Build(context.Background())
	assert.ErrorIs(t, err, llm.ErrGenerationUnavailable)

	idx, err := index.Open(context.Background(), vector)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 2, idx.Stats().Sources, "previous index stays live")
}

func TestBuild_NoDocuments(t *testing.T) {
	docs := writeDocs(t, map[string]string{"data.csv": "a,b\n"})
	_, err := New(&llmtest.Embedder{}, Options{DocsDir: docs, IndexDir: t.TempDir()}, nil).Build(context.Background())
	assert.ErrorIs(t, err, ErrNoDocuments)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatcher_RebuildsOnChange(t *testing.T) {
	docs := writeDocs(t, map[string]string{"기숙사.txt": policyDocs["기숙사.txt"]})
	vector := filepath.Join(t.TempDir(), "vector")
	ix := New(&llmtest.Embedder{}, Options{DocsDir: docs, IndexDir: vector}, nil)

	w, err := NewWatcher(ix, 100*time.Millisecond, nil)
	require.NoError(t, err)

	built := make(chan *Report, 4)
	w.OnBuild = func(r *Report, err error) {
		if err == nil {
			built <- r
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(docs, "등록금.md"), []byte("등록금 분할 납부는 최대 4회까지 가능합니다."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "ignored.csv"), []byte("x"), 0o644))

	select {
	case r := <-built:
		assert.Equal(t, 2, r.Documents)
	case <-time.After(5 * time.Second):
		t.Fatal("index was not rebuilt after a document was added")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	w := &Watcher{debounce: time.Second}
	now := time.Now()

	assert.False(t, w.due(now), "nothing pending")

	w.touch()
	assert.False(t, w.due(time.Now()), "still inside the debounce window")
	assert.True(t, w.due(time.Now().Add(2*time.Second)))
	assert.False(t, w.due(time.Now().Add(3*time.Second)), "cleared after firing")
}
