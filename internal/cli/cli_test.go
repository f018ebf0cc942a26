// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hybridqa/internal/config"
	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/indexer"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/llm/llmtest"
	"github.com/jeranaias/hybridqa/internal/ollama"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/univdb"
	"github.com/jeranaias/hybridqa/internal/univdb/univdbtest"
	"github.com/jeranaias/hybridqa/internal/util"
)

// =============================================================================
// HARNESS
// =============================================================================

type env struct {
	dir     string
	cfgPath string
	model   *llmtest.Model
}

// newEnv lays out a workspace with a seed CSV, one policy document and a
// config file whose backend URL refuses connections.
func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	seedDir := filepath.Join(dir, "seed")
	docsDir := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(seedDir, 0o755))
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "univ.csv"), univdbtest.CSV(t, univdbtest.Rows), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "국가장학금.md"), []byte(
		"# 국가장학금\n\n국가장학금은 한국장학재단 홈페이지에서 신청합니다. 신청 절차는 회원가입, 서류 제출, 가구원 동의 순입니다.\n"), 0o600))

	cfg := fmt.Sprintf(`[ollama]
url = "http://127.0.0.1:1"
timeout_secs = 2

[data]
db_path = '%s'
vector_dir = '%s'
docs_dir = '%s'
csv_path = '%s'
chatlog_path = '%s'

[log]
level = "error"
`,
		filepath.Join(dir, "db", "univ.db"),
		filepath.Join(dir, "vector"),
		docsDir,
		filepath.Join(seedDir, "univ.csv"),
		filepath.Join(dir, "logs", "chatlog.db"))
	cfgPath := filepath.Join(dir, "hybridqa.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &env{dir: dir, cfgPath: cfgPath, model: scriptedModel()}
}

// scriptedModel answers each prompt kind the way a well-behaved model would.
func scriptedModel() *llmtest.Model {
	return &llmtest.Model{Respond: func(prompt string) string {
		switch {
		case strings.HasSuffix(prompt, "SQLQuery: "):
			return "SQLQuery: SELECT AVG(employment_rate_2024) AS avg_rate FROM university_info WHERE region = '서울'"
		case strings.HasSuffix(prompt, "분류:"):
			return "CHAT"
		case strings.Contains(prompt, "[문서]"):
			return "한국장학재단 홈페이지에서 신청합니다."
		default:
			return "안녕하세요! 무엇을 도와드릴까요?"
		}
	}}
}

type result struct {
	stdout string
	stderr string
	code   int
}

func (e *env) run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	st := &state{
		logOutput: []string{filepath.Join(e.dir, "hybridqa.log")},
		wire: func(a *App) {
			a.Model = e.model
			a.Chat = e.model
			a.Embedder = &llmtest.Embedder{}
		},
	}
	code := run(context.Background(), append([]string{"--config", e.cfgPath}, args...), &stdout, &stderr, st)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func decodeJSON(t *testing.T, out string, data any) *JSONResponse {
	t.Helper()
	// A failing command may print an error envelope after the payload.
	resp := &JSONResponse{Data: data}
	require.NoError(t, json.NewDecoder(strings.NewReader(out)).Decode(resp), out)
	return resp
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestIngestThenAskStructured(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "ingest")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "3 rows loaded")
	assert.Contains(t, r.stdout, "unparseable numeric cells")

	r = e.run(t, "ask", "서울 지역 대학의 평균 취업률은?")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[structured]")
	assert.Contains(t, r.stdout, "avg_rate")
	assert.Contains(t, r.stdout, "1개의 데이터 반환")

	var data AskData
	r = e.run(t, "--json", "ask", "서울 지역 대학의 평균 취업률은?")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	resp := decodeJSON(t, r.stdout, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "structured", data.Mode)
	assert.False(t, data.Escalated)
	require.Len(t, data.Rows, 1)
	assert.InDelta(t, 69.3, data.Rows[0]["avg_rate"], 1e-9)
}

func TestIndexThenAskRetrieval(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "index")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "indexed")

	var data AskData
	r = e.run(t, "--json", "ask", "국가장학금 신청 절차가 뭐야?")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	decodeJSON(t, r.stdout, &data)
	assert.Equal(t, "retrieval", data.Mode)
	assert.Equal(t, "한국장학재단 홈페이지에서 신청합니다.", data.Answer)
	require.NotEmpty(t, data.Sources)
	assert.Equal(t, "국가장학금.md", data.Sources[0].Source)

	r = e.run(t, "ask", "국가장학금 신청 절차가 뭐야?", "--k", "1")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "근거 문서")
	assert.Contains(t, r.stdout, "1. 국가장학금.md")
}

func TestAsk_MissingIndex(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "ask", "국가장학금 신청 절차가 뭐야?")
	assert.Equal(t, ExitNotFoundError, r.code)
	assert.Contains(t, r.stderr, "hybridqa index")
	assert.Zero(t, e.model.Calls(), "no generation without an index")
}

func TestAsk_Conversational(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "ask", "안녕하세요")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "[conversational]")
	assert.Contains(t, r.stdout, "무엇을 도와드릴까요")
	assert.Equal(t, 2, e.model.Calls(), "one classification, one answer")
}

func TestAsk_EmptyQuery(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "ask", "   ")
	assert.Equal(t, ExitUsageError, r.code)
	assert.Zero(t, e.model.Calls())
}

func TestAsk_GenerationUnavailable(t *testing.T) {
	e := newEnv(t)
	e.model = &llmtest.Model{Err: errors.New("connection refused")}

	r := e.run(t, "--json", "ask", "안녕하세요")
	assert.Equal(t, ExitNetworkError, r.code)

	resp := decodeJSON(t, r.stdout, nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
}

func TestClassify(t *testing.T) {
	e := newEnv(t)

	r := e.run(t, "classify", "서울 지역 대학의 평균 취업률은?")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "structured (SQL)")
	assert.Zero(t, e.model.Calls())

	var data ClassifyData
	r = e.run(t, "--json", "classify", "등록금 지원 조건")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	decodeJSON(t, r.stdout, &data)
	assert.True(t, data.Escalated)
	assert.Equal(t, "등록금", data.SQLHit)
	assert.Equal(t, "지원", data.RAGHit)
	assert.Equal(t, "conversational", data.Mode)
	assert.Equal(t, 1, e.model.Calls())
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, ExitSuccess, e.run(t, "ingest").code)
	require.Equal(t, ExitSuccess, e.run(t, "ask", "서울 지역 대학의 평균 취업률은?").code)
	require.Equal(t, ExitSuccess, e.run(t, "ask", "안녕하세요").code)
	require.Equal(t, ExitSuccess, e.run(t, "ask", "--no-log", "안녕하세요").code)

	r := e.run(t, "history")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "structured")
	assert.Contains(t, r.stdout, "conversational")

	r = e.run(t, "history", "--stats")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Regexp(t, `total\s+2\n`, r.stdout)

	var entries []map[string]any
	r = e.run(t, "--json", "history", "--search", "취업률")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	decodeJSON(t, r.stdout, &entries)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["sql"], "AVG")

	id, _ := entries[0]["id"].(string)
	r = e.run(t, "history", id)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "rows:      1")

	r = e.run(t, "history", "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, ExitNotFoundError, r.code)
}

func TestStatus_BackendDown(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, ExitSuccess, e.run(t, "ingest").code)

	r := e.run(t, "status")
	assert.Equal(t, ExitGeneralError, r.code)
	assert.Contains(t, r.stdout, "FAIL  backend")
	assert.Contains(t, r.stdout, "ok    database")
	assert.Contains(t, r.stdout, "FAIL  index")

	var data StatusData
	r = e.run(t, "--json", "status")
	decodeJSON(t, r.stdout, &data)
	assert.False(t, data.OK)
}

// fakeBackend answers the endpoints status touches.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(ollama.ListModelsResponse{Models: []ollama.ModelInfo{
				{Name: ollama.DefaultModel}, {Name: ollama.DefaultEmbedModel + ":latest"},
			}})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{
				Response:      "네",
				Done:          true,
				EvalCount:     20,
				EvalDuration:  2_000_000_000,
				TotalDuration: 2_500_000_000,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus_Generate(t *testing.T) {
	e := newEnv(t)
	srv := fakeBackend(t)
	raw, err := os.ReadFile(e.cfgPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.cfgPath,
		[]byte(strings.Replace(string(raw), "http://127.0.0.1:1", srv.URL, 1)), 0o600))

	require.Equal(t, ExitSuccess, e.run(t, "ingest").code)
	require.Equal(t, ExitSuccess, e.run(t, "index").code)

	r := e.run(t, "status")
	require.Equal(t, ExitSuccess, r.code, r.stdout)
	assert.Contains(t, r.stdout, "ok    backend           "+srv.URL)
	assert.NotContains(t, r.stdout, "generation  ", "no test generation without the flag")

	r = e.run(t, "status", "--generate")
	require.Equal(t, ExitSuccess, r.code, r.stdout)
	assert.Contains(t, r.stdout, "ok    generation")
	assert.Contains(t, r.stdout, "20 tokens, 10.0 tokens/s, 2.5s")

	var data StatusData
	r = e.run(t, "--json", "status", "-g")
	require.Equal(t, ExitSuccess, r.code, r.stdout)
	decodeJSON(t, r.stdout, &data)
	assert.True(t, data.OK)
	require.NotEmpty(t, data.Checks)
	var names []string
	for _, c := range data.Checks {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "generation")
}

func TestConfigInit(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "fresh.toml")

	r := e.run(t, "config", "init", path)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Wrote "+path)

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Ollama.Model, cfg.Ollama.Model)
	assert.Equal(t, config.Default().Data.DBPath, cfg.Data.DBPath)

	r = e.run(t, "config", "init", path)
	assert.Equal(t, ExitUsageError, r.code)
	assert.Contains(t, r.stderr, "--force")

	r = e.run(t, "config", "init", "--force", path)
	assert.Equal(t, ExitSuccess, r.code, r.stderr)
}

func TestConfigShow(t *testing.T) {
	e := newEnv(t)
	dbPath := filepath.Join(e.dir, "db", "univ.db")

	r := e.run(t, "config", "show")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.True(t, strings.HasPrefix(r.stdout, "# hybridqa configuration file"), r.stdout)
	assert.Contains(t, r.stdout, "[ollama]")
	assert.Contains(t, r.stdout, dbPath)

	var data ConfigData
	r = e.run(t, "--json", "config", "show")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	decodeJSON(t, r.stdout, &data)
	require.NotNil(t, data.Config)
	assert.Equal(t, dbPath, data.Config.Data.DBPath)
	assert.Equal(t, "error", data.Config.Log.Level)
}

func TestIndex_NoDocuments(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.Remove(filepath.Join(e.dir, "docs", "국가장학금.md")))

	r := e.run(t, "index")
	assert.Equal(t, ExitNotFoundError, r.code)
	assert.Contains(t, r.stderr, "documents directory")
}

func TestBadConfig(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.cfgPath, []byte("[routing]\nstrategy = \"coinflip\"\n"), 0o600))

	r := e.run(t, "classify", "x")
	assert.Equal(t, ExitConfigError, r.code)
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{&ConfigError{Err: errors.New("x")}, ExitConfigError},
		{&UsageError{Message: "x"}, ExitUsageError},
		{router.ErrEmptyQuery, ExitUsageError},
		{fmt.Errorf("route: %w", router.ErrQueryTooLong), ExitUsageError},
		{llm.Unavailable(errors.New("refused")), ExitNetworkError},
		{ollama.ErrNotRunning, ExitNetworkError},
		{llm.Unavailable(ollama.ErrTimeout), ExitTimeoutError},
		{context.DeadlineExceeded, ExitTimeoutError},
		{index.ErrIndexUnavailable, ExitNotFoundError},
		{indexer.ErrNoDocuments, ExitNotFoundError},
		{univdb.ErrDatabaseMissing, ExitNotFoundError},
		{os.ErrNotExist, ExitNotFoundError},
		{errors.New("boom"), ExitGeneralError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ExitCode(tc.err), "%v", tc.err)
	}
}

func TestWriteTable_AlignsHangul(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"name", "rate"}, []map[string]any{
		{"name": "서울대학교", "rate": 70.5},
		{"name": "KAIST", "rate": nil},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	col := func(line string) int {
		i := strings.Index(line, "|")
		if i < 0 {
			i = strings.Index(line, "+")
		}
		require.GreaterOrEqual(t, i, 0, line)
		return util.StringWidth(line[:i])
	}
	want := col(lines[0])
	for _, l := range lines[1:] {
		assert.Equal(t, want, col(l), l)
	}
	assert.Contains(t, lines[3], "-", "nil renders as a dash")
}

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "250ms", formatDurationShort(250_000_000))
	assert.Equal(t, "1.5s", formatDurationShort(1_500_000_000))
	assert.Equal(t, "2m5s", formatDurationShort(125_000_000_000))
}

func TestHistoryExport(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, ExitSuccess, e.run(t, "ask", "안녕하세요").code)
	require.Equal(t, ExitSuccess, e.run(t, "ask", "반가워요").code)

	out := filepath.Join(e.dir, "reports")
	r := e.run(t, "history", "--export", "md", "--out", out)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "exported 2 entries")

	files, err := filepath.Glob(filepath.Join(out, "*.md"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	md, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(md), "안녕하세요"), strings.Index(string(md), "반가워요"), "oldest first")

	r = e.run(t, "history", "--export", "xml")
	assert.Equal(t, ExitUsageError, r.code)
}

func TestBench(t *testing.T) {
	e := newEnv(t)
	suite := filepath.Join(e.dir, "suite.json")
	require.NoError(t, os.WriteFile(suite, []byte(`[
		{"query": "서울 지역 대학의 평균 취업률은?", "want": "structured"},
		{"query": "안녕하세요", "want": "CHAT"}
	]`), 0o600))

	r := e.run(t, "bench", "--suite", suite, "--save", filepath.Join(e.dir, "bench"))
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "accuracy:  100.0%")
	assert.Contains(t, r.stdout, "saved to ")

	r = e.run(t, "bench", "--suite", filepath.Join(e.dir, "missing.json"))
	assert.Equal(t, ExitUsageError, r.code)
}
