// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hybridqa/internal/config"
	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/llm/llmtest"
	"github.com/jeranaias/hybridqa/internal/rag"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/text2sql"
)

// =============================================================================
// FIXTURES
// =============================================================================

const (
	structuredQuery     = "서울 지역 대학의 평균 취업률은?"
	retrievalQuery      = "국가장학금 신청 절차가 뭐야?"
	conversationalQuery = "안녕하세요"
)

type stubStructured struct {
	table text2sql.TabularResult
	err   error
}

func (s *stubStructured) Run(context.Context, string) (text2sql.GeneratedQuery, text2sql.TabularResult, error) {
	if s.err != nil {
		return "", text2sql.TabularResult{}, s.err
	}
	return "SELECT AVG(employment_rate) FROM university_info WHERE region = '서울'", s.table, nil
}

type stubRetrieval struct {
	mu  sync.Mutex
	ks  []int
	err error
}

func (s *stubRetrieval) Answer(_ context.Context, _ string, k int) (*rag.Answer, error) {
	s.mu.Lock()
	s.ks = append(s.ks, k)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &rag.Answer{
		Text: "국가장학금은 한국장학재단 홈페이지에서 신청합니다.",
		Passages: []rag.Passage{{
			Passage: index.Passage{ID: 1, Source: "국가장학금.md", Chunk: 0, Content: "신청 절차"},
			Score:   0.91,
		}},
	}, nil
}

type stubClassifier struct{ label intent.Intent }

func (s stubClassifier) Classify(context.Context, string) intent.Intent { return s.label }

type stubBackend struct{ err error }

func (s stubBackend) CheckRunning(context.Context) error { return s.err }

type fixture struct {
	structured *stubStructured
	retrieval  *stubRetrieval
	model      *llmtest.Model
	cfg        config.ServerConfig
	opts       []Option
}

func newFixture() *fixture {
	return &fixture{
		structured: &stubStructured{table: text2sql.TabularResult{
			Columns: []string{"avg_rate"},
			Rows:    []text2sql.Row{{"avg_rate": 69.3}},
		}},
		retrieval: &stubRetrieval{},
		model:     &llmtest.Model{Reply: "안녕하세요! 무엇을 도와드릴까요?"},
		cfg:       config.Default().Server,
	}
}

func (f *fixture) server(t *testing.T) *Server {
	t.Helper()
	rt := router.New(router.Deps{
		Structured: f.structured,
		Retrieval:  f.retrieval,
		Classifier: stubClassifier{label: intent.Conversational},
		Model:      f.model,
	}, router.WithK(3))
	s := New(rt, f.cfg, f.opts...)
	t.Cleanup(s.limiter.Stop)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func chat(t *testing.T, h http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ChatRequest{Query: query})
	require.NoError(t, err)
	return do(t, h, http.MethodPost, "/chat", string(body))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_Structured(t *testing.T) {
	h := newFixture().server(t).Handler()

	rec := chat(t, h, structuredQuery)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[StructuredResponse](t, rec)
	assert.Equal(t, "structured", resp.Mode)
	assert.Contains(t, resp.SQL, "SELECT")
	assert.Equal(t, 1, resp.Rows)
	assert.Equal(t, []string{"avg_rate"}, resp.Columns)
	require.Len(t, resp.Data, 1)
	assert.InDelta(t, 69.3, resp.Data[0]["avg_rate"], 1e-9)
	assert.Equal(t, "1개의 데이터 반환", resp.Message)
	assert.Empty(t, resp.Error)
}

func TestChat_StructuredExecutionFailure(t *testing.T) {
	f := newFixture()
	f.structured.table = text2sql.TabularResult{Err: errors.New("no such column: foo")}
	h := f.server(t).Handler()

	rec := chat(t, h, structuredQuery)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StructuredResponse](t, rec)
	assert.Equal(t, 0, resp.Rows)
	assert.Equal(t, "0개의 데이터 반환", resp.Message)
	assert.Contains(t, resp.Error, "no such column")
	assert.NotNil(t, resp.Data, "data should be an empty array, not null")
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestChat_Retrieval(t *testing.T) {
	f := newFixture()
	h := f.server(t).Handler()

	rec := chat(t, h, retrievalQuery)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[RetrievalResponse](t, rec)
	assert.Equal(t, "retrieval", resp.Mode)
	assert.Contains(t, resp.Answer, "국가장학금")
	assert.Equal(t, "문서 기반 답변 생성 완료", resp.Message)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "국가장학금.md", resp.Sources[0].Source)
	assert.InDelta(t, 0.91, resp.Sources[0].Score, 1e-9)
	assert.Equal(t, []int{3}, f.retrieval.ks)
}

func TestChat_RequestK(t *testing.T) {
	f := newFixture()
	h := f.server(t).Handler()

	rec := do(t, h, http.MethodPost, "/chat", fmt.Sprintf(`{"query":%q,"k":5}`, retrievalQuery))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{5}, f.retrieval.ks)
}

func TestChat_InvalidK(t *testing.T) {
	h := newFixture().server(t).Handler()

	for _, k := range []int{-1, MaxK + 1} {
		rec := do(t, h, http.MethodPost, "/chat", fmt.Sprintf(`{"query":"x","k":%d}`, k))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "k=%d", k)
	}
}

func TestChat_Conversational(t *testing.T) {
	f := newFixture()
	h := f.server(t).Handler()

	rec := chat(t, h, conversationalQuery)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ConversationalResponse](t, rec)
	assert.Equal(t, "conversational", resp.Mode)
	assert.Equal(t, "안녕하세요! 무엇을 도와드릴까요?", resp.Answer)
	assert.NotEmpty(t, resp.Message)
}

func TestChat_BadRequests(t *testing.T) {
	f := newFixture()
	f.cfg.MaxBodyBytes = 1 << 20
	h := f.server(t).Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty query", `{"query":""}`, http.StatusBadRequest},
		{"blank query", `{"query":"   \n"}`, http.StatusBadRequest},
		{"missing query", `{}`, http.StatusBadRequest},
		{"malformed json", `{"query":`, http.StatusBadRequest},
		{"too long", fmt.Sprintf(`{"query":%q}`, strings.Repeat("가", router.MaxQueryLength/3+1)), http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/chat", tc.body)
			assert.Equal(t, tc.want, rec.Code)

			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tc.want, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	f := newFixture()
	f.cfg.MaxBodyBytes = 32
	h := f.server(t).Handler()

	rec := chat(t, h, strings.Repeat("a", 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChat_ErrorStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		query string
		want  int
	}{
		{
			name:  "index unavailable",
			setup: func(f *fixture) { f.retrieval.err = fmt.Errorf("open: %w", index.ErrIndexUnavailable) },
			query: retrievalQuery,
			want:  http.StatusServiceUnavailable,
		},
		{
			name:  "generation unavailable",
			setup: func(f *fixture) { f.model.Err = errors.New("connection refused") },
			query: conversationalQuery,
			want:  http.StatusBadGateway,
		},
		{
			name:  "translation failure",
			setup: func(f *fixture) { f.structured.err = llm.Unavailable(errors.New("timeout")) },
			query: structuredQuery,
			want:  http.StatusBadGateway,
		},
		{
			name:  "index built with another embedder",
			setup: func(f *fixture) { f.retrieval.err = fmt.Errorf("search: %w", index.ErrDimensionMismatch) },
			query: retrievalQuery,
			want:  http.StatusServiceUnavailable,
		},
		{
			name:  "unexpected",
			setup: func(f *fixture) { f.retrieval.err = errors.New("boom") },
			query: retrievalQuery,
			want:  http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(f)
			s := f.server(t)

			rec := chat(t, s.Handler(), tc.query)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Equal(t, int64(1), s.Stats().Snapshot().Failed)
		})
	}
}

// blockingModel waits for the caller's deadline, like a backend that never
// answers.
type blockingModel struct{}

func (blockingModel) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestChat_DeadlineIsGatewayTimeout(t *testing.T) {
	f := newFixture()
	f.cfg.RequestTimeoutSecs = 1
	rt := router.New(router.Deps{
		Structured: f.structured,
		Retrieval:  f.retrieval,
		Classifier: stubClassifier{label: intent.Conversational},
		Model:      blockingModel{},
	})
	s := New(rt, f.cfg)
	t.Cleanup(s.limiter.Stop)

	rec := chat(t, s.Handler(), conversationalQuery)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error.Message, "deadline exceeded")
}

func TestChat_DimensionMismatchHint(t *testing.T) {
	f := newFixture()
	f.retrieval.err = fmt.Errorf("search: %w", index.ErrDimensionMismatch)

	rec := chat(t, f.server(t).Handler(), retrievalQuery)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error.Message, "hybridqa index")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(router.ErrEmptyQuery))
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: 1 bytes", router.ErrQueryTooLong)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(index.ErrIndexUnavailable))
	assert.Equal(t, http.StatusBadGateway, statusFor(llm.Unavailable(errors.New("x"))))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(llm.Unavailable(context.DeadlineExceeded)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("search: %w", index.ErrDimensionMismatch)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}

func TestChat_RecordsChatLog(t *testing.T) {
	ctx := context.Background()
	log, err := storage.OpenChatLog(ctx, filepath.Join(t.TempDir(), "chatlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	f := newFixture()
	f.opts = append(f.opts, WithChatLog(log))
	h := f.server(t).Handler()

	require.Equal(t, http.StatusOK, chat(t, h, structuredQuery).Code)
	require.Equal(t, http.StatusOK, chat(t, h, retrievalQuery).Code)
	require.Equal(t, http.StatusBadRequest, chat(t, h, "  ").Code)

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "blank queries are not recorded")

	byMode := map[string]*storage.Entry{}
	for _, e := range entries {
		byMode[e.Mode] = e
	}
	require.Contains(t, byMode, "structured")
	assert.Contains(t, byMode["structured"].SQL, "SELECT")
	assert.Equal(t, 1, byMode["structured"].RowCount)
	require.Contains(t, byMode, "retrieval")
	assert.Contains(t, byMode["retrieval"].Answer, "국가장학금")
}

// =============================================================================
// ROOT / HEALTH / STATS TESTS
// =============================================================================

func TestRoot(t *testing.T) {
	h := newFixture().server(t).Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Banner, decode[RootResponse](t, rec).Message)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		code    int
		status  string
		backSt  string
	}{
		{"not configured", nil, http.StatusOK, "ok", "not_configured"},
		{"backend up", stubBackend{}, http.StatusOK, "ok", "ok"},
		{"backend down", stubBackend{err: errors.New("refused")}, http.StatusServiceUnavailable, "degraded", "unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			if tc.backend != nil {
				f.opts = append(f.opts, WithBackend(tc.backend))
			}
			rec := do(t, f.server(t).Handler(), http.MethodGet, "/health", "")
			assert.Equal(t, tc.code, rec.Code)

			resp := decode[HealthResponse](t, rec)
			assert.Equal(t, tc.status, resp.Status)
			assert.Equal(t, tc.backSt, resp.BackendStatus)
			assert.Equal(t, "classify", resp.Strategy)
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newFixture().server(t)
	h := s.Handler()

	chat(t, h, structuredQuery)
	chat(t, h, retrievalQuery)
	chat(t, h, conversationalQuery)

	rec := do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[StatsSnapshot](t, rec)
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.Structured)
	assert.Equal(t, int64(1), snap.Retrieval)
	assert.Equal(t, int64(1), snap.Conversational)
	assert.Equal(t, int64(1), snap.Escalated)
	assert.Zero(t, snap.Failed)
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestRateLimitMiddleware(t *testing.T) {
	f := newFixture()
	f.cfg.RateLimit = 0.001
	f.cfg.RateBurst = 2
	h := f.server(t).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/", "").Code)

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per client")
	assert.Equal(t, 2, rl.Clients())

	rl.evict(time.Now().Add(time.Minute))
	assert.Zero(t, rl.Clients())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("10.0.0.1"))
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	const inbound = "2b1c9c1e-8a0e-4c5e-9d8b-3f0a1b2c3d4e"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, inbound, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\r\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not a uuid\r\n", seen)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := do(t, newFixture().server(t).Handler(), http.MethodGet, "/", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), mw("b"), mw("c"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5555", "", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5555", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "127.0.0.1:5555", "198.51.100.1, 10.0.0.1", "", "198.51.100.1"},
		{"trusted proxy xri", "10.1.2.3:5555", "", "198.51.100.2", "198.51.100.2"},
		{"invalid xff falls back", "192.168.1.1:5555", "garbage", "", "192.168.1.1"},
		{"ipv6", "[2001:db8::1]:5555", "", "", "2001:db8::1"},
		{"no port", "203.0.113.9", "", "", "203.0.113.9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			assert.Equal(t, tc.want, GetClientIP(req))
		})
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServeAndShutdown(t *testing.T) {
	s := newFixture().server(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestShutdown_NotStarted(t *testing.T) {
	s := newFixture().server(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}
