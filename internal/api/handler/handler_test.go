package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kmatsuda/textlens/internal/analysis"
	"github.com/kmatsuda/textlens/internal/analysis/mock"
	"github.com/kmatsuda/textlens/internal/api/handler"
	mw "github.com/kmatsuda/textlens/internal/api/middleware"
	"github.com/kmatsuda/textlens/internal/pool"
	"github.com/kmatsuda/textlens/internal/store"
	"github.com/kmatsuda/textlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	tokens   map[string]*models.Token
	order    []string
	usageErr error
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]*models.Token)}
}

func (m *memStore) Ping(_ context.Context) error { return nil }

func (m *memStore) GetToken(_ context.Context, value string) (*models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) IssueToken(_ context.Context, userID int64, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[value]; exists {
		return false, store.ErrDuplicateToken
	}
	reissued := false
	for _, t := range m.tokens {
		if t.UserID == userID && t.IsValid {
			t.IsValid = false
			reissued = true
		}
	}
	m.tokens[value] = &models.Token{
		Value: value, UserID: userID, CreatedAt: time.Now().UTC(), IsValid: true,
	}
	m.order = append(m.order, value)
	return reissued, nil
}

func (m *memStore) DeleteToken(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[value]; !ok {
		return store.ErrNotFound
	}
	delete(m.tokens, value)
	return nil
}

func (m *memStore) RecordUsage(_ context.Context, value string, charDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return m.usageErr
	}
	t, ok := m.tokens[value]
	if !ok || !t.IsValid {
		return store.ErrNotFound
	}
	t.UsageCount++
	t.CharCount += int64(charDelta)
	return nil
}

func (m *memStore) ListTokenStats(_ context.Context) ([]*models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Token, 0, len(m.order))
	for _, v := range m.order {
		if t, ok := m.tokens[v]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func startPool(t *testing.T, analyzer models.Analyzer, timeout time.Duration) *pool.Pool {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := pool.New(analyzer, 2, timeout)
	p.Start(ctx)
	return p
}

func seedToken(t *testing.T, st *memStore, value string, userID int64) models.Identity {
	t.Helper()
	_, err := st.IssueToken(context.Background(), userID, value)
	require.NoError(t, err)
	tok, err := st.GetToken(context.Background(), value)
	require.NoError(t, err)
	return models.Identity{Kind: models.IdentityUser, Token: tok}
}

func doJSON(h http.HandlerFunc, method, target, body string, id *models.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if id != nil {
		req = req.WithContext(mw.SetIdentity(req.Context(), *id))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// --- tokenize ---

func TestTokenize_MissingText(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, mock.New(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"language":"en"}`, &id)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `Missing "text" parameter`, decodeMap(t, w)["error"])
}

func TestTokenize_InvalidJSON(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, mock.New(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":`, &id)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON in request body", decodeMap(t, w)["error"])
}

func TestTokenize_UnknownTaskRejectedBeforeSubmission(t *testing.T) {
	st := newMemStore()
	submitted := false
	analyzer := &mock.Analyzer{
		Name_: "mock",
		ProcessFunc: func(_ context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			submitted = true
			return models.AnalysisResult{}, nil
		},
	}
	h := handler.NewTokenizeHandler(startPool(t, analyzer, time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"hi","tasks":["srl"]}`, &id)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeMap(t, w)["error"], "unknown analysis task")
	assert.False(t, submitted)
}

func TestTokenize_SuccessRecordsUsage(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	text := "gophers build gophers"
	w := doJSON(h, "POST", "/tokenize", `{"text":"`+text+`","tasks":["tok"],"can_duplicate":true}`, &id)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, []any{"gophers", "build", "gophers"}, body["tok"])

	tok, err := st.GetToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tok.UsageCount)
	assert.Equal(t, int64(utf8.RuneCountInString(text)), tok.CharCount)
}

func TestTokenize_DefaultDropsDuplicates(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"go go go stop"}`, &id)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"go", "stop"}, decodeMap(t, w)["tok"])
}

func TestTokenize_StopwordShapes(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"red blue","stopword":"red"}`, &id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"blue"}, decodeMap(t, w)["tok"])

	w = doJSON(h, "POST", "/tokenize", `{"text":"red blue green","stopword":["red","blue"]}`, &id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"green"}, decodeMap(t, w)["tok"])

	w = doJSON(h, "POST", "/tokenize", `{"text":"red","stopword":42}`, &id)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "stopword must be a string or array of strings", decodeMap(t, w)["error"])
}

func TestTokenize_TimeoutIs400(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, mock.NewBlocking(), 50*time.Millisecond), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"slow"}`, &id)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Request timeout: Processing took too long", decodeMap(t, w)["error"])

	// Timeouts do not count as completed analyses.
	tok, err := st.GetToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), tok.UsageCount)
}

func TestTokenize_EngineFailureIs500(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, mock.NewFailing(errors.New("model exploded")), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"boom"}`, &id)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Processing error: model exploded", decodeMap(t, w)["error"])
}

func TestTokenize_AdminSecretIdentityExemptFromUsage(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := models.Identity{Kind: models.IdentityAdmin} // admin secret, no stored row

	w := doJSON(h, "POST", "/tokenize", `{"text":"hello world"}`, &id)

	require.Equal(t, http.StatusOK, w.Code)
	stats, err := st.ListTokenStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestTokenize_UsageStorageFailureIs500(t *testing.T) {
	st := newMemStore()
	st.usageErr = errors.New("disk full")
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"hello"}`, &id)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to record usage", decodeMap(t, w)["error"])
}

func TestTokenize_RevokedMidFlightStillSucceeds(t *testing.T) {
	st := newMemStore()
	st.usageErr = store.ErrNotFound
	h := handler.NewTokenizeHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "POST", "/tokenize", `{"text":"hello"}`, &id)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- root ---

func TestRoot_DocsWithoutText(t *testing.T) {
	st := newMemStore()
	h := handler.NewRootHandler(startPool(t, mock.New(), time.Second), st)

	w := doJSON(h, "GET", "/", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeMap(t, w)
	assert.Contains(t, body, "endpoints")
	assert.Contains(t, body, "parameters")
}

func TestRoot_TextRequiresAuth(t *testing.T) {
	st := newMemStore()
	h := handler.NewRootHandler(startPool(t, mock.New(), time.Second), st)
	id := models.Identity{Kind: models.IdentityAnonymous}

	w := doJSON(h, "GET", "/?text=hello", "", &id)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized: Invalid or missing Bearer token", decodeMap(t, w)["error"])
}

func TestRoot_ProcessesQueryText(t *testing.T) {
	st := newMemStore()
	h := handler.NewRootHandler(startPool(t, analysis.NewEngine(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "GET", "/?text=hello+hello+world&tasks=tok", "", &id)

	require.Equal(t, http.StatusOK, w.Code)
	// Query-driven processing keeps duplicates.
	assert.Equal(t, []any{"hello", "hello", "world"}, decodeMap(t, w)["tok"])
}

func TestRoot_UnknownQueryTask(t *testing.T) {
	st := newMemStore()
	h := handler.NewRootHandler(startPool(t, mock.New(), time.Second), st)
	id := seedToken(t, st, "tok-1", 1)

	w := doJSON(h, "GET", "/?text=hello&tasks=tok,dep", "", &id)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- admin ---

func TestTokenRequest_IssueThenReissue(t *testing.T) {
	st := newMemStore()
	h := handler.NewTokenRequestHandler(st)

	w := doJSON(h, "POST", "/token/request", `{"user_id":7}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeMap(t, w)
	assert.Equal(t, false, first["reissued"])
	assert.Equal(t, "Token issued successfully", first["message"])
	firstValue, _ := first["token"].(string)
	require.NotEmpty(t, firstValue)

	w = doJSON(h, "POST", "/token/request", `{"user_id":7}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeMap(t, w)
	assert.Equal(t, true, second["reissued"])
	assert.NotEqual(t, firstValue, second["token"])

	// The first token is invalidated, not deleted.
	old, err := st.GetToken(context.Background(), firstValue)
	require.NoError(t, err)
	assert.False(t, old.IsValid)
}

func TestTokenRequest_MissingUserID(t *testing.T) {
	h := handler.NewTokenRequestHandler(newMemStore())

	w := doJSON(h, "POST", "/token/request", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `Missing "user_id" parameter`, decodeMap(t, w)["error"])
}

func TestTokenDelete_RemovesRow(t *testing.T) {
	st := newMemStore()
	seedToken(t, st, "tok-1", 1)
	h := handler.NewTokenDeleteHandler(st)

	w := doJSON(h, "POST", "/token/delete", `{"token":"tok-1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Token deleted successfully", decodeMap(t, w)["message"])

	_, err := st.GetToken(context.Background(), "tok-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenDelete_MissingTokenIs404(t *testing.T) {
	h := handler.NewTokenDeleteHandler(newMemStore())

	w := doJSON(h, "POST", "/token/delete", `{"token":"ghost"}`, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Token not found", decodeMap(t, w)["error"])
}

func TestStats_SnapshotIncludesInvalidated(t *testing.T) {
	st := newMemStore()
	seedToken(t, st, "tok-old", 3)
	_, err := st.IssueToken(context.Background(), 3, "tok-new")
	require.NoError(t, err)
	h := handler.NewStatsHandler(st)

	w := doJSON(h, "GET", "/stats", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Stats []models.Token `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Stats, 2)
	assert.Equal(t, "tok-old", body.Stats[0].Value)
	assert.False(t, body.Stats[0].IsValid)
	assert.Equal(t, "tok-new", body.Stats[1].Value)
	assert.True(t, body.Stats[1].IsValid)
}

func TestStats_EmptyIsArray(t *testing.T) {
	h := handler.NewStatsHandler(newMemStore())

	w := doJSON(h, "GET", "/stats", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stats":[]}`, w.Body.String())
}
