package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/handler"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/testutil"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, maxSessions int) http.Handler {
	t.Helper()
	pool := workerpool.New(&workerpool.Config{Name: "test", MaxWorkers: 4, QueueSize: 64, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(time.Second) })

	mgr := service.NewSessionManager(&service.SessionManagerConfig{
		Session:     service.SessionConfig{DebounceWindow: time.Millisecond, FetchTimeout: time.Second, PageSize: 3},
		MaxSessions: maxSessions,
	}, client.NewMemorySource(testutil.SampleEntries()), pool,
		store.DefaultFallbackTable(), store.NewOptionCache(time.Minute), metrics.NewNop(), zap.NewNop())
	t.Cleanup(mgr.CloseAll)

	r := mux.NewRouter()
	handler.NewSessionHandler(&handler.Config{WaitTimeout: 2 * time.Second}, mgr, zap.NewNop()).
		Register(r.PathPrefix("/v1").Subrouter())
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, "/v1/sessions/"+snap.SessionID, w.Header().Get("Location"))
	return snap.SessionID
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) model.ResultPage {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page model.ResultPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	return page
}

func ids(page model.ResultPage) []string {
	out := make([]string, len(page.Items))
	for i, e := range page.Items {
		out[i] = e.ID
	}
	return out
}

func TestSessionHandler_FilterSortPage(t *testing.T) {
	h := newRouter(t, 0)
	id := createSession(t, h)
	base := "/v1/sessions/" + id

	w := do(t, h, http.MethodPut, base+"/filters/manufacturer", `{"value":"BMW"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decodePage(t, do(t, h, http.MethodGet, base+"/page?wait=true", ""))
	assert.Equal(t, []string{"4", "3", "2"}, ids(page))
	assert.Equal(t, 4, page.TotalCount)

	w = do(t, h, http.MethodPut, base+"/sort", `{"key":"price","direction":"asc"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decodePage(t, do(t, h, http.MethodGet, base+"/page", ""))
	assert.Equal(t, []string{"3", "1", "2"}, ids(page))

	page = decodePage(t, do(t, h, http.MethodPut, base+"/page", `{"page_index":1}`))
	assert.Equal(t, []string{"4"}, ids(page))
	assert.Equal(t, 1, page.PageIndex)

	page = decodePage(t, do(t, h, http.MethodGet, base+"/page?index=5", ""))
	assert.Empty(t, page.Items)

	w = do(t, h, http.MethodDelete, base+"/filters/manufacturer", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decodePage(t, do(t, h, http.MethodGet, base+"/page?wait=true", ""))
	assert.Equal(t, 8, page.TotalCount)
}

func TestSessionHandler_Options(t *testing.T) {
	h := newRouter(t, 0)
	base := "/v1/sessions/" + createSession(t, h)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/filters/manufacturer", `{"value":"Audi"}`).Code)

	w := do(t, h, http.MethodGet, base+"/options/model?wait=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var opts model.RenderedOptions
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opts))
	assert.Equal(t, model.DimensionModel, opts.Dimension)
	assert.False(t, opts.Strict)
	require.NotEmpty(t, opts.Options)
	assert.Equal(t, model.AnyToken, opts.Options[0].Value)

	values := make([]string, 0, len(opts.Options))
	for _, o := range opts.Options[1:] {
		values = append(values, o.Value)
	}
	assert.Equal(t, []string{"A4", "Q5"}, values)
}

func TestSessionHandler_Errors(t *testing.T) {
	h := newRouter(t, 0)
	base := "/v1/sessions/" + createSession(t, h)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown session", http.MethodGet, "/v1/sessions/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown dimension", http.MethodPut, base + "/filters/wheels", `{"value":"4"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"descendant before ancestor", http.MethodPut, base + "/filters/model", `{"value":"A4"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed range", http.MethodPut, base + "/filters/year_range", `{"value":"2015"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed body", http.MethodPut, base + "/sort", `{"key":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown sort key", http.MethodPut, base + "/sort", `{"key":"colour"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing page index", http.MethodPut, base + "/page", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative page index", http.MethodPut, base + "/page", `{"page_index":-1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"range dimension has no options", http.MethodGet, base + "/options/price_range", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestSessionHandler_ETag(t *testing.T) {
	h := newRouter(t, 0)
	target := "/v1/sessions/" + createSession(t, h) + "?wait=true"

	first := do(t, h, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestSessionHandler_Delete(t *testing.T) {
	h := newRouter(t, 0)
	base := "/v1/sessions/" + createSession(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, base, "").Code)
}

func TestSessionHandler_SessionLimit(t *testing.T) {
	h := newRouter(t, 1)
	createSession(t, h)

	w := do(t, h, http.MethodPost, "/v1/sessions", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
