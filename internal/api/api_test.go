package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/sse"
	"github.com/starford/tribuna/internal/testutil"
)

var movedAt = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

// testEnv sets up a temp SQLite DB, fake Datajud, service and router.
func testEnv(t *testing.T, authToken string) (*testutil.FakeFetcher, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*testutil.FakeFetcher, http.Handler) {
	t.Helper()
	f := testutil.NewFakeFetcher()
	svc := caseservice.NewService(testutil.TestDB(t), f,
		caseservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return f, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createCase(t *testing.T, h http.Handler, numero string) CaseDetail {
	t.Helper()
	w := do(t, h, http.MethodPost, "/cases", map[string]any{"numero": numero})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decode[CaseDetail](t, w)
}

func TestResolveTribunal(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/tribunals/resolve?numero=0001234-56.2024.8.26.0100", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[ResolveResponse](t, w)
	if !got.Valid || got.Tribunal.Abbreviation != "TJSP" || got.Tribunal.DisplayName != "TJ de São Paulo" {
		t.Errorf("resolve = %+v", got)
	}

	w = do(t, router, http.MethodGet, "/tribunals/resolve?numero=123", nil)
	got = decode[ResolveResponse](t, w)
	if got.Valid || got.Tribunal.Abbreviation != "N/A" || got.Tribunal.DisplayName != "Formato inválido" {
		t.Errorf("short = %+v", got)
	}

	w = do(t, router, http.MethodGet, "/tribunals/resolve", nil)
	got = decode[ResolveResponse](t, w)
	if got.Tribunal.DisplayName != "Não identificado" {
		t.Errorf("empty = %+v", got)
	}
}

func TestListTribunals(t *testing.T) {
	_, router := testEnv(t, "")
	got := decode[TribunalListResponse](t, do(t, router, http.MethodGet, "/tribunals", nil))
	if len(got.Tribunals) != 89 {
		t.Errorf("tribunals = %d, want 89", len(got.Tribunals))
	}
}

func TestCreateCase(t *testing.T) {
	_, router := testEnv(t, "")
	c := createCase(t, router, "0001234-56.2024.8.26.0100")
	if c.Number != testutil.SampleNumber || c.Tribunal.Abbreviation != "TJSP" {
		t.Errorf("case = %+v", c)
	}

	w := do(t, router, http.MethodGet, "/cases/"+c.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreateCase_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	createCase(t, router, testutil.SampleNumber)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"duplicate", map[string]any{"numero": testutil.SampleNumber}, http.StatusConflict},
		{"missing numero", map[string]any{"title": "x"}, http.StatusBadRequest},
		{"short numero", map[string]any{"numero": "12345"}, http.StatusBadRequest},
		{"bad frequency", map[string]any{"numero": "00099995620248260100", "check_frequency": "monthly"}, http.StatusBadRequest},
		{"bad json", []byte("{"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/cases", tc.body)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestGetCase_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{"/cases/nope", "/cases/nope/movements"} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, w.Code)
		}
	}
	if w := do(t, router, http.MethodPost, "/cases/nope/refresh", nil); w.Code != http.StatusNotFound {
		t.Errorf("refresh = %d, want 404", w.Code)
	}
}

func TestListCases(t *testing.T) {
	_, router := testEnv(t, "")
	createCase(t, router, testutil.SampleNumber)
	createCase(t, router, "00099995620248260100")

	got := decode[CaseListResponse](t, do(t, router, http.MethodGet, "/cases?limit=1", nil))
	if got.Total != 2 || len(got.Cases) != 1 {
		t.Errorf("list = %d/%d", len(got.Cases), got.Total)
	}
}

func TestRefreshAndMarkRead(t *testing.T) {
	f, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)
	f.Set(testutil.SampleNumber, testutil.Payload(testutil.SampleNumber,
		testutil.Mov{Code: 26, Name: "Distribuição", At: movedAt},
		testutil.Mov{Code: 51, Name: "Audiência designada", At: movedAt.Add(24 * time.Hour)}))

	w := do(t, router, http.MethodPost, "/cases/"+c.ID+"/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[RefreshResult](t, w)
	if res.Added != 2 || res.Unread != 2 {
		t.Errorf("refresh = %+v", res)
	}

	feed := decode[MovementsResponse](t, do(t, router, http.MethodGet, "/cases/"+c.ID+"/movements", nil))
	if len(feed.Movements) != 2 || feed.Movements[0].Code != 51 || feed.Unread != 2 {
		t.Errorf("feed = %+v", feed)
	}

	marked := decode[MarkReadResponse](t, do(t, router, http.MethodPost, "/cases/"+c.ID+"/movements/read", nil))
	if marked.Marked != 2 {
		t.Errorf("marked = %d", marked.Marked)
	}
	feed = decode[MovementsResponse](t, do(t, router, http.MethodGet, "/cases/"+c.ID+"/movements", nil))
	if feed.Unread != 0 || !feed.Movements[0].State.IsRead() {
		t.Errorf("after mark read = %+v", feed)
	}
}

func TestEmptyFeedIsArray(t *testing.T) {
	_, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)
	w := do(t, router, http.MethodGet, "/cases/"+c.ID+"/movements", nil)
	if !strings.Contains(w.Body.String(), `"movements":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRefresh_UpstreamFailure(t *testing.T) {
	f, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)
	f.Err = apperr.ErrUpstream
	if w := do(t, router, http.MethodPost, "/cases/"+c.ID+"/refresh", nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestImportPayload(t *testing.T) {
	_, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)

	payload := testutil.Payload(testutil.SampleNumber, testutil.Mov{Code: 26, Name: "Distribuição", At: movedAt})
	w := do(t, router, http.MethodPost, "/cases/"+c.ID+"/import", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[RefreshResult](t, w); res.Added != 1 {
		t.Errorf("added = %d", res.Added)
	}

	other := testutil.Payload("00099995620248260100", testutil.Mov{Code: 1, Name: "x", At: movedAt})
	if w := do(t, router, http.MethodPost, "/cases/"+c.ID+"/import", other); w.Code != http.StatusConflict {
		t.Errorf("mismatched import = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/cases/"+c.ID+"/import", []byte("nope")); w.Code != http.StatusBadRequest {
		t.Errorf("bad payload = %d, want 400", w.Code)
	}
}

func TestUpdateMonitoring(t *testing.T) {
	_, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)

	w := do(t, router, http.MethodPut, "/cases/"+c.ID+"/monitoring", map[string]any{"monitoring_enabled": true, "check_frequency": "hourly"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[CaseDetail](t, w)
	if !got.Monitor.Enabled || got.Monitor.Frequency != "hourly" {
		t.Errorf("monitoring = %+v", got.Monitor)
	}

	if w := do(t, router, http.MethodPut, "/cases/"+c.ID+"/monitoring", map[string]any{"check_frequency": "yearly"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad frequency = %d", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/cases/nope/monitoring", map[string]any{"monitoring_enabled": false}); w.Code != http.StatusNotFound {
		t.Errorf("unknown case = %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	c := createCase(t, router, testutil.SampleNumber)
	payload := testutil.Payload(testutil.SampleNumber,
		testutil.Mov{Code: 26, Name: "Distribuição", At: movedAt},
		testutil.Mov{Code: 51, Name: "Audiência designada", At: movedAt.Add(time.Hour)})
	do(t, router, http.MethodPost, "/cases/"+c.ID+"/import", payload)

	got := decode[SearchResponse](t, do(t, router, http.MethodGet, "/movements/search?q="+url.QueryEscape("Audiência"), nil))
	if len(got.Results) != 1 || got.Results[0].Code != 51 {
		t.Errorf("results = %+v", got.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/movements/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingOrWrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	for _, header := range []string{"", "Bearer wrong", "secret123"} {
		req := httptest.NewRequest(http.MethodGet, "/cases", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q = %d, want 401", header, w.Code)
		}
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	b := sse.NewBroker(10 * time.Millisecond)
	defer b.Close()
	_, router := testEnvFull(t, true, "tok", b)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("SSE with token = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}
