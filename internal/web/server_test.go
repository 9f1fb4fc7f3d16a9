package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netn10/learn-romanian/internal/config"
	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/storage"
	"github.com/netn10/learn-romanian/internal/sync"
)

func newTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:            "127.0.0.1:0",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: time.Second,
			DefaultPageSize: 2,
			MaxPageSize:     3,
		},
		Sources: config.SourcesConfig{
			ReposDir:   t.TempDir(),
			Extensions: []string{".txt"},
		},
		Import: config.ImportConfig{SkipDuplicates: true},
	}
	s := NewServer(db, sync.New(db, logger, cfg.Sources), logger, cfg)
	t.Cleanup(func() { s.Close() })
	return s, db
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if got := decode[errorResponse](t, rr).Error; got != msg {
		t.Errorf("Expected error %q, got %q", msg, got)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	got := decode[map[string]string](t, rr)
	if got["status"] != "healthy" || got["database"] != "connected" {
		t.Errorf("Unexpected health body: %v", got)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func TestCardLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/cards", `{"english":"water","romanian":"apă","tags":[" Food ","food"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[domain.Card](t, rr)
	if created.ID == "" || created.Romanian != "apă" || len(created.Tags) != 1 || created.Tags[0] != "food" {
		t.Fatalf("Unexpected card: %+v", created)
	}
	path := "/api/cards/" + created.ID

	rr = do(t, s, http.MethodGet, path, "")
	if rr.Code != http.StatusOK || decode[domain.Card](t, rr).English != "water" {
		t.Errorf("Expected to read the card back, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, http.MethodGet, "/api/cards/"+strings.ToUpper(created.ID), "")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected upper-case ids to resolve, got %d", rr.Code)
	}

	rr = do(t, s, http.MethodPut, path, `{"english":"the water"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decode[domain.Card](t, rr)
	if updated.English != "the water" || updated.Romanian != "apă" || len(updated.Tags) != 1 {
		t.Errorf("Expected a partial update, got %+v", updated)
	}

	t.Run("update errors", func(t *testing.T) {
		expectError(t, do(t, s, http.MethodPut, path, ""), http.StatusBadRequest, "No data provided")
		expectError(t, do(t, s, http.MethodPut, path, `{}`), http.StatusBadRequest, "No valid fields to update")
		expectError(t, do(t, s, http.MethodPut, path, `{"romanian":"   "}`), http.StatusBadRequest, "English and Romanian text are required")
	})

	rr = do(t, s, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK || decode[messageResponse](t, rr).Message != "Card deleted successfully" {
		t.Errorf("Unexpected delete response %d: %s", rr.Code, rr.Body.String())
	}

	expectError(t, do(t, s, http.MethodGet, path, ""), http.StatusNotFound, "Card not found")
	expectError(t, do(t, s, http.MethodDelete, path, ""), http.StatusNotFound, "Card not found")
	expectError(t, do(t, s, http.MethodPut, path, `{"english":"x y"}`), http.StatusNotFound, "Card not found")
}

func TestInvalidCardID(t *testing.T) {
	s, _ := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			expectError(t, do(t, s, method, "/api/cards/not-a-uuid", `{"english":"x"}`), http.StatusBadRequest, "Invalid card ID")
		})
	}
}

func TestCreateCardRejects(t *testing.T) {
	testCases := []struct {
		name string
		body string
		msg  string
	}{
		{name: "missing english", body: `{"romanian":"apă"}`, msg: "English and Romanian text are required"},
		{name: "blank sides", body: `{"english":" ","romanian":" "}`, msg: "English and Romanian text are required"},
		{name: "not json", body: `english=water`, msg: "English and Romanian text are required"},
		{name: "tag too long", body: `{"english":"water","romanian":"apă","tags":["` + strings.Repeat("x", 65) + `"]}`, msg: "Invalid tags[0]: must satisfy max"},
	}

	s, _ := newTestServer(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, do(t, s, http.MethodPost, "/api/cards", tc.body), http.StatusBadRequest, tc.msg)
		})
	}
}

func TestBulkAndParse(t *testing.T) {
	s, _ := newTestServer(t)
	const text = "Food\napă: water\npâine: bread\nnot a pair\n"

	rr := do(t, s, http.MethodPost, "/api/cards/parse", `{"text":"apă: water\nvin / vinul: wine"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	preview := decode[parseResponse](t, rr)
	if preview.Count != 4 || len(preview.Pairs) != 4 || preview.Pairs[2].Romanian != "vin" {
		t.Errorf("Unexpected preview: %+v", preview)
	}

	body, _ := json.Marshal(map[string]any{"text": text, "tags": []string{"Lesson 1"}})
	rr = do(t, s, http.MethodPost, "/api/cards/bulk", string(body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[map[string]any](t, rr)
	if res["message"] != "Successfully added 2 cards" || res["added_count"] != float64(2) || res["total_parsed"] != float64(2) {
		t.Errorf("Unexpected bulk response: %v", res)
	}

	rr = do(t, s, http.MethodPost, "/api/cards/bulk", string(body))
	res = decode[map[string]any](t, rr)
	if res["added_count"] != float64(0) || res["skipped_count"] != float64(2) {
		t.Errorf("Expected duplicates to be skipped, got %v", res)
	}

	rr = do(t, s, http.MethodPost, "/api/cards/bulk", `{"text":"apă: water","skip_duplicates":false}`)
	res = decode[map[string]any](t, rr)
	if res["added_count"] != float64(1) {
		t.Errorf("Expected duplicates to be kept on request, got %v", res)
	}

	rr = do(t, s, http.MethodGet, "/api/tags", "")
	tags := decode[[]domain.TagCount](t, rr)
	if len(tags) != 1 || tags[0].Tag != "lesson 1" || tags[0].Count != 2 {
		t.Errorf("Unexpected tags: %+v", tags)
	}

	t.Run("errors", func(t *testing.T) {
		expectError(t, do(t, s, http.MethodPost, "/api/cards/bulk", `{}`), http.StatusBadRequest, "Bulk text is required")
		expectError(t, do(t, s, http.MethodPost, "/api/cards/bulk", `{"text":"no pairs here"}`), http.StatusBadRequest, "No valid card pairs found in text")
		expectError(t, do(t, s, http.MethodPost, "/api/cards/parse", ``), http.StatusBadRequest, "Bulk text is required")
	})
}

func TestListCards(t *testing.T) {
	s, db := newTestServer(t)
	ctx := context.Background()
	for _, p := range []struct{ ro, en, tag string }{
		{"pâine", "bread", "food"},
		{"apă", "water", "drinks"},
		{"mere", "apples", "food"},
	} {
		if _, err := db.CreateCard(ctx, domain.ParsedPair{Romanian: p.ro, English: p.en}, []string{p.tag}); err != nil {
			t.Fatalf("CreateCard() returned an unexpected error: %v", err)
		}
	}

	testCases := []struct {
		name      string
		query     string
		wantTotal int
		wantSize  int
		want      []string
	}{
		{name: "default page size", query: "order_by=romanian", wantTotal: 3, wantSize: 2, want: []string{"apă", "mere"}},
		{name: "second page", query: "order_by=romanian&page=2", wantTotal: 3, wantSize: 2, want: []string{"pâine"}},
		{name: "page size capped", query: "order_by=english%20desc&page_size=50", wantTotal: 3, wantSize: 3, want: []string{"apă", "pâine", "mere"}},
		{name: "tag param", query: "tag=drinks", wantTotal: 1, wantSize: 2, want: []string{"apă"}},
		{name: "search param", query: "q=APP", wantTotal: 1, wantSize: 2, want: []string{"mere"}},
		{name: "cel filter", query: "filter=" + url.QueryEscape("tag == 'food' && romanian.startsWith('p')"), wantTotal: 1, wantSize: 2, want: []string{"pâine"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s, http.MethodGet, "/api/cards?"+tc.query, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			got := decode[listCardsResponse](t, rr)
			if got.TotalCount != tc.wantTotal || got.PageSize != tc.wantSize {
				t.Errorf("Expected total %d size %d, got %d %d", tc.wantTotal, tc.wantSize, got.TotalCount, got.PageSize)
			}
			if len(got.Cards) != len(tc.want) {
				t.Fatalf("Expected %d cards, got %+v", len(tc.want), got.Cards)
			}
			for i, c := range got.Cards {
				if c.Romanian != tc.want[i] {
					t.Errorf("Card %d: expected %q, got %q", i, tc.want[i], c.Romanian)
				}
			}
		})
	}

	t.Run("rejects", func(t *testing.T) {
		for _, q := range []string{
			"page=0", "page=x", "page_size=-1", "order_by=tags",
			"filter=" + url.QueryEscape("english == 'x'"),
			"filter=" + url.QueryEscape("tag == 'food' && tag == 'drinks'"),
			"tag=food&filter=" + url.QueryEscape("tag == 'drinks'"),
		} {
			rr := do(t, s, http.MethodGet, "/api/cards?"+q, "")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", q, rr.Code)
			}
		}
	})
}

func TestRandomCard(t *testing.T) {
	s, db := newTestServer(t)
	expectError(t, do(t, s, http.MethodGet, "/api/cards/random", ""), http.StatusNotFound, "No cards available")

	if _, err := db.CreateCard(context.Background(), domain.ParsedPair{Romanian: "ceai", English: "tea"}, nil); err != nil {
		t.Fatalf("CreateCard() returned an unexpected error: %v", err)
	}
	rr := do(t, s, http.MethodGet, "/api/cards/random", "")
	if rr.Code != http.StatusOK || decode[domain.Card](t, rr).Romanian != "ceai" {
		t.Errorf("Unexpected random card %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSources(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fructe.txt"), []byte("mere: apples\npere: pears\n"), 0o644); err != nil {
		t.Fatalf("failed to write word list: %v", err)
	}
	body, _ := json.Marshal(map[string]string{"path": dir})

	rr := do(t, s, http.MethodPost, "/api/sources", string(body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	src := decode[domain.Source](t, rr)
	if src.Type != domain.SourceLocal {
		t.Errorf("Expected a local source, got %+v", src)
	}

	expectError(t, do(t, s, http.MethodPost, "/api/sources", string(body)), http.StatusConflict, "Source already exists")
	expectError(t, do(t, s, http.MethodPost, "/api/sources", `{"path":"x","type":"ftp"}`), http.StatusBadRequest, "Invalid type: must satisfy oneof")
	expectError(t, do(t, s, http.MethodPost, "/api/sources", `{}`), http.StatusBadRequest, "Source path is required")

	rr = do(t, s, http.MethodPost, "/api/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	synced := decode[syncResponse](t, rr)
	if len(synced.Reports) != 1 || synced.Reports[0].Added != 2 || synced.Failed != 0 {
		t.Errorf("Unexpected sync response: %+v", synced)
	}
	if len(synced.Sources) != 1 || synced.Sources[0].LastScanned == nil {
		t.Errorf("Expected last_scanned to be set, got %+v", synced.Sources)
	}

	rr = do(t, s, http.MethodGet, "/api/sources", "")
	if got := decode[[]domain.Source](t, rr); len(got) != 1 {
		t.Errorf("Expected one source, got %+v", got)
	}

	idPath := "/api/sources/" + strconv.FormatInt(src.ID, 10)
	expectError(t, do(t, s, http.MethodDelete, "/api/sources/abc", ""), http.StatusBadRequest, "Invalid source ID")
	if rr := do(t, s, http.MethodDelete, idPath, ""); rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	expectError(t, do(t, s, http.MethodDelete, idPath, ""), http.StatusNotFound, "Source not found")
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/cards", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("Unexpected preflight response %d: %v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("Expected no CORS header for an unknown origin, got %v", rr.Header())
	}
}

func TestRecoverAndLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	h := recoverAndLog(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cards", nil))

	expectError(t, rr, http.StatusInternalServerError, "Internal server error")
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected the panic to be logged, got %q", buf.String())
	}
}
