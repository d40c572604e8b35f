package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/indexer"
	"github.com/chansereyvath/lessonsearch/llm"
	"github.com/chansereyvath/lessonsearch/monitor"
	"github.com/chansereyvath/lessonsearch/search"
	"github.com/chansereyvath/lessonsearch/store"
	"github.com/chansereyvath/lessonsearch/textproc"
)

type fixedEmbedder struct{ vec []float64 }

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return f.vec, nil
}
func (f fixedEmbedder) Name() string  { return "fixed" }
func (f fixedEmbedder) Model() string { return "fixed-embed-1" }

type fixedChatter struct{ reply string }

func (f fixedChatter) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, nil
}
func (f fixedChatter) Name() string { return "fixed-chat" }

func newTestServer(t *testing.T) (http.Handler, *monitor.Collector) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	proc := textproc.NewApproximate()
	metrics := monitor.NewCollector()

	gcfg := gateway.DefaultConfig()
	gcfg.RetryDelay = time.Millisecond
	gw := gateway.New(gcfg, proc,
		[]llm.EmbeddingProvider{fixedEmbedder{vec: []float64{1, 0, 0}}},
		[]llm.ChatProvider{fixedChatter{reply: "The lesson covers photosynthesis."}},
		st, metrics)

	ix := indexer.New(indexer.DefaultConfig(), st, gw, proc, metrics)
	eng := search.NewEngine(st, gw, search.DefaultFusionWeights(), metrics)

	srv := New(Config{Indexer: ix, Engine: eng, Gateway: gw, Metrics: metrics})
	return srv.Handler(), metrics
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec
}

func TestIndexStatusDeleteLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	text := "Photosynthesis converts sunlight into glucose inside the chloroplast of the plant cell."
	var idx IndexResponse
	rec := doJSON(t, h, http.MethodPost, "/documents/les-1/index", `{"text":"`+text+`"}`, &idx)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d: %s", rec.Code, rec.Body.String())
	}
	if idx.Chunks == 0 || idx.DocumentID != "les-1" {
		t.Fatalf("index response = %+v", idx)
	}

	var status StatusResponse
	rec = doJSON(t, h, http.MethodGet, "/documents/les-1/status", "", &status)
	if rec.Code != http.StatusOK || !status.Indexed || status.Chunks != idx.Chunks {
		t.Fatalf("status = %d %+v", rec.Code, status)
	}

	rec = doJSON(t, h, http.MethodDelete, "/documents/les-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/documents/les-1/status", "", &status)
	if rec.Code != http.StatusOK || status.Indexed {
		t.Fatalf("status after delete = %d %+v", rec.Code, status)
	}
}

func TestIndexRejectsEmptyText(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/documents/les-1/index", `{"text":"   "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAskReturnsAnswerWithCitations(t *testing.T) {
	h, _ := newTestServer(t)

	text := "Photosynthesis converts sunlight into glucose inside the chloroplast of the plant cell."
	doJSON(t, h, http.MethodPost, "/documents/les-2/index", `{"text":"`+text+`"}`, nil)

	var ans AskResponse
	rec := doJSON(t, h, http.MethodPost, "/documents/les-2/ask", `{"question":"What does photosynthesis produce?"}`, &ans)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d: %s", rec.Code, rec.Body.String())
	}
	if !ans.Found || ans.Answer == "" || len(ans.Citations) == 0 {
		t.Fatalf("answer = %+v", ans)
	}
	if ans.Language != indexer.LanguageEnglish {
		t.Errorf("language = %q, want english", ans.Language)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/documents/les-1/ask", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVectorEndpointStoresDocumentVector(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/documents/les-3/vector", `{"text":"A summary of the whole photosynthesis lesson."}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vector status = %d: %s", rec.Code, rec.Body.String())
	}

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["success"] != true || out["dimension"].(float64) != 3 {
		t.Fatalf("vector response = %v", out)
	}
}

func TestSearchEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	text := "DNA carries genetics information and every gene sits on a chromosome."
	doJSON(t, h, http.MethodPost, "/documents/bio-1/index", `{"text":"`+text+`"}`, nil)

	var resp SearchResponse
	rec := doJSON(t, h, http.MethodGet, "/search?q=dna+genetics&limit=5", "", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected search results")
	}

	rec = doJSON(t, h, http.MethodGet, "/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/search?q=dna&limit=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestSearchDetectsSubjectAcrossIndexAndQuery(t *testing.T) {
	h, _ := newTestServer(t)

	text := "Cells contain DNA. DNA stores genetic information. Mitochondria produce energy."
	var idx IndexResponse
	rec := doJSON(t, h, http.MethodPost, "/documents/doc1/index", `{"text":"`+text+`"}`, &idx)
	if rec.Code != http.StatusOK || idx.Chunks != 1 {
		t.Fatalf("index = %d %+v, want one chunk", rec.Code, idx)
	}

	var resp SearchResponse
	rec = doJSON(t, h, http.MethodGet, "/search?q=DNA+genetics&subject=biology&limit=5", "", &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected search results")
	}

	got := resp.Results[0]
	found := false
	for _, s := range got.DetectedSubjects {
		if s == "biology" {
			found = true
		}
	}
	if !found {
		t.Errorf("detected subjects = %v, want biology", got.DetectedSubjects)
	}
	if !strings.Contains(got.Excerpt, "DNA stores genetic information") {
		t.Errorf("excerpt = %q, want the matching sentence kept", got.Excerpt)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, metrics := newTestServer(t)
	metrics.Inc(monitor.SearchesServed)

	rec := doJSON(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	var counters map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &counters); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if counters[monitor.SearchesServed] == 0 {
		t.Errorf("metrics = %v, want searches_served counted", counters)
	}
}
