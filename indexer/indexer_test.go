package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chansereyvath/lessonsearch/gateway"
	"github.com/chansereyvath/lessonsearch/llm"
	"github.com/chansereyvath/lessonsearch/store"
	"github.com/chansereyvath/lessonsearch/textproc"
)

// vecEmbedder returns per-text vectors with a default, failing for texts
// containing failMarker.
type vecEmbedder struct {
	mu         sync.Mutex
	vecs       map[string][]float64
	def        []float64
	failMarker string
	calls      int
}

func (m *vecEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failMarker != "" && strings.Contains(text, m.failMarker) {
		return nil, errors.New("provider rejected text")
	}
	if v, ok := m.vecs[text]; ok {
		return v, nil
	}
	return m.def, nil
}

func (m *vecEmbedder) Name() string  { return "mock" }
func (m *vecEmbedder) Model() string { return "mock-embed-1" }

type scriptedChatter struct {
	reply string
	fail  bool
	calls int
}

func (m *scriptedChatter) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("chat down")
	}
	return m.reply, nil
}

func (m *scriptedChatter) Name() string { return "mock-chat" }

func newTestIndexer(t *testing.T, cfg Config, emb *vecEmbedder, chat llm.ChatProvider) (*Indexer, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	proc := textproc.NewApproximate()
	gcfg := gateway.DefaultConfig()
	gcfg.RetryDelay = time.Millisecond
	gcfg.MaxTokens = cfg.MaxTokens
	gcfg.OverlapTokens = cfg.OverlapTokens

	var chatters []llm.ChatProvider
	if chat != nil {
		chatters = []llm.ChatProvider{chat}
	}
	gw := gateway.New(gcfg, proc, []llm.EmbeddingProvider{emb}, chatters, nil, nil)

	return New(cfg, st, gw, proc, nil), st
}

func TestIndexDocument_SingleChunk(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0, 0}}
	ix, st := newTestIndexer(t, DefaultConfig(), emb, nil)
	ctx := context.Background()

	count, err := ix.IndexDocument(ctx, "doc1",
		"Cells contain DNA. DNA stores genetic information. Mitochondria produce energy.")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if count != 1 {
		t.Errorf("chunk count = %d, want 1", count)
	}

	recs, err := st.ChunksByDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Index != 0 {
		t.Errorf("unexpected stored chunks: %+v", recs)
	}
	if len(recs[0].Embedding) != 3 {
		t.Errorf("embedding not persisted: %v", recs[0].Embedding)
	}
}

func TestIndexDocument_EmptyInput(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1}}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, nil)

	if _, err := ix.IndexDocument(context.Background(), "doc1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("provider called %d times for empty input", emb.calls)
	}
}

func TestIndexDocument_ReindexReplacesChunks(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	cfg := Config{MaxTokens: 20, OverlapTokens: 0}
	ix, st := newTestIndexer(t, cfg, emb, nil)
	ctx := context.Background()

	long := strings.Repeat("first version of the lesson transcript ", 10)
	if _, err := ix.IndexDocument(ctx, "doc1", long); err != nil {
		t.Fatal(err)
	}
	firstCount, _ := st.ChunkCount(ctx, "doc1")
	if firstCount < 2 {
		t.Fatalf("expected multiple chunks, got %d", firstCount)
	}

	count, err := ix.IndexDocument(ctx, "doc1", "second much shorter version of the lesson")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("re-index count = %d, want 1", count)
	}

	recs, err := st.ChunksByDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly the new chunk set, got %d chunks", len(recs))
	}
	for i, r := range recs {
		if r.Index != i {
			t.Errorf("chunk index %d at position %d, want contiguous from 0", r.Index, i)
		}
	}
}

func TestIndexDocument_SkipsFailedEmbeddings(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}, failMarker: "FAILME"}
	cfg := Config{MaxTokens: 20, OverlapTokens: 0}
	ix, st := newTestIndexer(t, cfg, emb, nil)
	ctx := context.Background()

	// two 80-rune windows; the second contains the marker
	text := strings.Repeat("x", 80) + "FAILME " + strings.Repeat("y", 73)
	count, err := ix.IndexDocument(ctx, "doc1", text)
	if err != nil {
		t.Fatalf("partial failure must not fail the operation: %v", err)
	}
	if count != 1 {
		t.Errorf("inserted count = %d, want 1 (failed chunk skipped)", count)
	}

	stored, _ := st.ChunkCount(ctx, "doc1")
	if stored != 1 {
		t.Errorf("stored chunks = %d, want 1", stored)
	}
}

func TestRetrieveTopK_RanksByCosine(t *testing.T) {
	query := "which chunk matches best?"
	emb := &vecEmbedder{
		def:  []float64{0, 0, 1},
		vecs: map[string][]float64{query: {1, 0, 0}},
	}
	ix, st := newTestIndexer(t, DefaultConfig(), emb, nil)
	ctx := context.Background()

	chunks := []store.Chunk{
		{DocumentID: "doc1", Index: 0, Text: "orthogonal chunk text", TokenCount: 5, Embedding: []float64{0, 1, 0}},
		{DocumentID: "doc1", Index: 1, Text: "exact match chunk text", TokenCount: 5, Embedding: []float64{1, 0, 0}},
		{DocumentID: "doc1", Index: 2, Text: "partial match chunk text", TokenCount: 5, Embedding: []float64{1, 1, 0}},
	}
	if err := st.ReplaceChunks(ctx, "doc1", chunks); err != nil {
		t.Fatal(err)
	}

	recs, err := ix.RetrieveTopK(ctx, "doc1", query, 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d results, want 2", len(recs))
	}
	if recs[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", recs[0].Index)
	}
	if recs[1].Index != 2 {
		t.Errorf("second match index = %d, want 2", recs[1].Index)
	}
	if recs[0].Similarity < recs[1].Similarity {
		t.Error("results not sorted by descending similarity")
	}
}

func TestRetrieveTopK_UnembeddableQuery(t *testing.T) {
	// provider returns an empty vector, so the gateway yields nil
	emb := &vecEmbedder{}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, nil)

	recs, err := ix.RetrieveTopK(context.Background(), "doc1", "some query text here", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty result for unembeddable query, got %d", len(recs))
	}
}

func TestAnswerQuestion_StripsChunkMarkers(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	chat := &scriptedChatter{reply: "DNA stores genetic information [Chunk 0] in cells [ chunk 1 ]."}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, chat)
	ctx := context.Background()

	if _, err := ix.IndexDocument(ctx, "doc1",
		"Cells contain DNA. DNA stores genetic information."); err != nil {
		t.Fatal(err)
	}

	ans, err := ix.AnswerQuestion(ctx, "doc1", "what stores genetic information?", 8)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !ans.Found {
		t.Fatal("expected Found=true")
	}
	if strings.Contains(strings.ToLower(ans.Answer), "[chunk") ||
		strings.Contains(ans.Answer, "[ chunk") {
		t.Errorf("chunk markers not stripped: %q", ans.Answer)
	}
	if len(ans.Citations) == 0 {
		t.Error("expected citations")
	}
	if ans.Language != LanguageEnglish {
		t.Errorf("language = %q, want english", ans.Language)
	}
}

func TestAnswerQuestion_NoChunks(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	chat := &scriptedChatter{reply: "should not be called"}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, chat)

	ans, err := ix.AnswerQuestion(context.Background(), "missing-doc", "what is this lesson about?", 8)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Found {
		t.Error("expected Found=false for unindexed document")
	}
	if !strings.Contains(ans.Answer, "not sure") {
		t.Errorf("expected safe default answer, got %q", ans.Answer)
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times with no context", chat.calls)
	}
}

func TestAnswerQuestion_KhmerContextSelectsKhmer(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	chat := &scriptedChatter{reply: "កោសិកាមានDNA"}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, chat)
	ctx := context.Background()

	if _, err := ix.IndexDocument(ctx, "doc1",
		"កោសិកាទាំងអស់មាន DNA នៅក្នុងខ្លួន។"); err != nil {
		t.Fatal(err)
	}

	// Latin question over Khmer context still answers in Khmer
	ans, err := ix.AnswerQuestion(ctx, "doc1", "what do cells contain?", 8)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Language != LanguageKhmer {
		t.Errorf("language = %q, want khmer", ans.Language)
	}
}

func TestAnswerQuestion_KhmerQuestionOverLatinContext(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	chat := &scriptedChatter{reply: "ok"}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, chat)
	ctx := context.Background()

	if _, err := ix.IndexDocument(ctx, "doc1",
		"Cells contain DNA. DNA stores genetic information."); err != nil {
		t.Fatal(err)
	}

	ans, err := ix.AnswerQuestion(ctx, "doc1", "តើកោសិកាមានអ្វីខ្លះ?", 8)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Language != LanguageKhmer {
		t.Errorf("language = %q, want khmer (question script decides)", ans.Language)
	}
}

func TestGetIndexStatus(t *testing.T) {
	emb := &vecEmbedder{def: []float64{1, 0}}
	ix, _ := newTestIndexer(t, DefaultConfig(), emb, nil)
	ctx := context.Background()

	if _, err := ix.IndexDocument(ctx, "doc1",
		"Cells contain DNA. DNA stores genetic information."); err != nil {
		t.Fatal(err)
	}

	count, err := ix.GetIndexStatus(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("status count = %d, want 1", count)
	}

	if err := ix.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	count, err = ix.GetIndexStatus(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("status after delete = %d, want 0", count)
	}
}
