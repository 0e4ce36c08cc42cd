package docs

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/lingobot/internal/store"
)

// fakeEmbedder maps known texts to fixed vectors so similarity ordering
// is deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSearch_RanksBysimilarity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	doc := store.Document{
		ID: uuid.NewString(), UserID: "u1",
		FileName: "a.txt", FileHash: "h", Status: store.DocStatusProcessed,
	}
	if err := st.InsertDocument(ctx, doc); err != nil {
		t.Fatalf("insert doc: %v", err)
	}
	chunks := []store.DocChunk{
		{ID: uuid.NewString(), DocID: doc.ID, UserID: "u1", Seq: 0, Text: "cats", Embedding: []float32{1, 0, 0}},
		{ID: uuid.NewString(), DocID: doc.ID, UserID: "u1", Seq: 1, Text: "dogs", Embedding: []float32{0.7, 0.7, 0}},
		{ID: uuid.NewString(), DocID: doc.ID, UserID: "u1", Seq: 2, Text: "fish", Embedding: []float32{0, 1, 0}},
	}
	if err := st.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"about cats": {1, 0, 0},
	}}
	m := NewManager(st, embedder, 1000, 0)

	results, err := m.Search(ctx, "u1", "about cats", 2, 0.1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (topK)", len(results))
	}
	if results[0].Text != "cats" {
		t.Errorf("top result = %q, want cats", results[0].Text)
	}
	if results[0].Score <= results[1].Score {
		t.Error("results not sorted by score")
	}
}

func TestSearch_NoEmbedderReturnsNothing(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil, 1000, 0)

	results, err := m.Search(context.Background(), "u1", "anything", 5, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil without an embedder", results)
	}
}
