package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/lingobot/internal/store"
)

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp doc: %v", err)
	}
	return path
}

func TestIngest_StoresChunksWithEmbeddings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	m := NewManager(st, &fakeEmbedder{}, 100, 0)

	content := strings.Repeat("alpha ", 30) + "\n\n" + strings.Repeat("beta ", 30)
	path := writeTempDoc(t, "notes.txt", content)

	doc, err := m.Ingest(ctx, path, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.Status != store.DocStatusProcessed {
		t.Errorf("status = %q, want processed", doc.Status)
	}
	if doc.FileName != "notes.txt" {
		t.Errorf("file name = %q, want notes.txt", doc.FileName)
	}

	chunks, err := st.ChunksByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("load chunks: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestIngest_DedupesByContent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	m := NewManager(st, &fakeEmbedder{}, 100, 0)

	path := writeTempDoc(t, "same.txt", "identical content")
	if _, err := m.Ingest(ctx, path, "u1"); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	// Same bytes under a different name: deduped by hash.
	other := writeTempDoc(t, "renamed.txt", "identical content")
	doc, err := m.Ingest(ctx, other, "u1")
	if !errors.Is(err, ErrAlreadyIngested) {
		t.Fatalf("second ingest error = %v, want ErrAlreadyIngested", err)
	}
	if doc == nil || doc.FileName != "same.txt" {
		t.Errorf("dedupe should return the original document, got %+v", doc)
	}

	// A different user may upload the same content.
	if _, err := m.Ingest(ctx, other, "u2"); err != nil {
		t.Errorf("other user's ingest failed: %v", err)
	}
}
