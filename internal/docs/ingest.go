// Package docs ingests uploaded documents into retrievable chunks and
// serves similarity search over them.
package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/lingobot/internal/providers"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

// ErrAlreadyIngested is returned when the same file content was already
// uploaded by the same user.
var ErrAlreadyIngested = errors.New("document already ingested")

// Manager handles the chunk-embed-persist pipeline for uploads.
type Manager struct {
	store    *store.Store
	embedder providers.EmbeddingProvider

	chunkSize    int
	chunkOverlap int
}

// NewManager creates a document manager. embedder may be nil, in which
// case chunks are stored without vectors and retrieval returns nothing.
func NewManager(st *store.Store, embedder providers.EmbeddingProvider, chunkSize, chunkOverlap int) *Manager {
	return &Manager{
		store:        st,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest reads the file at path, deduplicates by content hash, chunks,
// embeds and persists it for userID. Returns the stored document record.
func (m *Manager) Ingest(ctx context.Context, path, userID string) (*store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, err := m.store.DocumentByHash(ctx, userID, hash); err == nil {
		return existing, ErrAlreadyIngested
	} else if !errors.Is(err, store.ErrDocumentNotFound) {
		return nil, err
	}

	doc := store.Document{
		ID:       uuid.NewString(),
		UserID:   userID,
		FileName: filepath.Base(path),
		FileHash: hash,
		Status:   store.DocStatusPending,
	}
	if err := m.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	if err := m.ingestChunks(ctx, doc, string(data)); err != nil {
		if serr := m.store.SetDocumentStatus(ctx, doc.ID, store.DocStatusFailed); serr != nil {
			slog.Error("failed to mark document failed", "doc_id", doc.ID, "error", serr)
		}
		return nil, err
	}

	if err := m.store.SetDocumentStatus(ctx, doc.ID, store.DocStatusProcessed); err != nil {
		return nil, err
	}
	doc.Status = store.DocStatusProcessed

	slog.Info("document ingested", "user_id", userID, "file", doc.FileName, "doc_id", doc.ID)
	return &doc, nil
}

func (m *Manager) ingestChunks(ctx context.Context, doc store.Document, text string) error {
	texts := ChunkText(text, m.chunkSize, m.chunkOverlap)
	if len(texts) == 0 {
		return nil
	}

	var embeddings [][]float32
	if m.embedder != nil {
		var err error
		embeddings, err = m.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
	}

	chunks := make([]store.DocChunk, len(texts))
	for i, t := range texts {
		chunks[i] = store.DocChunk{
			ID:     uuid.NewString(),
			DocID:  doc.ID,
			UserID: doc.UserID,
			Seq:    i,
			Text:   t,
		}
		if i < len(embeddings) {
			chunks[i].Embedding = embeddings[i]
		}
	}
	return m.store.InsertChunks(ctx, chunks)
}

// List returns the user's uploaded documents, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]store.Document, error) {
	return m.store.ListDocuments(ctx, userID)
}
