package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document statuses.
const (
	DocStatusPending   = "pending"
	DocStatusProcessed = "processed"
	DocStatusFailed    = "failed"
)

// ErrDocumentNotFound is returned when a document lookup matches nothing.
var ErrDocumentNotFound = errors.New("document not found")

// Document is an uploaded file tracked per user.
type Document struct {
	ID         string
	UserID     string
	FileName   string
	FileHash   string
	Status     string
	UploadedAt time.Time
}

// DocChunk is one retrievable fragment of an ingested document.
type DocChunk struct {
	ID        string
	DocID     string
	UserID    string
	Seq       int
	Text      string
	Embedding []float32
}

// InsertDocument records a new upload.
func (s *Store) InsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, file_name, file_hash, status)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.FileName, doc.FileHash, doc.Status)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// SetDocumentStatus updates the processing status of a document.
func (s *Store) SetDocumentStatus(ctx context.Context, docID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, status, docID)
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	return nil
}

// DocumentByHash looks up a user's document by content hash (dedupe).
func (s *Store) DocumentByHash(ctx context.Context, userID, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, file_hash, status, uploaded_at
		 FROM documents WHERE user_id = ? AND file_hash = ?`, userID, hash)
	return scanDocument(row)
}

// ListDocuments returns all documents for a user, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, file_name, file_hash, status, uploaded_at
		 FROM documents WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var uploaded int64
		if err := rows.Scan(&d.ID, &d.UserID, &d.FileName, &d.FileHash, &d.Status, &uploaded); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.UploadedAt = time.Unix(uploaded, 0)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// InsertChunks stores the chunks of an ingested document in one transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []DocChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO doc_chunks (id, doc_id, user_id, seq, text, embedding)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert chunk: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			emb, err := json.Marshal(c.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.DocID, c.UserID, c.Seq, c.Text, string(emb)); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.Seq, err)
			}
		}
		return nil
	})
}

// ChunksByUser loads all chunks for a user for similarity scoring.
func (s *Store) ChunksByUser(ctx context.Context, userID string) ([]DocChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, user_id, seq, text, embedding
		 FROM doc_chunks WHERE user_id = ? ORDER BY doc_id, seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DocChunk
	for rows.Next() {
		var c DocChunk
		var emb string
		if err := rows.Scan(&c.ID, &c.DocID, &c.UserID, &c.Seq, &c.Text, &emb); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(emb), &c.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var uploaded int64
	err := row.Scan(&d.ID, &d.UserID, &d.FileName, &d.FileHash, &d.Status, &uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	d.UploadedAt = time.Unix(uploaded, 0)
	return &d, nil
}
