package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Message is one queued inbound message.
type Message struct {
	ID        int64
	UserID    string
	Text      string
	Processed bool
	CreatedAt time.Time
}

// EnqueueMessage appends an inbound message to the user's queue.
func (s *Store) EnqueueMessage(ctx context.Context, userID, text string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, text) VALUES (?, ?)`, userID, text)
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	return nil
}

// CountUnprocessed returns the number of unclaimed messages for a user.
func (s *Store) CountUnprocessed(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ? AND is_processed = 0`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed: %w", err)
	}
	return n, nil
}

// ClaimUnprocessed atomically claims up to limit unprocessed messages for
// a user, oldest first, marking them processed. Two concurrent claims can
// never return the same message: the select and update run in one
// transaction. limit <= 0 means no limit.
func (s *Store) ClaimUnprocessed(ctx context.Context, userID string, limit int) ([]Message, error) {
	var msgs []Message

	err := s.tx(ctx, func(tx *sql.Tx) error {
		query := `SELECT id, user_id, text, created_at FROM messages
			WHERE user_id = ? AND is_processed = 0
			ORDER BY created_at ASC, id ASC`
		args := []any{userID}
		if limit > 0 {
			query += ` LIMIT ?`
			args = append(args, limit)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select unprocessed: %w", err)
		}
		defer rows.Close()

		var ids []any
		for rows.Next() {
			var m Message
			var created int64
			if err := rows.Scan(&m.ID, &m.UserID, &m.Text, &created); err != nil {
				return fmt.Errorf("scan message: %w", err)
			}
			m.CreatedAt = time.Unix(created, 0)
			msgs = append(msgs, m)
			ids = append(ids, m.ID)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		placeholders := "?"
		for range ids[1:] {
			placeholders += ",?"
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET is_processed = 1 WHERE id IN (`+placeholders+`)`, ids...)
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		msgs[i].Processed = true
	}
	return msgs, nil
}
