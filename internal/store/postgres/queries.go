package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/relay/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInsertMessage(ctx context.Context, db executor, text string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO messages (text) VALUES ($1) RETURNING id`, text,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

func queryListMessages(ctx context.Context, db executor) ([]*model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, text, created_at FROM messages ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
