package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a Store backed by the sessions table.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// Get returns the state for a chat or ErrNotFound.
func (p *postgresStore) Get(ctx context.Context, chatID int64) (State, error) {
	var label string
	err := p.db.GetContext(ctx, &label,
		`SELECT state FROM sessions WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select session: %w", err)
	}
	return State(label), nil
}

// Set upserts the state for a chat.
func (p *postgresStore) Set(ctx context.Context, chatID int64, st State) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO sessions (chat_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		chatID, string(st))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
