package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of a pgx pool the postgres backend needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var errDocumentMissing = errors.New("document row missing")

// PostgresBackend keeps the document as a jsonb row in the documents table.
// Updates lock the row with SELECT ... FOR UPDATE, which serialises writers
// across every process sharing the database.
type PostgresBackend struct {
	db   DB
	name string
}

// NewPostgresBackend returns a backend storing the document under name. The
// caller owns db.
func NewPostgresBackend(db DB, name string) *PostgresBackend {
	return &PostgresBackend{db: db, name: name}
}

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := b.db.QueryRow(ctx, `SELECT body FROM documents WHERE name = $1`, b.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", b.name, errDocumentMissing)
	}
	return body, err
}

func (b *PostgresBackend) Write(ctx context.Context, data []byte) error {
	tag, err := b.db.Exec(ctx, `UPDATE documents SET body = $2, updated_at = now() WHERE name = $1`, b.name, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", b.name, errDocumentMissing)
	}
	return nil
}

func (b *PostgresBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return err
	}

	var current []byte
	err = tx.QueryRow(ctx, `SELECT body FROM documents WHERE name = $1 FOR UPDATE`, b.name).Scan(&current)
	if err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", b.name, errDocumentMissing)
		}
		return err
	}
	next, err := fn(current)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE documents SET body = $2, updated_at = now() WHERE name = $1`, b.name, next); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) Ensure(ctx context.Context, seed []byte) (bool, error) {
	tag, err := b.db.Exec(ctx, `INSERT INTO documents (name, body) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, b.name, seed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Close is a no-op; the pool belongs to the caller.
func (b *PostgresBackend) Close() error { return nil }
