package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/sidecar"
)

// Store keeps one row per document in the sidecars table.
type Store struct {
	ctx *Context
	log *slog.Logger
}

// NewStore creates a Store over an open database. A nil logger discards output.
func NewStore(ctx *Context, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{ctx: ctx, log: log}
}

// Read loads doc's sidecar. Missing and malformed rows yield nil with no error.
func (s *Store) Read(ctx context.Context, doc string) (*sidecar.File, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	var payload string
	err = db.QueryRowContext(ctx, `SELECT payload FROM sidecars WHERE doc = ?`, doc).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sidecar %s: %w", doc, err)
	}

	file, err := sidecar.Unmarshal([]byte(payload))
	if err != nil {
		s.log.Warn("ignoring malformed sidecar", "doc", doc, "backend", "sqlite", "error", err)
		return nil, nil
	}
	return file, nil
}

// Write upserts doc's sidecar together with the origin tag of the writer.
func (s *Store) Write(ctx context.Context, doc string, file *sidecar.File, origin string) error {
	if err := docref.Validate(doc); err != nil {
		return err
	}
	db, err := s.db()
	if err != nil {
		return err
	}

	payload, err := sidecar.Marshal(file)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sidecars(doc, payload, origin, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(doc) DO UPDATE SET
			payload = excluded.payload,
			origin = excluded.origin,
			updated_at = excluded.updated_at`,
		doc, string(payload), origin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write sidecar %s: %w", doc, err)
	}
	return nil
}

// LastOrigin returns the origin tag of the most recent write to doc.
func (s *Store) LastOrigin(ctx context.Context, doc string) (string, bool, error) {
	db, err := s.db()
	if err != nil {
		return "", false, err
	}
	var origin string
	err = db.QueryRowContext(ctx, `SELECT origin FROM sidecars WHERE doc = ?`, doc).Scan(&origin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read origin %s: %w", doc, err)
	}
	return origin, true, nil
}

// Delete removes doc's row if present.
func (s *Store) Delete(ctx context.Context, doc string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM sidecars WHERE doc = ?`, doc); err != nil {
		return fmt.Errorf("delete sidecar %s: %w", doc, err)
	}
	return nil
}

// Docs lists every stored document identity, sorted.
func (s *Store) Docs(ctx context.Context) ([]string, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT doc FROM sidecars ORDER BY doc`)
	if err != nil {
		return nil, fmt.Errorf("list sidecars: %w", err)
	}
	defer rows.Close()

	docs := make([]string, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan sidecar doc: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ClearDatabase removes every stored sidecar.
func ClearDatabase(ctx *Context) error {
	if ctx == nil || ctx.DB == nil {
		return nil
	}
	if _, err := ctx.DB.Exec(`DELETE FROM sidecars`); err != nil {
		return fmt.Errorf("failed to delete sidecars: %w", err)
	}
	return nil
}

func (s *Store) db() (*sql.DB, error) {
	if s.ctx == nil || s.ctx.DB == nil {
		return nil, errors.New("sidecar store: missing database context")
	}
	return s.ctx.DB, nil
}
