package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/utils/log"
)

// SQLiteStore persists session exports. Transcripts are stored as JSON
// documents; a content fingerprint lets save points skip unchanged writes.
type SQLiteStore struct {
	db     *sql.DB
	hasher domain.Hasher
}

func NewSQLiteStore(dsn string, hasher domain.Hasher) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, hasher: hasher}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_exports (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			character TEXT NOT NULL,
			scenario TEXT NOT NULL,
			messages TEXT NOT NULL,
			turns TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_modified DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_modified ON session_exports(last_modified)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveExport upserts one session export. If the transcript fingerprint has
// not changed since the last save, the write is skipped.
func (s *SQLiteStore) SaveExport(ctx context.Context, export *domain.ChatExport) error {
	character, err := json.Marshal(export.Character)
	if err != nil {
		return fmt.Errorf("marshaling character: %w", err)
	}
	scenario, err := json.Marshal(export.Scenario)
	if err != nil {
		return fmt.Errorf("marshaling scenario: %w", err)
	}
	messages, err := json.Marshal(export.Messages)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}
	turns, err := json.Marshal(export.Turns)
	if err != nil {
		return fmt.Errorf("marshaling turns: %w", err)
	}

	fingerprint := ""
	if s.hasher != nil {
		fingerprint = s.hasher.Hash(messages)

		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT fingerprint FROM session_exports WHERE id = ?`, export.ID).Scan(&existing)
		if err == nil && existing == fingerprint {
			log.WithCtx(ctx).Debug("transcript unchanged, skipping save", zap.String("session_id", export.ID))
			return nil
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_exports
			(id, title, character, scenario, messages, turns, message_count, fingerprint, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			character = excluded.character,
			scenario = excluded.scenario,
			messages = excluded.messages,
			turns = excluded.turns,
			message_count = excluded.message_count,
			fingerprint = excluded.fingerprint,
			last_modified = excluded.last_modified`,
		export.ID, export.Title, string(character), string(scenario), string(messages), string(turns),
		len(export.Messages), fingerprint, export.CreatedAt, export.LastModified)
	if err != nil {
		return fmt.Errorf("saving export: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExport(ctx context.Context, id string) (*domain.ChatExport, error) {
	var (
		export                               domain.ChatExport
		character, scenario, messages, turns string
		createdAt, lastModified              time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, character, scenario, messages, turns, created_at, last_modified
		 FROM session_exports WHERE id = ?`, id).
		Scan(&export.ID, &export.Title, &character, &scenario, &messages, &turns, &createdAt, &lastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading export: %w", err)
	}

	if err := json.Unmarshal([]byte(character), &export.Character); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	if err := json.Unmarshal([]byte(scenario), &export.Scenario); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &export.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	if turns != "" {
		if err := json.Unmarshal([]byte(turns), &export.Turns); err != nil {
			return nil, fmt.Errorf("decoding turns: %w", err)
		}
	}
	export.CreatedAt = createdAt
	export.LastModified = lastModified
	return &export, nil
}

func (s *SQLiteStore) ListExports(ctx context.Context) ([]domain.ExportSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, message_count, last_modified
		 FROM session_exports ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	var out []domain.ExportSummary
	for rows.Next() {
		var (
			summary  domain.ExportSummary
			modified time.Time
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.MessageCount, &modified); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		summary.LastModified = modified.Format(time.RFC3339)
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteExport(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting export: %w", err)
	}
	return nil
}
