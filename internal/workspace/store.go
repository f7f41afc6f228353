// Package workspace manages workspace records and path resolution.
// Every tool call, agent run and preview session is scoped to a
// workspace, identified by ID and rooted at a directory on disk.
package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
)

// Workspace is a registered workspace directory.
type Workspace struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Path         string    `db:"path" json:"path"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastActiveAt time.Time `db:"last_active_at" json:"last_active_at"`
}

// Store persists workspace records.
type Store interface {
	Create(ctx context.Context, ws *Workspace) error
	Get(ctx context.Context, id string) (*Workspace, error)
	List(ctx context.Context) ([]*Workspace, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	SweepInactive(ctx context.Context, olderThan time.Duration) ([]string, error)
	Close() error
}

type sqliteStore struct {
	db *sqlx.DB
}

var _ Store = (*sqliteStore)(nil)

// NewSQLiteStore opens (or creates) the workspace database at path.
// Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace database: %w", err)
	}
	store := &sqliteStore{db: db}
	if err := store.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close database after schema error: %w", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize workspace schema: %w", err)
	}
	return store, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL,
		last_active_at TIMESTAMP NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *sqliteStore) Create(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return fmt.Errorf("workspace is nil")
	}
	if ws.Path == "" {
		return apperrors.Configuration("workspace path is required")
	}
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	if ws.LastActiveAt.IsZero() {
		ws.LastActiveAt = now
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO workspaces (id, name, path, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?)
	`), ws.ID, ws.Name, ws.Path, ws.CreatedAt, ws.LastActiveAt)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	err := s.db.GetContext(ctx, &ws, s.db.Rebind(`
		SELECT id, name, path, created_at, last_active_at
		FROM workspaces
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("workspace", id)
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]*Workspace, error) {
	var workspaces []*Workspace
	err := s.db.SelectContext(ctx, &workspaces, `
		SELECT id, name, path, created_at, last_active_at
		FROM workspaces
		ORDER BY last_active_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (s *sqliteStore) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE workspaces SET last_active_at = ? WHERE id = ?
	`), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("workspace", id)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM workspaces WHERE id = ?`), id)
	return err
}

// SweepInactive removes workspaces whose last_active_at is older than the
// given age and returns the removed IDs. Only the records are removed, the
// directories on disk are left alone.
func (s *sqliteStore) SweepInactive(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT id FROM workspaces WHERE last_active_at < ?
	`), cutoff)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM workspaces WHERE last_active_at < ?
	`), cutoff)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
