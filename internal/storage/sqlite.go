package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mpataki/codeplay/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no snippet has the requested name.
var ErrNotFound = errors.New("snippet not found")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snippets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		language TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snippets_updated ON snippets(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSnippet inserts the snippet or replaces the one with the same name.
// ID and timestamps are filled in on the passed value.
func (s *Storage) SaveSnippet(sn *models.Snippet) error {
	name := strings.TrimSpace(sn.Name)
	if name == "" {
		return fmt.Errorf("snippet name is empty")
	}
	now := time.Now().UTC()

	row := s.db.QueryRow(
		`INSERT INTO snippets (name, language, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET language = excluded.language, source = excluded.source, updated_at = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		name, sn.Language, sn.Source, now, now,
	)
	if err := row.Scan(&sn.ID, &sn.CreatedAt, &sn.UpdatedAt); err != nil {
		return err
	}
	sn.Name = name
	return nil
}

func (s *Storage) GetSnippet(name string) (*models.Snippet, error) {
	row := s.db.QueryRow(
		`SELECT id, name, language, source, created_at, updated_at
		 FROM snippets WHERE name = ?`, strings.TrimSpace(name),
	)

	var sn models.Snippet
	err := row.Scan(&sn.ID, &sn.Name, &sn.Language, &sn.Source, &sn.CreatedAt, &sn.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

// ListSnippets returns snippets most recently saved first.
func (s *Storage) ListSnippets(limit int) ([]*models.Snippet, error) {
	rows, err := s.db.Query(
		`SELECT id, name, language, source, created_at, updated_at
		 FROM snippets ORDER BY updated_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []*models.Snippet
	for rows.Next() {
		var sn models.Snippet
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Language, &sn.Source, &sn.CreatedAt, &sn.UpdatedAt); err != nil {
			return nil, err
		}
		snippets = append(snippets, &sn)
	}

	return snippets, rows.Err()
}

func (s *Storage) DeleteSnippet(name string) error {
	result, err := s.db.Exec(`DELETE FROM snippets WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FormatTimeAgo renders t relative to now for list views.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
