package session

import (
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rileyhilliard/loadgate/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_values (
	session_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, key)
)`

// SQLite keeps values in a SQLite database, one row per session and key.
type SQLite struct {
	db *sql.DB
	id string
}

// OpenSQLite opens (creating if needed) the database at path, scoped to session id.
func OpenSQLite(path, id string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.ErrSession,
			"SQLite session backend needs a path",
			"Set session.path in .loadgate.yaml")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to create session directory",
			"Check permissions on "+filepath.Dir(cleanPath))
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to open session database",
			"Check that "+cleanPath+" is a SQLite database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to open session database",
			"Check that "+cleanPath+" is a SQLite database")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to prepare session database",
			"Delete "+cleanPath+" and try again")
	}

	return &SQLite{db: db, id: id}, nil
}

// Get returns the value for key in this session.
func (s *SQLite) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
		s.id, key,
	).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapWithCode(err, errors.ErrSession,
			"Failed to read session value "+key,
			"Check that the session database is readable")
	}
	return value, true, nil
}

// Set stores value under key in this session.
func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(`
INSERT INTO session_values (session_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(session_id, key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at
`,
		s.id, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to write session value "+key,
			"Check that the session database is writable")
	}
	return nil
}

// Delete removes key from this session.
func (s *SQLite) Delete(key string) error {
	if _, err := s.db.Exec(
		`DELETE FROM session_values WHERE session_id = ? AND key = ?`,
		s.id, key,
	); err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to delete session value "+key,
			"Check that the session database is writable")
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
