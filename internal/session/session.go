// Package session provides stores for the gate's once-per-session flag.
//
// A "session" is named by an ID. Stores keep values per session so several
// shells can share one file or database without seeing each other's flags.
package session

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/gate"
)

// IDEnv names the environment variable that pins the session ID.
const IDEnv = "LOADGATE_SESSION"

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a gate.SessionStore that may hold resources.
type Store interface {
	gate.SessionStore
	Close() error
}

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// ResolveID picks the session ID: explicit value, then $LOADGATE_SESSION,
// then one derived from the parent process so a shell gets a stable ID.
func ResolveID(explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	if id := strings.TrimSpace(os.Getenv(IDEnv)); id != "" {
		return id
	}
	return fmt.Sprintf("ppid-%d", os.Getppid())
}

// Open creates the store for backend. path is ignored by the memory backend.
func Open(backend, path, id string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(path, id)
	case BackendSQLite:
		return OpenSQLite(path, id)
	default:
		return nil, errors.New(errors.ErrSession,
			fmt.Sprintf("Unknown session backend %q", backend),
			"Use one of: memory, file, sqlite")
	}
}
