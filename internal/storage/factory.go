package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Store kinds accepted by NewStore.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var ErrUnsupportedStore = errors.New("unsupported store kind")

// NewStore opens the run store of the given kind. An empty kind selects the
// memory store; sqlitePath is only read by the sqlite kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnsupportedStore, kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported releases stores that hold resources, such as the sqlite
// connection pool.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
