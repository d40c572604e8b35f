package store

import (
	"fmt"
	"strings"
)

// New creates a store based on the DSN.
// - Empty DSN: SQLite at data/lessonsearch.db
// - postgres:// or postgresql://: PostgreSQL with pgvector when available
// - Anything else: SQLite at the specified path
func New(dsn string, dimension int) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := NewPostgresStore(dsn, dimension)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	}

	return NewSQLiteStore(dsn)
}
