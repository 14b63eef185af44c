package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/kozaktomas/facevote/internal/database"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Store provides PostgreSQL-backed voter, candidate and ballot storage.
type Store struct {
	pool *Pool
}

// NewStore creates a new PostgreSQL store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// pqCode returns the SQLSTATE of a PostgreSQL error, or "".
func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

var _ database.Store = (*Store)(nil)
