package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
)

// CreateCandidate stores a candidate. Names must be unique after normalization.
func (s *Store) CreateCandidate(ctx context.Context, c *database.Candidate) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO candidates (name, name_key, party, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Name, database.NameKey(c.Name), c.Party, c.Position).Scan(&c.ID, &c.CreatedAt)
	if pqCode(err) == pqUniqueViolation {
		return biometric.NewError(biometric.KindInvalidPayload,
			fmt.Sprintf("candidate %q already exists", c.Name), err)
	}
	if err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

// GetCandidate retrieves a candidate by ID, returns nil if not found.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*database.Candidate, error) {
	var c database.Candidate
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, party, position, created_at FROM candidates WHERE id = $1", id,
	).Scan(&c.ID, &c.Name, &c.Party, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}

// ListCandidates returns all candidates in creation order.
func (s *Store) ListCandidates(ctx context.Context) ([]database.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, party, position, created_at FROM candidates ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []database.Candidate
	for rows.Next() {
		var c database.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// DeleteCandidate removes a candidate that has not received any votes.
func (s *Store) DeleteCandidate(ctx context.Context, id int64) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM candidates WHERE id = $1", id)
	if pqCode(err) == pqForeignKeyViolation {
		return biometric.NewError(biometric.KindInvalidPayload, "candidate has recorded votes", err)
	}
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return biometric.ErrCandidateNotFound
	}
	return nil
}
