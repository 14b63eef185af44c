package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
)

// RecordVote flips has_voted with a compare-and-set and inserts the vote in the
// same transaction, so concurrent calls for one voter record at most one vote.
func (s *Store) RecordVote(ctx context.Context, voterID, candidateID int64) (*database.Vote, error) {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM candidates WHERE id = $1)", candidateID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check candidate: %w", err)
	}
	if !exists {
		return nil, biometric.ErrCandidateNotFound
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE voters SET has_voted = TRUE WHERE id = $1 AND has_voted = FALSE", voterID)
	if err != nil {
		return nil, fmt.Errorf("mark voter: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return nil, s.notMarkedReason(ctx, tx, voterID)
	}

	vote := database.Vote{VoterID: voterID, CandidateID: candidateID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO votes (voter_id, candidate_id)
		VALUES ($1, $2)
		RETURNING id, cast_at
	`, voterID, candidateID).Scan(&vote.ID, &vote.CastAt)
	if pqCode(err) == pqUniqueViolation {
		return nil, biometric.ErrVoterAlreadyVoted
	}
	if err != nil {
		return nil, fmt.Errorf("insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit vote: %w", err)
	}
	return &vote, nil
}

// notMarkedReason tells a missing voter apart from one who already voted.
func (s *Store) notMarkedReason(ctx context.Context, tx *sql.Tx, voterID int64) error {
	var hasVoted bool
	err := tx.QueryRowContext(ctx, "SELECT has_voted FROM voters WHERE id = $1", voterID).Scan(&hasVoted)
	if errors.Is(err, sql.ErrNoRows) {
		return biometric.ErrVoterNotFound
	}
	if err != nil {
		return fmt.Errorf("check voter: %w", err)
	}
	return biometric.ErrVoterAlreadyVoted
}

// Results returns the vote count of every candidate, most votes first.
func (s *Store) Results(ctx context.Context) ([]database.CandidateResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.party, c.position, c.created_at, COUNT(v.id)
		FROM candidates c
		LEFT JOIN votes v ON v.candidate_id = c.id
		GROUP BY c.id
		ORDER BY COUNT(v.id) DESC, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []database.CandidateResult
	for rows.Next() {
		var r database.CandidateResult
		c := &r.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.Position, &c.CreatedAt, &r.Votes); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}
