package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
)

// GetVoterByExternalID retrieves a voter and its descriptors, returns nil if not found.
func (s *Store) GetVoterByExternalID(ctx context.Context, externalID string) (*database.Voter, error) {
	return s.getVoter(ctx, "external_id = $1", externalID)
}

// GetVoter retrieves a voter by ID, returns nil if not found.
func (s *Store) GetVoter(ctx context.Context, id int64) (*database.Voter, error) {
	return s.getVoter(ctx, "id = $1", id)
}

func (s *Store) getVoter(ctx context.Context, where string, arg any) (*database.Voter, error) {
	query := `
		SELECT id, external_id, name, has_voted, created_at
		FROM voters
		WHERE ` + where

	var v database.Voter
	err := s.pool.QueryRow(ctx, query, arg).Scan(&v.ID, &v.ExternalID, &v.Name, &v.HasVoted, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get voter: %w", err)
	}

	v.Descriptors, err = s.getDescriptors(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) getDescriptors(ctx context.Context, voterID int64) (biometric.EnrollmentSet, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT embedding FROM voter_descriptors WHERE voter_id = $1 ORDER BY position", voterID)
	if err != nil {
		return nil, fmt.Errorf("query descriptors: %w", err)
	}
	defer rows.Close()

	var set biometric.EnrollmentSet
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		set = append(set, biometric.FromFloat32(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return set, nil
}

// CountVoters returns the number of registered voters.
func (s *Store) CountVoters(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM voters").Scan(&count); err != nil {
		return 0, fmt.Errorf("count voters: %w", err)
	}
	return count, nil
}

// CreateVoter stores a voter and its descriptors in one transaction.
func (s *Store) CreateVoter(ctx context.Context, voter *database.Voter) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO voters (external_id, name)
		VALUES ($1, $2)
		RETURNING id, has_voted, created_at
	`, voter.ExternalID, voter.Name).Scan(&voter.ID, &voter.HasVoted, &voter.CreatedAt)
	if pqCode(err) == pqUniqueViolation {
		return biometric.NewError(biometric.KindDuplicateExternalID,
			biometric.ErrDuplicateExternalID.Message, err)
	}
	if err != nil {
		return fmt.Errorf("insert voter: %w", err)
	}

	for i, d := range voter.Descriptors {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO voter_descriptors (voter_id, position, embedding) VALUES ($1, $2, $3)",
			voter.ID, i, pgvector.NewVector(d.Float32()))
		if err != nil {
			return fmt.Errorf("insert descriptor %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit voter: %w", err)
	}
	return nil
}
