package database

import (
	"context"
)

// VoterReader provides read-only access to voter records
type VoterReader interface {
	// GetVoterByExternalID retrieves a voter with descriptors, returns nil if not found
	GetVoterByExternalID(ctx context.Context, externalID string) (*Voter, error)
	// GetVoter retrieves a voter by ID, returns nil if not found
	GetVoter(ctx context.Context, id int64) (*Voter, error)
	// CountVoters returns the number of registered voters
	CountVoters(ctx context.Context) (int, error)
}

// VoterWriter provides write access to voter records
type VoterWriter interface {
	VoterReader

	// CreateVoter stores a voter and its descriptors, setting ID and CreatedAt.
	// Fails with a DuplicateExternalID error when the external ID is taken.
	CreateVoter(ctx context.Context, voter *Voter) error
}

// CandidateStore manages the ballot options
type CandidateStore interface {
	CreateCandidate(ctx context.Context, candidate *Candidate) error
	// GetCandidate returns nil if not found
	GetCandidate(ctx context.Context, id int64) (*Candidate, error)
	ListCandidates(ctx context.Context) ([]Candidate, error)
	// DeleteCandidate fails for candidates that already received votes
	DeleteCandidate(ctx context.Context, id int64) error
}

// BallotBox records votes
type BallotBox interface {
	// RecordVote stores the vote and marks the voter as having voted in one
	// atomic step. A voter that already voted yields a VoterAlreadyVoted error
	// and nothing is written.
	RecordVote(ctx context.Context, voterID, candidateID int64) (*Vote, error)
	// Results returns the tally of every candidate, most votes first
	Results(ctx context.Context) ([]CandidateResult, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	VoterWriter
	CandidateStore
	BallotBox
}
