package database

import (
	"time"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// Voter is a registered voter with the face descriptors captured at enrollment.
type Voter struct {
	ID          int64
	ExternalID  string
	Name        string
	Descriptors biometric.EnrollmentSet
	HasVoted    bool
	CreatedAt   time.Time
}

// Enrolled reports whether the voter has at least one stored descriptor.
func (v *Voter) Enrolled() bool {
	return len(v.Descriptors) > 0
}

// Candidate is an option on the ballot.
type Candidate struct {
	ID        int64
	Name      string
	Party     string
	Position  string // office the candidate runs for
	CreatedAt time.Time
}

// Vote is one recorded ballot.
type Vote struct {
	ID          int64
	VoterID     int64
	CandidateID int64
	CastAt      time.Time
}

// CandidateResult is the tally for one candidate.
type CandidateResult struct {
	Candidate Candidate
	Votes     int
}
