// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
)

// MockStore is an in-memory implementation of database.Store.
// RecordVote is serialized by the store mutex, giving the same
// once-only guarantee as the PostgreSQL compare-and-set.
type MockStore struct {
	mu         sync.RWMutex
	voters     map[int64]*database.Voter
	byExternal map[string]int64
	candidates map[int64]*database.Candidate
	votes      []database.Vote
	nextID     int64

	// Error injection
	GetVoterError        error
	CreateVoterError     error
	CountVotersError     error
	CreateCandidateError error
	ListCandidatesError  error
	DeleteCandidateError error
	RecordVoteError      error
	ResultsError         error

	// RecordVoteCalls counts RecordVote invocations, including failed ones
	RecordVoteCalls int
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		voters:     make(map[int64]*database.Voter),
		byExternal: make(map[string]int64),
		candidates: make(map[int64]*database.Candidate),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// AddVoter adds a voter directly, bypassing validation, and returns its ID
func (m *MockStore) AddVoter(v database.Voter) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.id()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	m.voters[v.ID] = &v
	m.byExternal[v.ExternalID] = v.ID
	return v.ID
}

// AddCandidate adds a candidate directly and returns its ID
func (m *MockStore) AddCandidate(c database.Candidate) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.candidates[c.ID] = &c
	return c.ID
}

// Votes returns a copy of all recorded votes
func (m *MockStore) Votes() []database.Vote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.votes)
}

func copyVoter(v *database.Voter) *database.Voter {
	out := *v
	out.Descriptors = make(biometric.EnrollmentSet, len(v.Descriptors))
	for i, d := range v.Descriptors {
		out.Descriptors[i] = slices.Clone(d)
	}
	return &out
}

// GetVoterByExternalID retrieves a voter by external ID
func (m *MockStore) GetVoterByExternalID(ctx context.Context, externalID string) (*database.Voter, error) {
	if m.GetVoterError != nil {
		return nil, m.GetVoterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	return copyVoter(m.voters[id]), nil
}

// GetVoter retrieves a voter by ID
func (m *MockStore) GetVoter(ctx context.Context, id int64) (*database.Voter, error) {
	if m.GetVoterError != nil {
		return nil, m.GetVoterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.voters[id]
	if !ok {
		return nil, nil
	}
	return copyVoter(v), nil
}

// CountVoters returns the number of voters
func (m *MockStore) CountVoters(ctx context.Context) (int, error) {
	if m.CountVotersError != nil {
		return 0, m.CountVotersError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.voters), nil
}

// CreateVoter stores a voter
func (m *MockStore) CreateVoter(ctx context.Context, voter *database.Voter) error {
	if m.CreateVoterError != nil {
		return m.CreateVoterError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byExternal[voter.ExternalID]; ok {
		return biometric.ErrDuplicateExternalID
	}
	voter.ID = m.id()
	voter.CreatedAt = time.Now()
	m.voters[voter.ID] = copyVoter(voter)
	m.byExternal[voter.ExternalID] = voter.ID
	return nil
}

// CreateCandidate stores a candidate
func (m *MockStore) CreateCandidate(ctx context.Context, candidate *database.Candidate) error {
	if m.CreateCandidateError != nil {
		return m.CreateCandidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate.ID = m.id()
	candidate.CreatedAt = time.Now()
	c := *candidate
	m.candidates[c.ID] = &c
	return nil
}

// GetCandidate retrieves a candidate by ID
func (m *MockStore) GetCandidate(ctx context.Context, id int64) (*database.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// ListCandidates returns candidates in creation order
func (m *MockStore) ListCandidates(ctx context.Context) ([]database.Candidate, error) {
	if m.ListCandidatesError != nil {
		return nil, m.ListCandidatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Candidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b database.Candidate) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteCandidate removes a candidate without votes
func (m *MockStore) DeleteCandidate(ctx context.Context, id int64) error {
	if m.DeleteCandidateError != nil {
		return m.DeleteCandidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[id]; !ok {
		return biometric.ErrCandidateNotFound
	}
	for _, v := range m.votes {
		if v.CandidateID == id {
			return biometric.NewError(biometric.KindInvalidPayload, "candidate has recorded votes", nil)
		}
	}
	delete(m.candidates, id)
	return nil
}

// RecordVote stores a vote and marks the voter as having voted
func (m *MockStore) RecordVote(ctx context.Context, voterID, candidateID int64) (*database.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordVoteCalls++
	if m.RecordVoteError != nil {
		return nil, m.RecordVoteError
	}
	if _, ok := m.candidates[candidateID]; !ok {
		return nil, biometric.ErrCandidateNotFound
	}
	v, ok := m.voters[voterID]
	if !ok {
		return nil, biometric.ErrVoterNotFound
	}
	if v.HasVoted {
		return nil, biometric.ErrVoterAlreadyVoted
	}
	v.HasVoted = true
	vote := database.Vote{ID: m.id(), VoterID: voterID, CandidateID: candidateID, CastAt: time.Now()}
	m.votes = append(m.votes, vote)
	return &vote, nil
}

// Results returns the tally, most votes first
func (m *MockStore) Results(ctx context.Context) ([]database.CandidateResult, error) {
	if m.ResultsError != nil {
		return nil, m.ResultsError
	}
	candidates, err := m.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[int64]int)
	for _, v := range m.votes {
		counts[v.CandidateID]++
	}
	out := make([]database.CandidateResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, database.CandidateResult{Candidate: c, Votes: counts[c.ID]})
	}
	slices.SortStableFunc(out, func(a, b database.CandidateResult) int {
		return cmp.Compare(b.Votes, a.Votes)
	})
	return out, nil
}

var _ database.Store = (*MockStore)(nil)
