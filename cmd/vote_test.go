package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/database/mock"
	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/verify"
)

// queueFeed serves queued descriptors, then reports no face.
type queueFeed struct {
	queue []biometric.Vector
}

func (f *queueFeed) Next(ctx context.Context) (biometric.Vector, error) {
	if len(f.queue) == 0 {
		return nil, biometric.ErrNoFaceDetected
	}
	v := f.queue[0]
	f.queue = f.queue[1:]
	return v, nil
}

func (f *queueFeed) Release() {}

type queueSource struct {
	feed *queueFeed
}

func (s *queueSource) Acquire(ctx context.Context) (protocol.LiveFeed, error) {
	return s.feed, nil
}

func faceAt(seed float64) biometric.Vector {
	v := make(biometric.Vector, biometric.DescriptorSize)
	for i := range v {
		v[i] = seed
	}
	return v
}

func newVoteSession(t *testing.T, live ...biometric.Vector) (*mock.MockStore, *protocol.Session, int64) {
	t.Helper()
	store := mock.NewMockStore()
	store.AddVoter(database.Voter{
		ExternalID:  "V1",
		Name:        "Vera",
		Descriptors: biometric.EnrollmentSet{faceAt(0.3), faceAt(0.3), faceAt(0.3)},
	})
	candidate := store.AddCandidate(database.Candidate{Name: "Alice"})

	p := protocol.New(store, verify.NewEngine(0.6, 3), protocol.DefaultPolicy(), nil)
	session, err := p.BeginVerification(t.Context(), "V1", &queueSource{feed: &queueFeed{queue: live}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(session.Cancel)
	return store, session, candidate
}

func TestVerifyAndVote_RetriesUntilConfirmed(t *testing.T) {
	store, session, candidate := newVoteSession(t, faceAt(0.9), faceAt(0.3))

	vote, err := verifyAndVote(t.Context(), session, candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vote.CandidateID != candidate {
		t.Errorf("expected vote for %d, got %d", candidate, vote.CandidateID)
	}
	if len(store.Votes()) != 1 {
		t.Errorf("expected one vote, got %d", len(store.Votes()))
	}
}

func TestVerifyAndVote_ErrorsKeepKind(t *testing.T) {
	tests := []struct {
		name      string
		candidate func(int64) int64
		live      []biometric.Vector
		want      error
	}{
		{
			name:      "exhausted",
			candidate: func(id int64) int64 { return id },
			want:      biometric.ErrVerificationExhausted,
		},
		{
			name:      "unknown candidate",
			candidate: func(id int64) int64 { return id + 100 },
			live:      []biometric.Vector{faceAt(0.3)},
			want:      biometric.ErrCandidateNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, session, candidate := newVoteSession(t, tt.live...)

			_, err := verifyAndVote(t.Context(), session, tt.candidate(candidate))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v in the chain, got %v", tt.want, err)
			}
			if biometric.KindOf(err) != biometric.KindOf(tt.want) {
				t.Errorf("expected kind %s, got %s", biometric.KindOf(tt.want), biometric.KindOf(err))
			}
			if len(store.Votes()) != 0 {
				t.Error("expected no vote")
			}
		})
	}
}
