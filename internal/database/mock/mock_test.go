package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
)

func TestMockStore_CreateVoterDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()

	if err := m.CreateVoter(ctx, &database.Voter{ExternalID: "A1", Name: "Ann"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := m.CreateVoter(ctx, &database.Voter{ExternalID: "A1", Name: "Bob"})
	if !errors.Is(err, biometric.ErrDuplicateExternalID) {
		t.Errorf("expected DuplicateExternalID, got %v", err)
	}
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()
	m.AddVoter(database.Voter{ExternalID: "A1", Descriptors: biometric.EnrollmentSet{{1, 2}}})

	v, _ := m.GetVoterByExternalID(ctx, "A1")
	v.Descriptors[0][0] = 99
	v.HasVoted = true

	again, _ := m.GetVoterByExternalID(ctx, "A1")
	if again.Descriptors[0][0] != 1 || again.HasVoted {
		t.Error("mutating a returned voter changed the store")
	}
}

func TestMockStore_RecordVoteOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()
	voterID := m.AddVoter(database.Voter{ExternalID: "A1"})
	candidateID := m.AddCandidate(database.Candidate{Name: "Alice"})

	var wg sync.WaitGroup
	var ok, already atomic.Int32
	for range 20 {
		wg.Go(func() {
			_, err := m.RecordVote(ctx, voterID, candidateID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, biometric.ErrVoterAlreadyVoted):
				already.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	if ok.Load() != 1 || already.Load() != 19 {
		t.Errorf("expected exactly one recorded vote, got ok=%d already=%d", ok.Load(), already.Load())
	}
	if len(m.Votes()) != 1 {
		t.Errorf("expected 1 vote, got %d", len(m.Votes()))
	}
}

func TestMockStore_Results(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()
	bob := m.AddCandidate(database.Candidate{Name: "Bob", Position: "Mayor"})
	alice := m.AddCandidate(database.Candidate{Name: "Alice", Position: "Mayor"})
	for i, c := range []int64{alice, alice, bob} {
		id := m.AddVoter(database.Voter{ExternalID: string(rune('A' + i))})
		if _, err := m.RecordVote(ctx, id, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	results, err := m.Results(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].Candidate.Name != "Alice" {
		t.Fatalf("unexpected order: %+v", results)
	}
	if results[0].Votes != 2 || results[1].Votes != 1 {
		t.Errorf("unexpected tally: %+v", results)
	}

	if err := m.DeleteCandidate(ctx, alice); err == nil {
		t.Error("expected deleting a candidate with votes to fail")
	}
}
