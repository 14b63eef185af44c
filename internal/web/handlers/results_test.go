package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kozaktomas/facevote/internal/database"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestResultsHandler_GetAndStats(t *testing.T) {
	store := setupStore(t)
	alice := store.AddCandidate(database.Candidate{Name: "Alice"})
	bob := store.AddCandidate(database.Candidate{Name: "Bob"})
	for i, candidate := range []int64{bob, bob, alice} {
		voter := addVoter(store, "V"+strconv.Itoa(i), 0.3)
		if _, err := store.RecordVote(t.Context(), voter, candidate); err != nil {
			t.Fatalf("RecordVote failed: %v", err)
		}
	}
	addVoter(store, "ABSTAIN", 0.3)

	handler := NewResultsHandler(testLogger())

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var results []resultResponse
	parseJSONResponse(t, recorder, &results)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Candidate.ID != bob || results[0].Votes != 2 {
		t.Errorf("expected Bob with 2 votes first, got %+v", results[0])
	}
	if results[1].Candidate.ID != alice || results[1].Votes != 1 {
		t.Errorf("expected Alice with 1 vote second, got %+v", results[1])
	}

	recorder = httptest.NewRecorder()
	handler.Stats(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var stats statsResponse
	parseJSONResponse(t, recorder, &stats)
	want := statsResponse{Voters: 4, Candidates: 2, VotesCast: 3}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}
