package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// ResultsHandler reports the tally
type ResultsHandler struct {
	logger *zap.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{logger: logger}
}

type resultResponse struct {
	Candidate candidateResponse `json:"candidate"`
	Votes     int               `json:"votes"`
}

type statsResponse struct {
	Voters     int `json:"voters"`
	Candidates int `json:"candidates"`
	VotesCast  int `json:"votes_cast"`
}

// Get returns per-candidate vote counts, most votes first
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	store := getStore(w, r)
	if store == nil {
		return
	}
	results, err := store.Results(r.Context())
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	out := make([]resultResponse, len(results))
	for i, res := range results {
		out[i] = resultResponse{Candidate: newCandidateResponse(res.Candidate), Votes: res.Votes}
	}
	respondJSON(w, http.StatusOK, out)
}

// Stats returns registration and turnout counters
func (h *ResultsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	store := getStore(w, r)
	if store == nil {
		return
	}
	voters, err := store.CountVoters(r.Context())
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	results, err := store.Results(r.Context())
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	stats := statsResponse{Voters: voters, Candidates: len(results)}
	for _, res := range results {
		stats.VotesCast += res.Votes
	}
	respondJSON(w, http.StatusOK, stats)
}
