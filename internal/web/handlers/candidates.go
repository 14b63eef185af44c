package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/database"
)

// CandidatesHandler handles ballot option endpoints
type CandidatesHandler struct {
	logger *zap.Logger
}

// NewCandidatesHandler creates a new candidates handler
func NewCandidatesHandler(logger *zap.Logger) *CandidatesHandler {
	return &CandidatesHandler{logger: logger}
}

type candidateResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	Position  string `json:"position"`
	CreatedAt string `json:"created_at"`
}

func newCandidateResponse(c database.Candidate) candidateResponse {
	return candidateResponse{
		ID:        c.ID,
		Name:      c.Name,
		Party:     c.Party,
		Position:  c.Position,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid %s", name)
	}
	return id, nil
}

func (h *CandidatesHandler) List(w http.ResponseWriter, r *http.Request) {
	store := getStore(w, r)
	if store == nil {
		return
	}
	candidates, err := store.ListCandidates(r.Context())
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	result := make([]candidateResponse, len(candidates))
	for i, c := range candidates {
		result[i] = newCandidateResponse(c)
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CandidatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCandidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	store := getStore(w, r)
	if store == nil {
		return
	}

	candidate := &database.Candidate{
		Name:     database.CleanName(req.Name),
		Party:    database.CleanName(req.Party),
		Position: database.CleanName(req.Position),
	}
	if err := store.CreateCandidate(r.Context(), candidate); err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	h.logger.Info("candidate created", zap.Int64("candidate_id", candidate.ID), zap.String("name", candidate.Name))
	respondJSON(w, http.StatusCreated, newCandidateResponse(*candidate))
}

func (h *CandidatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	store := getStore(w, r)
	if store == nil {
		return
	}

	if err := store.DeleteCandidate(r.Context(), id); err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	h.logger.Info("candidate deleted", zap.Int64("candidate_id", id))
	w.WriteHeader(http.StatusNoContent)
}
