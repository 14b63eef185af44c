package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/config"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/protocol"
)

// VotersHandler handles voter registration and lookup
type VotersHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewVotersHandler creates a new voters handler
func NewVotersHandler(cfg *config.Config, logger *zap.Logger) *VotersHandler {
	return &VotersHandler{config: cfg, logger: logger}
}

// voterResponse is the public view of a voter. Descriptors never leave the server.
type voterResponse struct {
	ID                  int64  `json:"id"`
	ExternalID          string `json:"external_id"`
	Name                string `json:"name"`
	EnrolledDescriptors int    `json:"enrolled_descriptors"`
	HasVoted            bool   `json:"has_voted"`
	CreatedAt           string `json:"created_at"`
}

func newVoterResponse(v *database.Voter) voterResponse {
	return voterResponse{
		ID:                  v.ID,
		ExternalID:          v.ExternalID,
		Name:                v.Name,
		EnrolledDescriptors: len(v.Descriptors),
		HasVoted:            v.HasVoted,
		CreatedAt:           v.CreatedAt.Format(time.RFC3339),
	}
}

// Register stores a voter with descriptors captured on the client
func (h *VotersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterVoterRequest
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

	registrar := protocol.NewRegistrar(store, h.config.Biometric.AllowEmptyEnrollment, h.logger)
	voter, err := registrar.Register(r.Context(), req.Name, req.ExternalID, req.EnrollmentSet())
	if err != nil {
		h.logger.Info("registration rejected",
			zap.String("external_id", sanitizeForLog(req.ExternalID)),
			zap.String("kind", string(biometric.KindOf(err))))
		respondKindError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, newVoterResponse(voter))
}

// Get returns the public view of a voter
func (h *VotersHandler) Get(w http.ResponseWriter, r *http.Request) {
	externalID := database.NormalizeExternalID(chi.URLParam(r, "externalID"))
	if externalID == "" {
		respondKindError(w, h.logger, invalid("external ID is required"))
		return
	}

	store := getStore(w, r)
	if store == nil {
		return
	}

	voter, err := store.GetVoterByExternalID(r.Context(), externalID)
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	if voter == nil {
		respondKindError(w, h.logger, biometric.ErrVoterNotFound)
		return
	}

	respondJSON(w, http.StatusOK, newVoterResponse(voter))
}
