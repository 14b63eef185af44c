package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/protocol"
	"github.com/kozaktomas/facevote/internal/verify"
)

// VerificationHandler drives the vote-time identity check. With a live
// source the server camera is used; without one descriptors are submitted
// by the client.
type VerificationHandler struct {
	engine   *verify.Engine
	policy   protocol.Policy
	source   protocol.LiveSource
	sessions *SessionRegistry
	logger   *zap.Logger
}

// NewVerificationHandler creates a new verification handler. source may be nil.
func NewVerificationHandler(engine *verify.Engine, policy protocol.Policy, source protocol.LiveSource, sessions *SessionRegistry, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		engine:   engine,
		policy:   policy,
		source:   source,
		sessions: sessions,
		logger:   logger,
	}
}

type sessionVoter struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
}

type sessionResponse struct {
	ID                  string         `json:"id"`
	State               string         `json:"state"`
	Attempts            int            `json:"attempts"`
	AttemptsLeft        int            `json:"attempts_left"`
	Remote              bool           `json:"remote"`
	ExpiresAt           string         `json:"expires_at"`
	EnrolledDescriptors int            `json:"enrolled_descriptors"`
	Voter               sessionVoter   `json:"voter"`
	Ended               *errorResponse `json:"ended,omitempty"`
}

func (h *VerificationHandler) sessionView(s *protocol.Session) sessionResponse {
	voter := s.Voter()
	attempts := s.Attempts()
	resp := sessionResponse{
		ID:                  s.ID,
		State:               s.State().String(),
		Attempts:            attempts,
		AttemptsLeft:        max(0, h.policy.MaxAttempts-attempts),
		Remote:              s.Remote(),
		ExpiresAt:           s.ExpiresAt().Format(time.RFC3339),
		EnrolledDescriptors: s.EnrolledDescriptors(),
		Voter:               sessionVoter{ExternalID: voter.ExternalID, Name: voter.Name},
	}
	if err := s.Err(); err != nil {
		resp.Ended = &errorResponse{Error: biometric.MessageOf(err), Kind: biometric.KindOf(err)}
	}
	return resp
}

type attemptResponse struct {
	protocol.Result
	Message string `json:"message,omitempty"`
	State   string `json:"state"`
}

type voteResponse struct {
	VoteID      int64  `json:"vote_id"`
	CandidateID int64  `json:"candidate_id"`
	CastAt      string `json:"cast_at"`
}

// lookup resolves the session in the URL or writes a 404.
func (h *VerificationHandler) lookup(w http.ResponseWriter, r *http.Request) *protocol.Session {
	s := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if s == nil {
		respondKindError(w, h.logger, biometric.ErrSessionNotFound)
		return nil
	}
	return s
}

// Start resolves the claimed voter and opens a verification session
func (h *VerificationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartVerificationRequest
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

	p := protocol.New(store, h.engine, h.policy, h.logger)
	s, err := p.BeginVerification(r.Context(), req.ExternalID, h.source)
	if err != nil {
		h.logger.Info("verification refused",
			zap.String("external_id", sanitizeForLog(req.ExternalID)),
			zap.String("kind", string(biometric.KindOf(err))))
		respondKindError(w, h.logger, err)
		return
	}

	h.sessions.Add(s)
	respondJSON(w, http.StatusCreated, h.sessionView(s))
}

// Status returns the current state of a session
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, h.sessionView(s))
}

// Attempt runs one verification attempt. A rejection or exhaustion is a
// regular outcome and is answered with 200 and the decision.
func (h *VerificationHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}

	var req AttemptRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			respondKindError(w, h.logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			respondKindError(w, h.logger, err)
			return
		}
	}

	var (
		res protocol.Result
		err error
	)
	if req.Descriptor != nil {
		res, err = s.Submit(r.Context(), biometric.Vector(req.Descriptor))
	} else {
		res, err = s.Attempt(r.Context())
	}

	if res.Decision == "" {
		respondKindError(w, h.logger, err)
		return
	}

	resp := attemptResponse{Result: res, State: s.State().String()}
	if err != nil {
		resp.Message = biometric.MessageOf(err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Vote casts the ballot of a confirmed voter and ends the session
func (h *VerificationHandler) Vote(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}

	var req CastVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondKindError(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	vote, err := s.CastVote(r.Context(), req.CandidateID)
	if err != nil {
		respondKindError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, voteResponse{
		VoteID:      vote.ID,
		CandidateID: vote.CandidateID,
		CastAt:      vote.CastAt.Format(time.RFC3339),
	})
}

// Cancel ends the session and releases the camera
func (h *VerificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	s.Cancel()
	h.sessions.Remove(s.ID)
	w.WriteHeader(http.StatusNoContent)
}
