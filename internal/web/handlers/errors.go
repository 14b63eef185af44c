package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// errorResponse is the body of every classified error.
type errorResponse struct {
	Error string         `json:"error"`
	Kind  biometric.Kind `json:"kind,omitempty"`
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind biometric.Kind) int {
	switch kind {
	case biometric.KindInvalidPayload, biometric.KindLengthMismatch:
		return http.StatusBadRequest
	case biometric.KindVoterNotFound, biometric.KindSessionNotFound, biometric.KindCandidateNotFound:
		return http.StatusNotFound
	case biometric.KindVoterAlreadyVoted, biometric.KindDuplicateExternalID, biometric.KindSessionBusy:
		return http.StatusConflict
	case biometric.KindEnrollmentIncomplete, biometric.KindNoSamplesCaptured, biometric.KindNoFaceDetected:
		return http.StatusUnprocessableEntity
	case biometric.KindVerificationRejected, biometric.KindVerificationExhausted:
		return http.StatusForbidden
	case biometric.KindCancelled:
		return http.StatusGone
	case biometric.KindCameraAcquisitionFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondKindError writes a classified error. Unclassified errors are logged
// and reported as a generic internal error.
func respondKindError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := biometric.KindOf(err)
	if kind == "" {
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if kind == biometric.KindLengthMismatch {
		kind = biometric.KindInvalidPayload
	}
	respondJSON(w, statusForKind(kind), errorResponse{Error: biometric.MessageOf(err), Kind: kind})
}
