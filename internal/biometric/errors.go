package biometric

import "errors"

// Kind classifies errors raised by the enrollment and verification core.
type Kind string

// Error kinds. Transient kinds are retried locally; every other kind is terminal
// for the operation that raised it.
const (
	KindNoFaceDetected          Kind = "no_face_detected"
	KindNoSamplesCaptured       Kind = "no_samples_captured"
	KindLengthMismatch          Kind = "length_mismatch"
	KindCameraAcquisitionFailed Kind = "camera_acquisition_failed"
	KindVoterNotFound           Kind = "voter_not_found"
	KindVoterAlreadyVoted       Kind = "voter_already_voted"
	KindEnrollmentIncomplete    Kind = "enrollment_incomplete"
	KindVerificationRejected    Kind = "verification_rejected"
	KindVerificationExhausted   Kind = "verification_exhausted"
	KindDuplicateExternalID     Kind = "duplicate_external_id"
	KindInvalidPayload          Kind = "invalid_payload"
	KindSessionNotFound         Kind = "session_not_found"
	KindSessionBusy             Kind = "session_busy"
	KindCandidateNotFound       Kind = "candidate_not_found"
	KindCancelled               Kind = "cancelled"
)

// Error is a classified error carrying a human readable message for UI feedback.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrVoterNotFound) matches any voter-not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoFaceDetected          = &Error{Kind: KindNoFaceDetected, Message: "no face detected"}
	ErrNoSamplesCaptured       = &Error{Kind: KindNoSamplesCaptured, Message: "could not capture any faces"}
	ErrLengthMismatch          = &Error{Kind: KindLengthMismatch, Message: "descriptor length mismatch"}
	ErrCameraAcquisitionFailed = &Error{Kind: KindCameraAcquisitionFailed, Message: "camera could not be acquired"}
	ErrVoterNotFound           = &Error{Kind: KindVoterNotFound, Message: "voter not found"}
	ErrVoterAlreadyVoted       = &Error{Kind: KindVoterAlreadyVoted, Message: "voter has already voted"}
	ErrEnrollmentIncomplete    = &Error{Kind: KindEnrollmentIncomplete, Message: "no face data found, complete registration first"}
	ErrVerificationRejected    = &Error{Kind: KindVerificationRejected, Message: "face verification failed"}
	ErrVerificationExhausted   = &Error{Kind: KindVerificationExhausted, Message: "maximum verification attempts reached"}
	ErrDuplicateExternalID     = &Error{Kind: KindDuplicateExternalID, Message: "a voter with this external ID already exists"}
	ErrInvalidPayload          = &Error{Kind: KindInvalidPayload, Message: "invalid payload"}
	ErrSessionNotFound         = &Error{Kind: KindSessionNotFound, Message: "verification session not found"}
	ErrSessionBusy             = &Error{Kind: KindSessionBusy, Message: "a verification attempt is already in progress"}
	ErrCandidateNotFound       = &Error{Kind: KindCandidateNotFound, Message: "candidate not found"}
	ErrCancelled               = &Error{Kind: KindCancelled, Message: "cancelled"}
)

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the human readable message of a classified error, falling
// back to err.Error() for unclassified errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
