package handlers

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/constants"
)

func invalid(format string, args ...any) error {
	return biometric.NewError(biometric.KindInvalidPayload, fmt.Sprintf(format, args...), nil)
}

// RegisterVoterRequest registers a voter with descriptors captured on the client.
type RegisterVoterRequest struct {
	Name        string      `json:"name"`
	ExternalID  string      `json:"external_id"`
	Descriptors [][]float64 `json:"descriptors"`
}

func (r *RegisterVoterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		return invalid("external_id is required")
	}
	if len(r.Descriptors) > constants.MaxDescriptorsPerVoter {
		return invalid("at most %d descriptors are accepted", constants.MaxDescriptorsPerVoter)
	}
	return nil
}

// EnrollmentSet converts the submitted descriptors.
func (r *RegisterVoterRequest) EnrollmentSet() biometric.EnrollmentSet {
	set := make(biometric.EnrollmentSet, len(r.Descriptors))
	for i, d := range r.Descriptors {
		set[i] = biometric.Vector(d)
	}
	return set
}

// CreateCandidateRequest adds a ballot option.
type CreateCandidateRequest struct {
	Name     string `json:"name"`
	Party    string `json:"party"`
	Position string `json:"position"`
}

func (r *CreateCandidateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if len(r.Name) > 200 || len(r.Party) > 200 || len(r.Position) > 200 {
		return invalid("fields are limited to 200 characters")
	}
	return nil
}

// StartVerificationRequest names the voter claiming an identity.
type StartVerificationRequest struct {
	ExternalID string `json:"external_id"`
}

func (r *StartVerificationRequest) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return invalid("external_id is required")
	}
	return nil
}

// AttemptRequest carries a live descriptor from a remote device. Sessions
// bound to the server camera take no body.
type AttemptRequest struct {
	Descriptor []float64 `json:"descriptor"`
}

func (r *AttemptRequest) Validate() error {
	if r.Descriptor != nil && len(r.Descriptor) != biometric.DescriptorSize {
		return invalid("descriptor must have %d values", biometric.DescriptorSize)
	}
	return nil
}

// CastVoteRequest selects the candidate of a confirmed voter.
type CastVoteRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

func (r *CastVoteRequest) Validate() error {
	if r.CandidateID <= 0 {
		return invalid("candidate_id is required")
	}
	return nil
}

// SubmitEnrollmentRequest completes a server-side capture job.
type SubmitEnrollmentRequest struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

func (r *SubmitEnrollmentRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		return invalid("external_id is required")
	}
	return nil
}
