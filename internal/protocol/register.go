package protocol

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/capture"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/metrics"
)

// Registrar validates and persists new voters.
type Registrar struct {
	store      database.VoterWriter
	allowEmpty bool
	logger     *zap.Logger
}

// NewRegistrar creates a registrar. With allowEmpty, voters whose capture
// produced no descriptors can still be registered; they cannot vote until
// re-enrolled.
func NewRegistrar(store database.VoterWriter, allowEmpty bool, logger *zap.Logger) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{store: store, allowEmpty: allowEmpty, logger: logger}
}

// Register validates the submission and stores the voter with a sanitized
// copy of set.
func (r *Registrar) Register(ctx context.Context, name, externalID string, set biometric.EnrollmentSet) (*database.Voter, error) {
	voter, err := r.prepare(name, externalID, set)
	if err != nil {
		metrics.Registration("rejected")
		return nil, err
	}

	if err := r.store.CreateVoter(ctx, voter); err != nil {
		metrics.Registration("rejected")
		return nil, err
	}

	metrics.Registration("created")
	r.logger.Info("voter registered",
		zap.Int64("voter_id", voter.ID),
		zap.String("external_id", voter.ExternalID),
		zap.Int("descriptors", len(voter.Descriptors)))
	return voter, nil
}

func (r *Registrar) prepare(name, externalID string, set biometric.EnrollmentSet) (*database.Voter, error) {
	name = database.CleanName(name)
	externalID = database.NormalizeExternalID(externalID)
	if name == "" {
		return nil, biometric.NewError(biometric.KindInvalidPayload, "name is required", nil)
	}
	if externalID == "" {
		return nil, biometric.NewError(biometric.KindInvalidPayload, "external ID is required", nil)
	}
	if len(set) == 0 && !r.allowEmpty {
		return nil, biometric.NewError(biometric.KindEnrollmentIncomplete,
			"no face data captured, complete the face capture first", nil)
	}
	for i, d := range set {
		if err := biometric.Validate(d); err != nil {
			return nil, biometric.NewError(biometric.KindInvalidPayload,
				fmt.Sprintf("descriptor %d is malformed", i), err)
		}
	}
	return &database.Voter{
		ExternalID:  externalID,
		Name:        name,
		Descriptors: biometric.SanitizeSet(set),
	}, nil
}

// EnrollState is the registration state machine state.
type EnrollState int

const (
	EnrollIdle EnrollState = iota
	EnrollCapturing
	EnrollReady
	EnrollCaptureFailed
)

func (s EnrollState) String() string {
	switch s {
	case EnrollIdle:
		return "idle"
	case EnrollCapturing:
		return "capturing"
	case EnrollReady:
		return "enrollment_ready"
	case EnrollCaptureFailed:
		return "capture_failed"
	}
	return "unknown"
}

// Enroller drives one registration: capture a descriptor set from a live
// source, then submit it together with the voter's details.
type Enroller struct {
	*Registrar
	source     LiveSource
	controller *capture.Controller

	mu      sync.Mutex
	state   EnrollState
	set     biometric.EnrollmentSet
	lastErr error
}

func NewEnroller(reg *Registrar, source LiveSource, controller *capture.Controller) *Enroller {
	return &Enroller{Registrar: reg, source: source, controller: controller}
}

// Capture acquires the live source for the duration of one capture run. The
// source is released on every exit path. A new capture replaces any earlier one.
func (e *Enroller) Capture(ctx context.Context, progress capture.ProgressFunc) (biometric.EnrollmentSet, error) {
	e.mu.Lock()
	if e.state == EnrollCapturing {
		e.mu.Unlock()
		return nil, biometric.ErrSessionBusy
	}
	e.state = EnrollCapturing
	e.set = nil
	e.mu.Unlock()

	set, err := e.run(ctx, progress)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
	switch {
	case err == nil:
		e.state = EnrollReady
		e.set = set
	case biometric.KindOf(err) == biometric.KindCancelled:
		e.state = EnrollIdle
	default:
		e.state = EnrollCaptureFailed
	}
	return set, err
}

func (e *Enroller) run(ctx context.Context, progress capture.ProgressFunc) (biometric.EnrollmentSet, error) {
	feed, err := e.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer feed.Release()
	return e.controller.Run(ctx, feed, progress)
}

// Submit registers the voter with the captured set and returns to idle.
// A failed submission keeps the captured set so it can be retried.
func (e *Enroller) Submit(ctx context.Context, name, externalID string) (*database.Voter, error) {
	e.mu.Lock()
	if e.state == EnrollCapturing {
		e.mu.Unlock()
		return nil, biometric.ErrSessionBusy
	}
	if e.state != EnrollReady && !e.allowEmpty {
		e.mu.Unlock()
		return nil, biometric.NewError(biometric.KindEnrollmentIncomplete,
			"no face data captured, complete the face capture first", e.lastErr)
	}
	set := e.set
	e.mu.Unlock()

	voter, err := e.Register(ctx, name, externalID, set)
	if err != nil {
		return nil, err
	}

	e.Reset()
	return voter, nil
}

// Reset discards any captured set.
func (e *Enroller) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EnrollCapturing {
		return
	}
	e.state = EnrollIdle
	e.set = nil
	e.lastErr = nil
}

func (e *Enroller) State() EnrollState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
