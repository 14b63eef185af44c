package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/metrics"
	"github.com/kozaktomas/facevote/internal/verify"
)

// VoteStore is the persistence the voting flow needs.
type VoteStore interface {
	database.VoterReader
	database.BallotBox
}

type Policy struct {
	MaxAttempts    int
	SessionTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, SessionTimeout: 30 * time.Second}
}

// Protocol starts verification sessions for voters who want to cast a ballot.
type Protocol struct {
	store  VoteStore
	engine *verify.Engine
	policy Policy
	logger *zap.Logger
}

func New(store VoteStore, engine *verify.Engine, policy Policy, logger *zap.Logger) *Protocol {
	defaults := DefaultPolicy()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.SessionTimeout <= 0 {
		policy.SessionTimeout = defaults.SessionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{store: store, engine: engine, policy: policy, logger: logger}
}

func (p *Protocol) Policy() Policy {
	return p.policy
}

// BeginVerification resolves the claimed voter and opens a session. Unknown
// voters, voters who already voted and voters without enrollment data are
// rejected before src is acquired. A nil src starts a remote session whose
// descriptors arrive through Session.Submit.
func (p *Protocol) BeginVerification(ctx context.Context, externalID string, src LiveSource) (*Session, error) {
	externalID = database.NormalizeExternalID(externalID)
	if externalID == "" {
		return nil, biometric.NewError(biometric.KindInvalidPayload, "external ID is required", nil)
	}

	voter, err := p.store.GetVoterByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup voter: %w", err)
	}
	if voter == nil {
		return nil, biometric.ErrVoterNotFound
	}
	if voter.HasVoted {
		return nil, biometric.ErrVoterAlreadyVoted
	}
	if !voter.Enrolled() {
		return nil, biometric.ErrEnrollmentIncomplete
	}

	var feed LiveFeed
	if src != nil {
		feed, err = src.Acquire(ctx)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		ID:        uuid.NewString(),
		p:         p,
		voter:     voter,
		feed:      feed,
		state:     StateAwaitingVerification,
		remote:    src == nil,
		expiresAt: time.Now().Add(p.policy.SessionTimeout),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.timer = time.AfterFunc(p.policy.SessionTimeout, s.expire)
	s.mu.Unlock()

	p.logger.Info("verification started",
		zap.String("session_id", s.ID),
		zap.Int64("voter_id", voter.ID),
		zap.Bool("remote", s.remote))
	return s, nil
}

// State is the voting state machine state.
type State int

const (
	StateIdle State = iota
	StateAwaitingVerification
	StateVerifying
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateVerifying:
		return "verifying"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// Decision is the verdict of one attempt.
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionRejected  Decision = "rejected"
	DecisionExhausted Decision = "exhausted"
)

// Result describes one verification attempt.
type Result struct {
	Decision     Decision       `json:"decision"`
	Outcome      verify.Outcome `json:"outcome"`
	Attempts     int            `json:"attempts"`
	AttemptsLeft int            `json:"attempts_left"`
}

// Session is one voter's verification and ballot interaction. It ends in
// StateIdle after a vote, exhaustion, cancellation or timeout; the live feed
// is released whenever it leaves the verification phase.
type Session struct {
	ID string

	p      *Protocol
	voter  *database.Voter
	remote bool

	mu        sync.Mutex
	state     State
	attempts  int
	feed      LiveFeed
	permit    bool
	timer     *time.Timer
	expiresAt time.Time
	endErr    error
	done      chan struct{}
}

// Attempt captures one live descriptor from the session's feed and verifies it.
func (s *Session) Attempt(ctx context.Context) (Result, error) {
	if s.remote {
		return Result{}, biometric.NewError(biometric.KindInvalidPayload,
			"session has no local camera, submit a descriptor instead", nil)
	}

	s.mu.Lock()
	if err := s.enterVerifyingLocked(); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	feed := s.feed
	s.mu.Unlock()

	live, err := feed.Next(ctx)
	return s.conclude(ctx, live, err)
}

// Submit verifies a descriptor produced by a remote device.
// Sessions bound to a camera refuse client descriptors.
func (s *Session) Submit(ctx context.Context, live biometric.Vector) (Result, error) {
	if !s.remote {
		return Result{}, biometric.NewError(biometric.KindInvalidPayload,
			"session verifies with the local camera, descriptors are not accepted", nil)
	}
	if err := biometric.Validate(live); err != nil {
		return Result{}, biometric.NewError(biometric.KindInvalidPayload, "malformed descriptor", err)
	}

	s.mu.Lock()
	if err := s.enterVerifyingLocked(); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	s.mu.Unlock()

	return s.conclude(ctx, live, nil)
}

func (s *Session) enterVerifyingLocked() error {
	switch s.state {
	case StateIdle:
		return s.endErr
	case StateVerifying:
		return biometric.ErrSessionBusy
	case StateConfirmed:
		return biometric.NewError(biometric.KindInvalidPayload, "identity already confirmed, cast the vote", nil)
	}
	s.state = StateVerifying
	return nil
}

// conclude applies the engine to a finished acquisition. Results arriving
// after the session ended are discarded, and an acquisition interrupted by
// the caller's context does not count as an attempt.
func (s *Session) conclude(ctx context.Context, live biometric.Vector, acqErr error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateVerifying {
		return Result{}, s.endErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.state = StateAwaitingVerification
		return Result{}, biometric.NewError(biometric.KindCancelled, "verification attempt cancelled", ctxErr)
	}

	stored := s.voter.Descriptors
	var out verify.Outcome
	if acqErr != nil {
		out = s.p.engine.Verify(nil, stored)
		if !errors.Is(acqErr, biometric.ErrNoFaceDetected) {
			s.p.logger.Warn("live capture failed", zap.String("session_id", s.ID), zap.Error(acqErr))
		}
	} else {
		out = s.p.engine.Verify(biometric.Sanitize(live), stored)
	}
	s.attempts++

	res := Result{
		Outcome:      out,
		Attempts:     s.attempts,
		AttemptsLeft: max(0, s.p.policy.MaxAttempts-s.attempts),
	}
	log := s.p.logger.With(
		zap.String("session_id", s.ID),
		zap.Int64("voter_id", s.voter.ID),
		zap.Int("attempt", s.attempts),
		zap.Int("matches", out.Matches),
		zap.Float64("confidence", out.Confidence))

	if out.Confirmed {
		res.Decision = DecisionConfirmed
		s.state = StateConfirmed
		s.permit = true
		s.releaseFeedLocked()
		metrics.VerificationAttempt(string(DecisionConfirmed), out.Matches)
		log.Info("identity confirmed")
		return res, nil
	}

	if res.AttemptsLeft == 0 {
		res.Decision = DecisionExhausted
		metrics.VerificationAttempt(string(DecisionExhausted), out.Matches)
		log.Warn("verification attempts exhausted")
		err := biometric.NewError(biometric.KindVerificationExhausted,
			biometric.ErrVerificationExhausted.Message, acqErr)
		s.terminateLocked(err)
		return res, err
	}

	res.Decision = DecisionRejected
	s.state = StateRejected
	metrics.VerificationAttempt(string(DecisionRejected), out.Matches)
	log.Info("identity rejected")
	msg := fmt.Sprintf("face verification failed, %d attempts left", res.AttemptsLeft)
	if errors.Is(acqErr, biometric.ErrNoFaceDetected) {
		msg = fmt.Sprintf("no face detected, %d attempts left", res.AttemptsLeft)
	}
	return res, biometric.NewError(biometric.KindVerificationRejected, msg, acqErr)
}

// CastVote records the ballot of a confirmed voter. The permit is single use:
// it is consumed before the store is called and restored only when the store
// fails for a reason other than the voter having voted already.
func (s *Session) CastVote(ctx context.Context, candidateID int64) (*database.Vote, error) {
	s.mu.Lock()
	if s.state == StateIdle {
		err := s.endErr
		s.mu.Unlock()
		return nil, err
	}
	if s.state != StateConfirmed || !s.permit {
		s.mu.Unlock()
		return nil, biometric.NewError(biometric.KindVerificationRejected,
			"identity must be confirmed before voting", nil)
	}
	s.permit = false
	s.mu.Unlock()

	vote, err := s.p.store.RecordVote(ctx, s.voter.ID, candidateID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, biometric.ErrVoterAlreadyVoted) {
			s.terminateLocked(err)
			return nil, err
		}
		if s.state == StateConfirmed {
			s.permit = true
		}
		return nil, err
	}

	metrics.VoteRecorded()
	s.p.logger.Info("vote recorded",
		zap.String("session_id", s.ID),
		zap.Int64("voter_id", s.voter.ID),
		zap.Int64("candidate_id", candidateID))
	s.terminateLocked(biometric.NewError(biometric.KindVoterAlreadyVoted, "vote already cast", nil))
	return vote, nil
}

// Cancel ends the session and releases the live feed. An attempt in flight
// completes with the cancellation error and its result is discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked(biometric.NewError(biometric.KindCancelled, "verification cancelled", nil))
}

func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	s.p.logger.Info("verification session timed out", zap.String("session_id", s.ID))
	s.terminateLocked(biometric.NewError(biometric.KindCancelled,
		"verification session timed out", context.DeadlineExceeded))
}

func (s *Session) terminateLocked(reason error) {
	if s.state == StateIdle {
		return
	}
	s.state = StateIdle
	s.endErr = reason
	s.permit = false
	s.releaseFeedLocked()
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
}

func (s *Session) releaseFeedLocked() {
	if s.feed != nil {
		s.feed.Release()
		s.feed = nil
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Err returns why the session ended, or nil while it is active.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endErr
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

func (s *Session) Remote() bool {
	return s.remote
}

// Voter returns the claimed voter without descriptors.
func (s *Session) Voter() database.Voter {
	v := *s.voter
	v.Descriptors = nil
	return v
}

// EnrolledDescriptors returns how many stored descriptors the session verifies against.
func (s *Session) EnrolledDescriptors() int {
	return len(s.voter.Descriptors)
}
