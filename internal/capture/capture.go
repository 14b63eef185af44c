// Package capture runs the time-boxed, count-bounded descriptor capture used
// during voter registration.
package capture

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/metrics"
)

// Source yields one live descriptor per call. A failed call is a transient
// failure and is retried by the controller.
type Source interface {
	Next(ctx context.Context) (biometric.Vector, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (biometric.Vector, error)

func (f SourceFunc) Next(ctx context.Context) (biometric.Vector, error) {
	return f(ctx)
}

// ProgressFunc receives the number of captured samples and the whole seconds
// left in the budget. It is called before every attempt.
type ProgressFunc func(count, timeLeft int)

type Options struct {
	TargetCount  int
	Budget       time.Duration
	SuccessPause time.Duration
	FailurePause time.Duration
}

func DefaultOptions() Options {
	return Options{
		TargetCount:  10,
		Budget:       15 * time.Second,
		SuccessPause: 800 * time.Millisecond,
		FailurePause: 200 * time.Millisecond,
	}
}

// Session is the state of one capture run.
type Session struct {
	Target   int
	Budget   time.Duration
	Started  time.Time
	Count    int
	Failures int
	LastErr  error
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.Started)
}

// TimeLeft returns the remaining budget in whole seconds, never negative.
func (s *Session) TimeLeft() int {
	left := (s.Budget - s.Elapsed()).Seconds()
	return max(0, int(math.Round(left)))
}

type Controller struct {
	opts   Options
	logger *zap.Logger
}

func NewController(opts Options, logger *zap.Logger) *Controller {
	defaults := DefaultOptions()
	if opts.TargetCount <= 0 {
		opts.TargetCount = defaults.TargetCount
	}
	if opts.Budget <= 0 {
		opts.Budget = defaults.Budget
	}
	if opts.SuccessPause < 0 {
		opts.SuccessPause = 0
	}
	if opts.FailurePause < 0 {
		opts.FailurePause = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{opts: opts, logger: logger}
}

// Options returns the effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// Run collects up to TargetCount sanitized descriptors from src within the budget.
// Acquisition failures are absorbed; Run fails only when nothing was captured or
// ctx was cancelled, in which case partial results are discarded.
func (c *Controller) Run(ctx context.Context, src Source, progress ProgressFunc) (biometric.EnrollmentSet, error) {
	s := &Session{
		Target:  c.opts.TargetCount,
		Budget:  c.opts.Budget,
		Started: time.Now(),
	}
	result := make(biometric.EnrollmentSet, 0, s.Target)

	c.logger.Info("capture started",
		zap.Int("target", s.Target),
		zap.Duration("budget", s.Budget))

	for s.Count < s.Target && s.Elapsed() < s.Budget {
		if err := ctx.Err(); err != nil {
			return nil, c.cancelled(s, err)
		}
		if progress != nil {
			progress(s.Count, s.TimeLeft())
		}

		v, err := src.Next(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.cancelled(s, ctxErr)
		}

		var pause time.Duration
		if err != nil {
			s.Failures++
			s.LastErr = err
			metrics.CaptureSample(false)
			if !errors.Is(err, biometric.ErrNoFaceDetected) {
				c.logger.Debug("capture attempt failed", zap.Error(err))
			}
			pause = c.opts.FailurePause
		} else {
			result = append(result, biometric.Sanitize(v))
			s.Count++
			metrics.CaptureSample(true)
			if s.Count == s.Target {
				break
			}
			pause = c.opts.SuccessPause
		}

		if err := sleep(ctx, min(pause, s.Budget-s.Elapsed())); err != nil {
			return nil, c.cancelled(s, err)
		}
	}

	if progress != nil {
		progress(s.Count, s.TimeLeft())
	}

	if len(result) == 0 {
		metrics.CaptureSession("no_samples")
		c.logger.Warn("capture finished without samples",
			zap.Int("failures", s.Failures),
			zap.Duration("elapsed", s.Elapsed()),
			zap.Error(s.LastErr))
		return nil, biometric.NewError(biometric.KindNoSamplesCaptured,
			biometric.ErrNoSamplesCaptured.Message, s.LastErr)
	}

	metrics.CaptureSession("completed")
	c.logger.Info("capture finished",
		zap.Int("samples", s.Count),
		zap.Int("failures", s.Failures),
		zap.Duration("elapsed", s.Elapsed()))
	return result, nil
}

func (c *Controller) cancelled(s *Session, err error) error {
	metrics.CaptureSession("cancelled")
	c.logger.Info("capture cancelled", zap.Int("samples", s.Count))
	return biometric.NewError(biometric.KindCancelled, "capture cancelled", err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
