package detector

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// StartFunc launches a detector backend.
type StartFunc func() (Backend, error)

// Backend is a started detector.
type Backend interface {
	biometric.Detector
	Close() error
}

// Loader loads the detector model on first use and shares it afterwards.
// A failed load is not cached, so a later call may retry.
type Loader struct {
	start  StartFunc
	logger *zap.Logger

	mu      sync.Mutex
	backend Backend
}

func NewLoader(start StartFunc, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{start: start, logger: logger}
}

// NewProcessLoader loads a Worker running command with args.
func NewProcessLoader(command string, args []string, logger *zap.Logger) *Loader {
	return NewLoader(func() (Backend, error) {
		return Start(command, args, logger)
	}, logger)
}

// Load starts the backend unless it is already running.
func (l *Loader) Load() (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		return l.backend, nil
	}
	b, err := l.start()
	if err != nil {
		l.logger.Error("detector load failed", zap.Error(err))
		return nil, err
	}
	l.backend = b
	return b, nil
}

func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend != nil
}

// Detect loads the backend if needed and forwards the frame.
func (l *Loader) Detect(ctx context.Context, frame []byte) (biometric.Vector, error) {
	b, err := l.Load()
	if err != nil {
		return nil, err
	}
	return b.Detect(ctx, frame)
}

// Close stops the backend if it was loaded.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	return err
}
