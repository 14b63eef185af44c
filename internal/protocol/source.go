// Package protocol implements the registration and voting state machines that
// gate enrollment and ballot casting behind face verification.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/constants"
)

// LiveSource hands out exclusive access to a live descriptor feed.
type LiveSource interface {
	Acquire(ctx context.Context) (LiveFeed, error)
}

// LiveFeed yields live descriptors until released. Release is idempotent and
// may be called while Next is in flight, which makes Next return promptly.
type LiveFeed interface {
	Next(ctx context.Context) (biometric.Vector, error)
	Release()
}

// CameraSource produces descriptors by running the detector on camera frames.
// At most one feed is held at a time.
type CameraSource struct {
	Camera   biometric.Camera
	Detector biometric.Detector

	mu   sync.Mutex
	held bool
}

func NewCameraSource(camera biometric.Camera, detector biometric.Detector) *CameraSource {
	return &CameraSource{Camera: camera, Detector: detector}
}

// Acquire opens the camera. The caller owns the returned feed and must release
// it; until then further calls fail with CameraAcquisitionFailed.
func (s *CameraSource) Acquire(ctx context.Context) (LiveFeed, error) {
	s.mu.Lock()
	if s.held {
		s.mu.Unlock()
		return nil, biometric.NewError(biometric.KindCameraAcquisitionFailed,
			"camera is in use by another session", nil)
	}
	s.held = true
	s.mu.Unlock()

	stream, err := s.Camera.Open(ctx)
	if err != nil {
		s.unlock()
		return nil, biometric.NewError(biometric.KindCameraAcquisitionFailed,
			biometric.ErrCameraAcquisitionFailed.Message, err)
	}
	return &cameraFeed{stream: stream, detector: s.Detector, done: s.unlock}, nil
}

func (s *CameraSource) unlock() {
	s.mu.Lock()
	s.held = false
	s.mu.Unlock()
}

type cameraFeed struct {
	stream   biometric.FrameStream
	detector biometric.Detector
	done     func()
	once     sync.Once
}

// Next waits a bounded time for a frame, then runs the detector on it.
func (f *cameraFeed) Next(ctx context.Context) (biometric.Vector, error) {
	frameCtx, cancel := context.WithTimeout(ctx, constants.DetectorFrameTimeoutSeconds*time.Second)
	frame, err := f.stream.Frame(frameCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("reading camera frame: %w", err)
	}
	return f.detector.Detect(ctx, frame)
}

func (f *cameraFeed) Release() {
	f.once.Do(func() {
		_ = f.stream.Close()
		f.done()
	})
}
