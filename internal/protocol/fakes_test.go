package protocol

import (
	"context"
	"errors"
	"sync"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// fakeFeed serves queued results, then blocks until released or cancelled
// when block is set, otherwise reports no face.
type fakeFeed struct {
	mu       sync.Mutex
	queue    []step
	block    bool
	calls    int
	released int
	gone     chan struct{}
	started  chan struct{}
}

type step struct {
	v   biometric.Vector
	err error
}

func newFakeFeed(steps ...step) *fakeFeed {
	return &fakeFeed{queue: steps, gone: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (f *fakeFeed) Next(ctx context.Context) (biometric.Vector, error) {
	f.mu.Lock()
	f.calls++
	if len(f.queue) > 0 {
		s := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return s.v, s.err
	}
	block := f.block
	f.mu.Unlock()

	if !block {
		return nil, biometric.ErrNoFaceDetected
	}
	f.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.gone:
		return nil, errors.New("camera closed")
	}
}

func (f *fakeFeed) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	if f.released == 1 {
		close(f.gone)
	}
}

func (f *fakeFeed) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// fakeSource counts how often the camera was acquired.
type fakeSource struct {
	mu    sync.Mutex
	feed  *fakeFeed
	err   error
	opens int
}

func (s *fakeSource) Acquire(ctx context.Context) (LiveFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.err != nil {
		return nil, s.err
	}
	return s.feed, nil
}

func (s *fakeSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// face returns a descriptor near the reference face identified by seed.
func face(seed, jitter float64) biometric.Vector {
	v := make(biometric.Vector, biometric.DescriptorSize)
	for i := range v {
		v[i] = seed
	}
	v[0] += jitter
	return v
}

func enrollment(seed float64, n int) biometric.EnrollmentSet {
	set := make(biometric.EnrollmentSet, n)
	for i := range set {
		set[i] = face(seed, float64(i)*0.01)
	}
	return set
}
