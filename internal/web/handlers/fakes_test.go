package handlers

import (
	"context"
	"sync"

	"github.com/kozaktomas/facevote/internal/biometric"
	"github.com/kozaktomas/facevote/internal/protocol"
)

// fakeFeed returns queued descriptors, then blocks until the context ends
// when block is set, otherwise reports no face.
type fakeFeed struct {
	mu       sync.Mutex
	queue    []biometric.Vector
	block    bool
	released int
}

func (f *fakeFeed) Next(ctx context.Context) (biometric.Vector, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		v := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return v, nil
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, biometric.ErrNoFaceDetected
}

func (f *fakeFeed) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeFeed) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeSource struct {
	feed *fakeFeed
	err  error
}

func (s *fakeSource) Acquire(ctx context.Context) (protocol.LiveFeed, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.feed, nil
}

func vectors(seed float64, n int) []biometric.Vector {
	out := make([]biometric.Vector, n)
	for i := range out {
		out[i] = face(seed, float64(i)*0.01)
	}
	return out
}
