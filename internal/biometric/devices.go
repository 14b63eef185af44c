package biometric

import "context"

// Detector turns one camera frame into a face descriptor. It fails with
// ErrNoFaceDetected when the frame holds no face.
type Detector interface {
	Detect(ctx context.Context, frame []byte) (Vector, error)
}

// Camera opens an exclusively owned frame stream.
type Camera interface {
	Open(ctx context.Context) (FrameStream, error)
}

// FrameStream yields frames until closed. Close must be safe to call more than once.
type FrameStream interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}
