// Package constants provides shared constants used across the codebase.
package constants

// HTTP handler constants
const (
	// MaxRequestBodyBytes bounds JSON request bodies. A registration carrying
	// ten 128 element descriptors is roughly 30 KiB.
	MaxRequestBodyBytes = 1 << 20

	// MaxDescriptorsPerVoter caps the enrollment set accepted over HTTP
	MaxDescriptorsPerVoter = 50

	// EventChannelBuffer is the buffer size of each SSE listener channel
	EventChannelBuffer = 32
)

// Session housekeeping constants
const (
	// SessionSweepIntervalSeconds is how often ended verification sessions are dropped
	SessionSweepIntervalSeconds = 10

	// CaptureJobRetentionMinutes is how long finished capture jobs stay retrievable
	CaptureJobRetentionMinutes = 10
)

// Detector constants
const (
	// DetectorFrameTimeoutSeconds bounds waiting for one camera frame
	DetectorFrameTimeoutSeconds = 5
)
