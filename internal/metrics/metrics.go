// Package metrics exposes Prometheus counters for capture, verification and voting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	captureSamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "facevote", Subsystem: "capture", Name: "samples_total", Help: "Descriptor acquisition attempts by result."},
		[]string{"result"},
	)
	captureSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "facevote", Subsystem: "capture", Name: "sessions_total", Help: "Finished capture sessions by outcome."},
		[]string{"outcome"},
	)
	verificationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "facevote", Subsystem: "verification", Name: "attempts_total", Help: "Verification attempts by decision."},
		[]string{"decision"},
	)
	verificationMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "facevote", Subsystem: "verification", Name: "matches", Help: "Stored descriptors within threshold per attempt.", Buckets: prometheus.LinearBuckets(0, 1, 11)},
	)
	votesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "facevote", Subsystem: "ballot", Name: "votes_total", Help: "Votes recorded."},
	)
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "facevote", Subsystem: "registration", Name: "voters_total", Help: "Registration submissions by result."},
		[]string{"result"},
	)
)

func init() {
	_ = prometheus.Register(captureSamples)
	_ = prometheus.Register(captureSessions)
	_ = prometheus.Register(verificationAttempts)
	_ = prometheus.Register(verificationMatches)
	_ = prometheus.Register(votesRecorded)
	_ = prometheus.Register(registrations)
}

// CaptureSample counts one descriptor acquisition attempt.
func CaptureSample(ok bool) {
	if ok {
		captureSamples.WithLabelValues("success").Inc()
		return
	}
	captureSamples.WithLabelValues("failure").Inc()
}

// CaptureSession counts a finished capture session ("completed", "no_samples", "cancelled").
func CaptureSession(outcome string) {
	captureSessions.WithLabelValues(outcome).Inc()
}

// VerificationAttempt counts one decision ("confirmed", "rejected", "exhausted").
func VerificationAttempt(decision string, matches int) {
	verificationAttempts.WithLabelValues(decision).Inc()
	verificationMatches.Observe(float64(matches))
}

// VoteRecorded counts one recorded ballot.
func VoteRecorded() {
	votesRecorded.Inc()
}

// Registration counts one registration submission ("created", "rejected").
func Registration(result string) {
	registrations.WithLabelValues(result).Inc()
}
