// Package verify decides whether a live descriptor belongs to an enrolled voter.
package verify

import (
	"math"

	"github.com/kozaktomas/facevote/internal/biometric"
)

const (
	// DefaultThreshold suits the blazeface backend.
	DefaultThreshold = 0.6
	// DefaultMinMatches is the quorum of stored descriptors that must match.
	DefaultMinMatches = 3
)

// Outcome is the result of one verification. Confidence is diagnostic only and
// never influences Confirmed.
type Outcome struct {
	Confirmed   bool    `json:"confirmed"`
	Matches     int     `json:"matches"`
	Compared    int     `json:"compared"`
	Required    int     `json:"required"`
	Threshold   float64 `json:"threshold"`
	Confidence  float64 `json:"confidence"`
	MinDistance float64 `json:"min_distance"`
	MaxDistance float64 `json:"max_distance"`
}

// Engine applies a quorum rule: the live descriptor must lie strictly within
// Threshold of at least MinMatches stored descriptors. A MinMatches below 1
// requires one match.
type Engine struct {
	Threshold  float64
	MinMatches int
}

func NewEngine(threshold float64, minMatches int) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if minMatches < 1 {
		minMatches = DefaultMinMatches
	}
	return &Engine{Threshold: threshold, MinMatches: minMatches}
}

// Verify compares live against every stored descriptor. A nil live descriptor
// or an empty stored set is never confirmed.
func (e *Engine) Verify(live biometric.Vector, stored biometric.EnrollmentSet) Outcome {
	required := max(1, e.MinMatches)
	out := Outcome{
		Compared:  len(stored),
		Required:  required,
		Threshold: e.Threshold,
	}
	if live == nil || len(stored) == 0 {
		return out
	}

	minDist, maxDist := math.Inf(1), math.Inf(-1)
	for _, s := range stored {
		d := biometric.Distance(live, s)
		if d < e.Threshold {
			out.Matches++
		}
		if math.IsInf(d, 0) {
			continue
		}
		minDist = min(minDist, d)
		maxDist = max(maxDist, d)
	}

	out.Confirmed = out.Matches >= required
	if !math.IsInf(minDist, 0) {
		out.MinDistance = minDist
		out.MaxDistance = maxDist
		out.Confidence = Confidence(minDist, maxDist)
	}
	return out
}

// Confidence is the spread of observed distances relative to the largest, in
// percent. It is 0 when undefined.
func Confidence(minDist, maxDist float64) float64 {
	if maxDist <= 0 || math.IsInf(maxDist, 0) || math.IsNaN(maxDist) {
		return 0
	}
	return (maxDist - minDist) / maxDist * 100
}
