package database

import (
	"testing"

	"github.com/kozaktomas/facevote/internal/biometric"
)

func TestVoterEnrolled(t *testing.T) {
	tests := []struct {
		name        string
		descriptors biometric.EnrollmentSet
		want        bool
	}{
		{"nil", nil, false},
		{"empty", biometric.EnrollmentSet{}, false},
		{"one", biometric.EnrollmentSet{{0.1, 0.2}}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := &Voter{Descriptors: tc.descriptors}
			if got := v.Enrolled(); got != tc.want {
				t.Errorf("Enrolled() = %v, want %v", got, tc.want)
			}
		})
	}
}
