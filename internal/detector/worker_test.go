package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser
// so in-memory buffers stand in for the process pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

func frameResponse(status byte, body []byte) []byte {
	payload := append([]byte{status}, body...)
	out := new(bytes.Buffer)
	binary.Write(out, binary.BigEndian, uint32(len(payload)))
	out.Write(payload)
	return out.Bytes()
}

func descriptorBody(vec []float32) []byte {
	body := new(bytes.Buffer)
	binary.Write(body, binary.BigEndian, uint32(len(vec)))
	binary.Write(body, binary.BigEndian, vec)
	return body.Bytes()
}

func newMockWorker(responses ...[]byte) (*Worker, *MockCloser) {
	stdin := &MockCloser{Buffer: new(bytes.Buffer)}
	data := &MockCloser{Buffer: new(bytes.Buffer)}
	for _, r := range responses {
		data.Write(r)
	}
	// cmd is nil: only the protocol is under test
	return &Worker{stdin: stdin, dataPipe: data}, stdin
}

func TestDetect_Descriptor(t *testing.T) {
	vec := make([]float32, biometric.DescriptorSize)
	vec[0] = 0.5
	vec[1] = float32(math.NaN())
	vec[127] = -0.25

	w, stdin := newMockWorker(frameResponse(statusOK, descriptorBody(vec)))

	frame := []byte{0xFF, 0xD8, 0xBE, 0xEF, 0xFF, 0xD9}
	got, err := w.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	sent := stdin.Bytes()
	if len(sent) != 4+len(frame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(frame), len(sent))
	}
	if binary.BigEndian.Uint32(sent) != uint32(len(frame)) {
		t.Errorf("Unexpected length header %v", sent[:4])
	}

	if len(got) != biometric.DescriptorSize {
		t.Fatalf("Expected %d elements, got %d", biometric.DescriptorSize, len(got))
	}
	if got[0] != 0.5 || got[127] != -0.25 {
		t.Errorf("Unexpected values %v %v", got[0], got[127])
	}
	if got[1] != 0 {
		t.Errorf("Expected NaN to be sanitized, got %v", got[1])
	}
}

func TestDetect_NoFace(t *testing.T) {
	w, _ := newMockWorker(frameResponse(statusNoFace, nil))

	_, err := w.Detect(context.Background(), []byte{1})
	if !errors.Is(err, biometric.ErrNoFaceDetected) {
		t.Errorf("Expected NoFaceDetected, got %v", err)
	}
}

func TestDetect_ErrorStatus(t *testing.T) {
	w, _ := newMockWorker(frameResponse(statusError, []byte("model not loaded")))

	_, err := w.Detect(context.Background(), []byte{1})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("Expected detector error, got %v", err)
	}
}

func TestDetect_Malformed(t *testing.T) {
	tests := []struct {
		name string
		resp []byte
	}{
		{"truncated header", frameResponse(statusOK, []byte{0, 0})},
		{"short body", frameResponse(statusOK, descriptorBody([]float32{1, 2})[:8])},
		{"unknown status", frameResponse(9, nil)},
		{"pipe closed", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newMockWorker(tt.resp)
			if _, err := w.Detect(context.Background(), []byte{1}); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	w, stdin := newMockWorker(frameResponse(statusNoFace, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.Detect(ctx, []byte{1}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if stdin.Len() != 0 {
		t.Error("Nothing should be sent after cancellation")
	}
}

func TestClose_Idempotent(t *testing.T) {
	w, _ := newMockWorker()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
	if _, err := w.Detect(context.Background(), []byte{1}); err == nil {
		t.Error("Expected closed worker to refuse frames")
	}
}
