// Package detector runs the face descriptor model in a child process and talks
// to it over a length-prefixed pipe protocol.
package detector

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
)

// Response status bytes written by the detector process.
const (
	statusOK     byte = 0
	statusError  byte = 1
	statusNoFace byte = 2
)

// maxResponseSize bounds a single response; a 128 float descriptor needs well under 1 KiB.
const maxResponseSize = 1 << 20

// Worker owns one detector process. Requests are written to its stdin as
// [len uint32][frame] and responses read from file descriptor 3 as
// [len uint32][status byte][body].
type Worker struct {
	cmd      *exec.Cmd
	stderr   *bytes.Buffer
	stdin    io.WriteCloser
	dataPipe io.ReadCloser
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Start launches the detector process.
func Start(command string, args []string, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(command, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	// Side-channel pipe so the model's own stdout chatter never corrupts responses.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("detector failed to start: %w", err)
	}

	// Only the child holds the write end.
	w.Close()

	logger.Info("detector started", zap.String("command", command), zap.Int("pid", cmd.Process.Pid))
	return &Worker{cmd: cmd, stderr: stderr, stdin: stdin, dataPipe: r, logger: logger}, nil
}

// Detect sends one frame and returns the descriptor of the face found in it.
// Calls are serialized. The pipe exchange itself cannot be interrupted, so a
// cancelled ctx is only observed before the request is sent.
func (w *Worker) Detect(ctx context.Context, frame []byte) (biometric.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errors.New("detector is closed")
	}

	resp, err := w.communicate(frame)
	if err != nil {
		return nil, fmt.Errorf("detector exchange failed: %w%s", err, w.crashLog())
	}
	return decodeResponse(resp)
}

func (w *Worker) communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.dataPipe, header); err != nil {
		return nil, err
	}
	respLen := binary.BigEndian.Uint32(header)
	if respLen == 0 || respLen > maxResponseSize {
		return nil, fmt.Errorf("invalid response length %d", respLen)
	}
	body := make([]byte, respLen)
	if _, err := io.ReadFull(w.dataPipe, body); err != nil {
		return nil, err
	}
	return body, nil
}

func decodeResponse(resp []byte) (biometric.Vector, error) {
	status, body := resp[0], resp[1:]
	switch status {
	case statusOK:
		if len(body) < 4 {
			return nil, errors.New("truncated descriptor header")
		}
		dim := binary.BigEndian.Uint32(body)
		body = body[4:]
		if uint64(len(body)) != uint64(dim)*4 {
			return nil, fmt.Errorf("descriptor body has %d bytes, expected %d", len(body), dim*4)
		}
		raw := make([]float32, dim)
		for i := range raw {
			raw[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
		}
		return biometric.FromFloat32(raw), nil
	case statusNoFace:
		return nil, biometric.ErrNoFaceDetected
	case statusError:
		return nil, fmt.Errorf("detector error: %s", body)
	}
	return nil, fmt.Errorf("unknown detector status %d", status)
}

func (w *Worker) crashLog() string {
	if w.stderr == nil || w.stderr.Len() == 0 {
		return ""
	}
	return "\ndetector stderr:\n" + w.stderr.String()
}

// Close stops the detector process. It is safe to call more than once.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	w.stdin.Close()
	w.dataPipe.Close()
	if w.cmd == nil {
		return nil
	}
	if err := w.cmd.Wait(); err != nil {
		w.logger.Warn("detector exited with error", zap.Error(err))
	}
	return nil
}
