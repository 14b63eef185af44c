// Package camera streams JPEG frames from a capture device through ffmpeg.
package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/biometric"
)

var (
	jpegSOI = []byte{0xFF, 0xD8} // Start of Image
	jpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// maxFrameSize bounds the scanner buffer; a 1080p MJPEG frame is well below it.
const maxFrameSize = 8 << 20

var errStreamClosed = errors.New("camera stream closed")

// SplitJpeg is a bufio.SplitFunc that yields complete JPEG images delimited by
// the SOI and EOI markers.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], jpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// FFmpeg opens a capture device as an MJPEG stream.
type FFmpeg struct {
	Device    string
	Format    string
	FrameRate int
	logger    *zap.Logger
}

func NewFFmpeg(device, format string, frameRate int, logger *zap.Logger) *FFmpeg {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{Device: device, Format: format, FrameRate: frameRate, logger: logger}
}

func (f *FFmpeg) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if f.Format != "" {
		args = append(args, "-f", f.Format)
	}
	if f.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(f.FrameRate))
	}
	return append(args, "-i", f.Device, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// Open starts ffmpeg on the device. The stream owns the process until closed.
func (f *FFmpeg) Open(ctx context.Context) (biometric.FrameStream, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	cmd := exec.Command("ffmpeg", f.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg on %s: %w", f.Device, err)
	}
	f.logger.Info("camera opened", zap.String("device", f.Device), zap.Int("pid", cmd.Process.Pid))

	return newStream(stdout, func() error {
		_ = cmd.Process.Kill()
		return cmd.Wait()
	}, f.logger), nil
}

// stream keeps only the most recent frame so a slow consumer always sees a
// current picture instead of a backlog.
type stream struct {
	frames chan []byte
	done   chan struct{}
	stop   func() error
	logger *zap.Logger

	once    sync.Once
	mu      sync.Mutex
	readErr error
}

func newStream(r io.Reader, stop func() error, logger *zap.Logger) *stream {
	s := &stream{
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
		stop:   stop,
		logger: logger,
	}
	go s.read(r)
	return s
}

func (s *stream) read(r io.Reader) {
	defer close(s.frames)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 512*1024), maxFrameSize)
	scanner.Split(SplitJpeg)
	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
	s.mu.Lock()
	s.readErr = scanner.Err()
	s.mu.Unlock()
}

// Frame returns the latest frame, waiting for one if none is buffered.
func (s *stream) Frame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errStreamClosed
	case frame, ok := <-s.frames:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.readErr != nil {
				return nil, fmt.Errorf("camera stream failed: %w", s.readErr)
			}
			return nil, io.EOF
		}
		return frame, nil
	}
}

// Close stops the capture process. It is safe to call more than once.
func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			err = s.stop()
		}
		s.logger.Debug("camera closed")
	})
	return err
}
