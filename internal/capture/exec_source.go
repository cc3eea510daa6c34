package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/mattn/go-shellwords"
)

const stopGracePeriod = 3 * time.Second

type execSource struct {
	cmd       []string
	mediaType string
	chunkSize int
}

// NewSource builds the capture backend selected by cfg.Mode.
func NewSource(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSource(cfg.SampleRate, cfg.Channels, cfg.FrameDurationMS), nil
	case "exec":
		return NewExecSource(cfg)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}

// NewExecSource runs an external capture command (arecord, ffmpeg, sox...)
// and treats its stdout as the microphone stream.
func NewExecSource(cfg config.CaptureConfig) (Source, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	mediaType := cfg.MediaType
	if mediaType == "" {
		mediaType = PCMMediaType(cfg.SampleRate, cfg.Channels)
	}
	return &execSource{
		cmd:       args,
		mediaType: mediaType,
		chunkSize: frameBytes(cfg.SampleRate, cfg.Channels, cfg.FrameDurationMS),
	}, nil
}

func (e *execSource) MediaType() string { return e.mediaType }

func (e *execSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The process outlives the request that opened it; Close ends it.
	procCtx, cancel := context.WithCancel(context.Background())
	command := exec.CommandContext(procCtx, e.cmd[0], e.cmd[1:]...)
	// Close interrupts the recorder; it is killed only if still running
	// after stopGracePeriod.
	command.Cancel = func() error { return command.Process.Signal(os.Interrupt) }
	command.WaitDelay = stopGracePeriod
	stdout, err := command.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	s := &execStream{
		cancel: cancel,
		chunks: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	command.Stderr = &s.stderr

	if err := command.Start(); err != nil {
		cancel()
		return nil, classifyStartError(err)
	}
	go s.read(command, stdout, e.chunkSize)
	return s, nil
}

type execStream struct {
	cancel context.CancelFunc
	chunks chan []byte
	done   chan struct{}
	closed atomic.Bool
	stderr bytes.Buffer
	mu     sync.Mutex
	err    error
}

func (s *execStream) Chunks() <-chan []byte { return s.chunks }

func (s *execStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close interrupts the capture command and drains its stdout until EOF, so
// whatever it writes on the way out still reaches Chunks.
func (s *execStream) Close() error {
	s.closed.Store(true)
	s.cancel()
	<-s.done
	return nil
}

func (s *execStream) read(command *exec.Cmd, stdout io.Reader, chunkSize int) {
	defer close(s.done)
	defer close(s.chunks)

	for {
		buf := make([]byte, chunkSize)
		n, readErr := io.ReadFull(stdout, buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if readErr != nil {
			break
		}
	}

	waitErr := command.Wait()
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	if waitErr != nil {
		s.err = classifyExitError(waitErr, s.stderr.String())
	}
	s.mu.Unlock()
}

func classifyStartError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	default:
		return fmt.Errorf("%w: start capture command: %v", ErrDeviceUnavailable, err)
	}
}

func classifyExitError(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	lower := strings.ToLower(detail)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "not permitted") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, detail)
}
