package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
	ErrInvalidState      = errors.New("invalid capture state")
)

// Blob is one finished recording.
type Blob struct {
	Data      []byte
	MediaType string
}

func (b Blob) Len() int { return len(b.Data) }

// Stream delivers chunks from an open microphone. Chunks is closed when the
// stream ends; Err is only meaningful after that.
type Stream interface {
	Chunks() <-chan []byte
	Err() error
	Close() error
}

// Source abstracts the platform microphone.
type Source interface {
	Open(ctx context.Context) (Stream, error)
	MediaType() string
}

// Recorder buffers at most one live session from a Source.
type Recorder struct {
	source    Source
	logger    *slog.Logger
	mu        sync.Mutex
	session   *session
	onFailure func(error)
}

type session struct {
	stream   Stream
	mu       sync.Mutex
	chunks   [][]byte
	stopping bool
	failed   bool
	err      error
	done     chan struct{}
}

func NewRecorder(source Source, logger *slog.Logger) *Recorder {
	return &Recorder{
		source: source,
		logger: logger.With(slog.String("component", "capture")),
	}
}

// OnFailure registers fn to be called once when a live stream dies before Stop.
func (r *Recorder) OnFailure(fn func(error)) {
	r.mu.Lock()
	r.onFailure = fn
	r.mu.Unlock()
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return fmt.Errorf("%w: recording already in progress", ErrInvalidState)
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	s := &session{stream: stream, done: make(chan struct{})}
	r.session = s
	go r.collect(s)

	r.logger.Debug("capture started", slog.String("media_type", r.source.MediaType()))
	return nil
}

// Stop closes the live stream and returns every buffered chunk, in arrival
// order, as a single blob.
func (r *Recorder) Stop() (Blob, error) {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s == nil {
		return Blob{}, fmt.Errorf("%w: no recording in progress", ErrInvalidState)
	}

	s.mu.Lock()
	if s.failed {
		err := s.err
		s.mu.Unlock()
		return Blob{}, err
	}
	s.stopping = true
	s.mu.Unlock()

	if err := s.stream.Close(); err != nil {
		r.logger.Warn("closing capture stream", slogError(err))
	}
	<-s.done

	s.mu.Lock()
	data := bytes.Join(s.chunks, nil)
	count := len(s.chunks)
	s.chunks = nil
	s.mu.Unlock()

	r.logger.Debug("capture stopped", slog.Int("chunks", count), slog.Int("bytes", len(data)))
	return Blob{Data: data, MediaType: r.source.MediaType()}, nil
}

func (r *Recorder) collect(s *session) {
	defer close(s.done)
	for chunk := range s.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}

	streamErr := s.stream.Err()
	if streamErr == nil {
		// Source ran dry; the chunks stay available to Stop.
		return
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.err = streamErr
	s.chunks = nil
	s.mu.Unlock()

	_ = s.stream.Close()

	// Stop may have claimed the session first; then it reports the error.
	r.mu.Lock()
	owned := r.session == s
	if owned {
		r.session = nil
	}
	handler := r.onFailure
	r.mu.Unlock()
	if !owned {
		return
	}

	r.logger.Warn("capture stream failed", slogError(streamErr))
	if handler != nil {
		handler(streamErr)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
