package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/config"
)

var (
	ErrNetworkFailure    = errors.New("transcription request failed")
	ErrMalformedResponse = errors.New("malformed transcription response")
)

// Result is the top alternative returned by the speech service.
type Result struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Transcriber abstracts speech-recognition backends.
type Transcriber interface {
	Transcribe(ctx context.Context, blob capture.Blob) (Result, error)
}

// New builds the backend selected by cfg.Mode.
func New(cfg config.TranscribeConfig, logger *slog.Logger) (Transcriber, error) {
	switch cfg.Mode {
	case "mock":
		return NewMock(), nil
	case "http":
		return NewClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcribe mode %q", cfg.Mode)
	}
}

type mockTranscriber struct{}

func NewMock() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, blob capture.Blob) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return Result{
		Transcript: fmt.Sprintf("[transcript bytes=%d]", blob.Len()),
		Confidence: 0,
	}, nil
}
