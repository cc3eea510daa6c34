package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

func execConfig(command string) config.CaptureConfig {
	cfg := config.Default().Capture
	cfg.Mode = "exec"
	cfg.Command = command
	return cfg
}

func TestExecSourceEmptyCommand(t *testing.T) {
	if _, err := NewExecSource(execConfig("   ")); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecSourceDefaultsToPCMMediaType(t *testing.T) {
	src, err := NewExecSource(execConfig("arecord -q -f S16_LE -r 16000 -c 1 -t raw"))
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	if src.MediaType() != "audio/L16;rate=16000;channels=1" {
		t.Fatalf("unexpected media type %q", src.MediaType())
	}
}

func TestExecSourceMissingBinary(t *testing.T) {
	src, err := NewExecSource(execConfig("scribe-no-such-recorder --device default"))
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	rec := NewRecorder(src, newLogger())
	err = rec.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestExecSourcePermissionFailure(t *testing.T) {
	src, err := NewExecSource(execConfig(`sh -c "echo 'arecord: audio open error: Permission denied' >&2; exit 1"`))
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	rec := NewRecorder(src, newLogger())
	failures := make(chan error, 1)
	rec.OnFailure(func(err error) { failures <- err })

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case err := <-failures:
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("capture failure not reported")
	}
	if rec.Recording() {
		t.Fatal("expected device released after failure")
	}
}

func TestNewSourceSelectsBackend(t *testing.T) {
	cfg := config.Default().Capture
	src, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("mock source: %v", err)
	}
	if src.MediaType() != PCMMediaType(cfg.SampleRate, cfg.Channels) {
		t.Fatalf("unexpected media type %q", src.MediaType())
	}

	cfg.Mode = "exec"
	cfg.Command = "cat /dev/null"
	cfg.MediaType = "audio/webm"
	src, err = NewSource(cfg)
	if err != nil {
		t.Fatalf("exec source: %v", err)
	}
	if src.MediaType() != "audio/webm" {
		t.Fatalf("unexpected media type %q", src.MediaType())
	}

	cfg.Mode = "alsa"
	if _, err := NewSource(cfg); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecSourceStopLetsEncoderFinish(t *testing.T) {
	cfg := execConfig(`sh -c 'trap "printf TRAILER; exit 0" INT TERM; while :; do printf x; sleep 0.02; done'`)
	cfg.MediaType = "audio/webm"
	src, err := NewExecSource(cfg)
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	rec := NewRecorder(src, newLogger())
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	blob, err := rec.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !bytes.HasPrefix(blob.Data, []byte("x")) {
		t.Fatalf("expected recorded data before the trailer, got %q", blob.Data)
	}
	if !bytes.HasSuffix(blob.Data, []byte("TRAILER")) {
		t.Fatalf("expected the command's final output at the end of the blob, got %q", blob.Data)
	}
	if blob.MediaType != "audio/webm" {
		t.Fatalf("unexpected media type %q", blob.MediaType)
	}
}
