package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunTranscribePrintsResult(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		gotType = header.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"hello world","confidence":0.92}]}]}`))
	}))
	t.Cleanup(srv.Close)

	cfgPath := writeConfig(t, "transcribe:\n  mode: http\n  endpoint: "+srv.URL+"\n")
	audio := filepath.Join(t.TempDir(), "clip.raw")
	if err := os.WriteFile(audio, []byte{1, 0, 2, 0}, 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	var out bytes.Buffer
	if err := runTranscribe(context.Background(), cfgPath, audio, "", &out); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if out.String() != "hello world\n0.92\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if gotType != "audio/L16;rate=16000;channels=1" {
		t.Fatalf("unexpected content type %q", gotType)
	}
}

func TestRunTranscribeReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	cfgPath := writeConfig(t, "transcribe:\n  mode: http\n  endpoint: "+srv.URL+"\n")
	audio := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(audio, []byte("webm"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	var out bytes.Buffer
	if err := runTranscribe(context.Background(), cfgPath, audio, "audio/webm", &out); err == nil {
		t.Fatal("expected error for empty results")
	}
	if !strings.HasPrefix(out.String(), "error: ") {
		t.Fatalf("expected error line, got %q", out.String())
	}
}

func TestRunTranscribeRequiresFile(t *testing.T) {
	if err := runTranscribe(context.Background(), "", "", "", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without -file")
	}
}

func TestRunRecordTogglesOnEnter(t *testing.T) {
	var out bytes.Buffer
	if err := runRecord(context.Background(), "", strings.NewReader("\n\nq\n"), &out); err != nil {
		t.Fatalf("record: %v", err)
	}
	ui := config.Default().UI
	got := out.String()
	for _, want := range []string{ui.IdleMessage, ui.ListeningMessage, ui.SendingMessage, "[transcript bytes="} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunRecordQuitWhileListeningFinishesUpload(t *testing.T) {
	var out bytes.Buffer
	if err := runRecord(context.Background(), "", strings.NewReader("\nq\n"), &out); err != nil {
		t.Fatalf("record: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[transcript bytes=") {
		t.Fatalf("expected the recording to be transcribed before quitting:\n%s", got)
	}
	if strings.Contains(got, "error: ") {
		t.Fatalf("unexpected failure on quit:\n%s", got)
	}
}

func TestRunRecordStopsAtEndOfInput(t *testing.T) {
	var out bytes.Buffer
	if err := runRecord(context.Background(), "", strings.NewReader("\n"), &out); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.Contains(out.String(), "[transcript bytes=") {
		t.Fatalf("expected the open recording to be transcribed:\n%s", out.String())
	}
}

func TestRunRecordReturnsOnCancelWithPendingInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	go func() { _, _ = pw.Write([]byte("\n\n\n")) }()

	finished := make(chan error, 1)
	go func() { finished <- runRecord(ctx, "", pr, io.Discard) }()
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runRecord did not return after cancel")
	}
}

func TestGuessMediaType(t *testing.T) {
	cfg := config.Default().Capture
	if got := guessMediaType("a.raw", cfg); got != "audio/L16;rate=16000;channels=1" {
		t.Fatalf("unexpected pcm type %q", got)
	}
	if got := guessMediaType("a.unknownext", cfg); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
