package display

import (
	"strings"
	"testing"

	"github.com/loqalabs/loqa-scribe/internal/transcribe"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

func TestTextResult(t *testing.T) {
	got := Text(ui.Done(transcribe.Result{Transcript: "hello world", Confidence: 0.92}))
	if got != "hello world\n0.92" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestTextStatus(t *testing.T) {
	msgs := ui.DefaultMessages()
	cases := []struct {
		state ui.State
		want  string
	}{
		{ui.Idle(msgs.Idle), "click the microphone to record some audio!"},
		{ui.Listening(msgs.Listening), "listening..."},
		{ui.Sending(msgs.Sending), "sending request..."},
		{ui.Failed("microphone unavailable"), "error: microphone unavailable"},
	}
	for _, tc := range cases {
		if got := Text(tc.state); got != tc.want {
			t.Errorf("Text(%s) = %q, want %q", tc.state.Kind, got, tc.want)
		}
	}
}

func TestHTMLResult(t *testing.T) {
	out, err := HTML(ui.Done(transcribe.Result{Transcript: "test", Confidence: 0.75}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `<h1 class="transcript">test</h1>`) || !strings.Contains(s, `<h1 class="confidence">0.75</h1>`) {
		t.Fatalf("unexpected html %s", s)
	}
}

func TestHTMLEscapesTranscript(t *testing.T) {
	out, err := HTML(ui.Done(transcribe.Result{Transcript: "<script>alert(1)</script>", Confidence: 1}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Fatalf("transcript not escaped: %s", out)
	}
}

func TestHTMLStatus(t *testing.T) {
	out, err := HTML(ui.Listening("listening..."))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != `<p class="status status-listening">listening...</p>` {
		t.Fatalf("unexpected html %s", out)
	}
}

func TestRenderingIsIdempotent(t *testing.T) {
	states := []ui.State{
		ui.Idle("idle"),
		ui.Sending("sending"),
		ui.Done(transcribe.Result{Transcript: "hello world", Confidence: 0.92}),
		ui.Failed("boom"),
	}
	for _, s := range states {
		if Text(s) != Text(s) {
			t.Fatalf("text rendering differs for %s", s.Kind)
		}
		a, errA := HTML(s)
		b, errB := HTML(s)
		if errA != nil || errB != nil || a != b {
			t.Fatalf("html rendering differs for %s", s.Kind)
		}
	}
}
