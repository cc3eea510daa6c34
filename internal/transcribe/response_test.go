package transcribe

import (
	"errors"
	"testing"
)

func TestParseResponseFirstAlternative(t *testing.T) {
	result, err := ParseResponse([]byte(`{"results":[{"alternatives":[{"transcript":"test","confidence":0.75}]},{"alternatives":[{"transcript":"ignored","confidence":1}]}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Transcript != "test" || result.Confidence != 0.75 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestParseResponseRejects(t *testing.T) {
	bodies := map[string]string{
		"empty results":      `{"results":[]}`,
		"missing results":    `{}`,
		"empty alternatives": `{"results":[{"alternatives":[]}]}`,
		"missing transcript": `{"results":[{"alternatives":[{"confidence":0.5}]}]}`,
		"missing confidence": `{"results":[{"alternatives":[{"transcript":"hi"}]}]}`,
		"confidence too big": `{"results":[{"alternatives":[{"transcript":"hi","confidence":1.5}]}]}`,
		"negative":           `{"results":[{"alternatives":[{"transcript":"hi","confidence":-0.1}]}]}`,
		"not json":           `results`,
	}
	for name, body := range bodies {
		if _, err := ParseResponse([]byte(body)); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("%s: expected ErrMalformedResponse, got %v", name, err)
		}
	}
}

func TestParseResponseAllowsEmptyTranscript(t *testing.T) {
	result, err := ParseResponse([]byte(`{"results":[{"alternatives":[{"transcript":"","confidence":0}]}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.Transcript != "" || result.Confidence != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}
