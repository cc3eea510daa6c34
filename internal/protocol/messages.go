package protocol

import "time"

// StateChanged is broadcast on every UI transition of a recording session.
type StateChanged struct {
	SessionID  string    `json:"session_id"`
	From       string    `json:"from"`
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Transcript represents STT output broadcast on the bus.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Partial    bool      `json:"partial"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

const (
	SubjectStatePrefix     = "scribe.state"
	SubjectTranscriptFinal = "stt.text.final"
)

// StateSubject returns the subject a state change to kind is published on.
func StateSubject(kind string) string {
	return SubjectStatePrefix + "." + kind
}
