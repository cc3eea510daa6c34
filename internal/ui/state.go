package ui

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-scribe/internal/transcribe"
)

var ErrInvalidTransition = errors.New("invalid ui transition")

// Kind tags the active UI state.
type Kind int

const (
	KindIdle Kind = iota
	KindListening
	KindSending
	KindResult
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindListening:
		return "listening"
	case KindSending:
		return "sending"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is exactly one of Idle, Listening, Sending, Result or Error. Message
// is set for every kind except Result; Result is only set for KindResult.
type State struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message,omitempty"`
	Result  transcribe.Result `json:"result"`
}

// MarshalJSON only carries the result for KindResult.
func (s State) MarshalJSON() ([]byte, error) {
	wire := struct {
		Kind    Kind               `json:"kind"`
		Message string             `json:"message,omitempty"`
		Result  *transcribe.Result `json:"result,omitempty"`
	}{Kind: s.Kind, Message: s.Message}
	if s.Kind == KindResult {
		wire.Result = &s.Result
	}
	return json.Marshal(wire)
}

// Messages holds the status text shown for the transient states.
type Messages struct {
	Idle      string
	Listening string
	Sending   string
}

func DefaultMessages() Messages {
	return Messages{
		Idle:      "click the microphone to record some audio!",
		Listening: "listening...",
		Sending:   "sending request...",
	}
}

func Idle(msg string) State { return State{Kind: KindIdle, Message: msg} }
func Listening(msg string) State { return State{Kind: KindListening, Message: msg} }
func Sending(msg string) State { return State{Kind: KindSending, Message: msg} }
func Failed(msg string) State { return State{Kind: KindError, Message: msg} }

func Done(r transcribe.Result) State {
	return State{Kind: KindResult, Result: r}
}

// Terminal reports whether a cycle has finished and a new recording may begin.
func (s State) Terminal() bool {
	return s.Kind == KindResult || s.Kind == KindError
}

// EventType names what happened.
type EventType int

const (
	EventStarted EventType = iota
	EventBlobReady
	EventTranscribed
	EventFailed
)

func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventBlobReady:
		return "blob_ready"
	case EventTranscribed:
		return "transcribed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type Event struct {
	Type    EventType
	Result  transcribe.Result
	Message string
}

func Started() Event { return Event{Type: EventStarted} }
func BlobReady() Event { return Event{Type: EventBlobReady} }
func Transcribed(r transcribe.Result) Event { return Event{Type: EventTranscribed, Result: r} }
func FailedWith(message string) Event { return Event{Type: EventFailed, Message: message} }

// Apply is the only way a State changes. It returns ErrInvalidTransition when
// ev is not allowed from s; s is then left as it was.
//
//	Idle|Result|Error --started--> Listening --blob--> Sending --transcribed--> Result
//	any --failed--> Error
func (s State) Apply(ev Event, msgs Messages) (State, error) {
	switch ev.Type {
	case EventStarted:
		if s.Kind == KindIdle || s.Terminal() {
			return Listening(msgs.Listening), nil
		}
	case EventBlobReady:
		if s.Kind == KindListening {
			return Sending(msgs.Sending), nil
		}
	case EventTranscribed:
		if s.Kind == KindSending {
			return Done(ev.Result), nil
		}
	case EventFailed:
		return Failed(ev.Message), nil
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev.Type, s.Kind)
}
