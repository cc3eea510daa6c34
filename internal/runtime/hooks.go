package runtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/loqalabs/loqa-scribe/internal/app"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/protocol"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

// publisher is the part of the bus client the hooks need.
type publisher interface {
	PublishJSON(subject string, v any) error
}

// busHook broadcasts every transition and each final transcript.
func busHook(pub publisher, logger *slog.Logger) app.Hook {
	log := logger.With(slog.String("component", "bus-hook"))
	return func(_ context.Context, t app.Transition) {
		msg := stateChanged(t)
		if err := pub.PublishJSON(protocol.StateSubject(msg.State), msg); err != nil {
			log.Warn("failed to publish state change", slog.String("session_id", t.SessionID), slogError(err))
		}
		if t.To.Kind != ui.KindResult {
			return
		}
		final := protocol.Transcript{
			SessionID:  t.SessionID,
			Text:       t.To.Result.Transcript,
			Confidence: t.To.Result.Confidence,
			Timestamp:  t.At,
		}
		if err := pub.PublishJSON(protocol.SubjectTranscriptFinal, final); err != nil {
			log.Warn("failed to publish transcript", slog.String("session_id", t.SessionID), slogError(err))
		}
	}
}

// timelineHook records every transition of a session in the event store.
func timelineHook(store *eventstore.Store, source string, logger *slog.Logger) app.Hook {
	log := logger.With(slog.String("component", "timeline-hook"))
	return func(ctx context.Context, t app.Transition) {
		if t.SessionID == "" {
			return
		}
		// Store writes must outlive the controller context on shutdown.
		ctx = context.WithoutCancel(ctx)
		if t.Event == ui.EventStarted {
			if err := store.AppendSession(ctx, t.SessionID, source); err != nil {
				log.Warn("failed to record session", slog.String("session_id", t.SessionID), slogError(err))
			}
		}
		payload, err := json.Marshal(stateChanged(t))
		if err != nil {
			log.Warn("failed to encode transition", slogError(err))
			return
		}
		evt := eventstore.Event{
			SessionID: t.SessionID,
			Type:      t.Event.String(),
			From:      t.From.Kind.String(),
			To:        t.To.Kind.String(),
			Payload:   payload,
			CreatedAt: t.At,
		}
		if err := store.AppendEvent(ctx, evt); err != nil {
			log.Warn("failed to record transition", slog.String("session_id", t.SessionID), slogError(err))
		}
	}
}

func stateChanged(t app.Transition) protocol.StateChanged {
	msg := protocol.StateChanged{
		SessionID: t.SessionID,
		From:      t.From.Kind.String(),
		State:     t.To.Kind.String(),
		Message:   t.To.Message,
		Timestamp: t.At,
	}
	if t.To.Kind == ui.KindResult {
		msg.Transcript = t.To.Result.Transcript
		msg.Confidence = t.To.Result.Confidence
	}
	return msg
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
