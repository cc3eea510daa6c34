package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	transitions    metric.Int64Counter
	transcriptions metric.Int64Counter
	uploadDuration metric.Float64Histogram
}

func newMetrics(log *slog.Logger) *metrics {
	meter := otel.Meter("github.com/loqalabs/loqa-scribe/app")
	m := &metrics{}
	var err error
	if m.transitions, err = meter.Int64Counter("scribe.transitions",
		metric.WithDescription("UI state transitions by target state")); err != nil {
		log.Warn("failed to create transitions counter", slogError(err))
	}
	if m.transcriptions, err = meter.Int64Counter("scribe.transcriptions",
		metric.WithDescription("Completed transcription requests by outcome")); err != nil {
		log.Warn("failed to create transcriptions counter", slogError(err))
	}
	if m.uploadDuration, err = meter.Float64Histogram("scribe.upload.duration",
		metric.WithDescription("Time from upload start to response"),
		metric.WithUnit("s")); err != nil {
		log.Warn("failed to create upload histogram", slogError(err))
	}
	return m
}

func (m *metrics) recordTransition(ctx context.Context, t Transition) {
	if m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", t.From.Kind.String()),
		attribute.String("to", t.To.Kind.String()),
	))
}

func (m *metrics) recordUpload(ctx context.Context, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.transcriptions != nil {
		m.transcriptions.Add(ctx, 1, attrs)
	}
	if m.uploadDuration != nil {
		m.uploadDuration.Record(ctx, d.Seconds(), attrs)
	}
}
