package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/recorder"
	"github.com/loqalabs/loqa-scribe/internal/transcribe"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

// Capturer is the audio capture the controller drives through its recorder
// control.
type Capturer interface {
	recorder.Capturer
	OnFailure(fn func(error))
}

// Transition describes one state change of a recording session.
type Transition struct {
	SessionID string
	Event     ui.EventType
	From      ui.State
	To        ui.State
	At        time.Time
}

// Hook observes transitions. Hooks run in transition order and must not
// call back into the controller's actions.
type Hook func(ctx context.Context, t Transition)

type Controller struct {
	control     *recorder.Control
	transcriber transcribe.Transcriber
	msgs        ui.Messages
	logger      *slog.Logger
	metrics     *metrics
	clock       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	actions  sync.Mutex
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     ui.State
	sessionID string
	hooks     []Hook
}

func New(parent context.Context, capturer Capturer, transcriber transcribe.Transcriber, msgs ui.Messages, logger *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		transcriber: transcriber,
		msgs:        msgs,
		logger:      logger.With(slog.String("component", "app-controller")),
		clock:       time.Now,
		ctx:         ctx,
		cancel:      cancel,
		state:       ui.Idle(msgs.Idle),
	}
	c.metrics = newMetrics(c.logger)
	c.control = recorder.New(capturer, c.microphoneStarted, c.audioReceived)
	capturer.OnFailure(c.captureFailed)
	return c
}

// AddHook registers h for every later transition.
func (c *Controller) AddHook(h Hook) {
	c.mu.Lock()
	c.hooks = append(c.hooks, h)
	c.mu.Unlock()
}

func (c *Controller) State() ui.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID identifies the current or most recent recording.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Affordance() recorder.Affordance {
	return c.control.Affordance()
}

// Start begins a recording. It is rejected while a recording or an upload
// is in progress.
func (c *Controller) Start(ctx context.Context) error {
	c.actions.Lock()
	defer c.actions.Unlock()
	return c.start(ctx)
}

// Stop ends the recording and hands the blob to the transcriber.
func (c *Controller) Stop() error {
	c.actions.Lock()
	defer c.actions.Unlock()
	return c.stop()
}

func (c *Controller) Toggle(ctx context.Context) error {
	c.actions.Lock()
	defer c.actions.Unlock()
	if c.control.Affordance() == recorder.AffordanceStop {
		return c.stop()
	}
	return c.start(ctx)
}

// Wait blocks until any in-flight upload has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close releases the microphone and cancels any upload.
func (c *Controller) Close() {
	c.cancel()
	c.actions.Lock()
	if c.control.Affordance() == recorder.AffordanceStop {
		if err := c.control.Stop(); err != nil && !errors.Is(err, capture.ErrInvalidState) {
			c.logger.Warn("stopping capture on close", slogError(err))
		}
	}
	c.actions.Unlock()
	c.wg.Wait()
}

func (c *Controller) start(ctx context.Context) error {
	c.mu.Lock()
	kind := c.state.Kind
	if kind == ui.KindListening || kind == ui.KindSending {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", capture.ErrInvalidState, kind)
	}
	c.sessionID = uuid.NewString()
	c.mu.Unlock()

	if err := c.control.Start(ctx); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

func (c *Controller) stop() error {
	err := c.control.Stop()
	if err == nil {
		return nil
	}
	if !errors.Is(err, capture.ErrInvalidState) {
		c.fail(err)
	}
	return err
}

func (c *Controller) microphoneStarted() {
	_ = c.apply(ui.Started())
}

func (c *Controller) audioReceived(blob capture.Blob) {
	if err := c.apply(ui.BlobReady()); err != nil {
		return
	}
	c.logger.Info("recording finished",
		slog.String("session_id", c.SessionID()),
		slog.Int("bytes", blob.Len()),
		slog.String("media_type", blob.MediaType))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := c.clock()
		result, err := c.transcriber.Transcribe(c.ctx, blob)
		c.metrics.recordUpload(c.ctx, c.clock().Sub(start), err)
		if err != nil {
			c.fail(err)
			return
		}
		_ = c.apply(ui.Transcribed(result))
	}()
}

func (c *Controller) captureFailed(err error) {
	c.control.Reset()
	c.fail(err)
}

func (c *Controller) fail(err error) {
	c.logger.Warn("recording cycle failed", slog.String("session_id", c.SessionID()), slogError(err))
	_ = c.apply(ui.FailedWith(Describe(err)))
}

func (c *Controller) apply(ev ui.Event) error {
	c.mu.Lock()
	from := c.state
	next, err := from.Apply(ev, c.msgs)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("rejected ui transition", slogError(err))
		return err
	}
	c.state = next
	t := Transition{SessionID: c.sessionID, Event: ev.Type, From: from, To: next, At: c.clock().UTC()}
	hooks := append([]Hook(nil), c.hooks...)
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.metrics.recordTransition(c.ctx, t)
	c.logger.Info("ui state changed",
		slog.String("session_id", t.SessionID),
		slog.String("from", from.Kind.String()),
		slog.String("to", next.Kind.String()))
	for _, h := range hooks {
		h(c.ctx, t)
	}
	return nil
}

// Describe turns a capture or transcription error into a message for the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return "microphone access was denied"
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "no microphone is available"
	case errors.Is(err, capture.ErrInvalidState):
		return "the recorder is busy"
	case errors.Is(err, transcribe.ErrMalformedResponse):
		return "the transcription service returned an unusable response"
	case errors.Is(err, transcribe.ErrNetworkFailure):
		return "the transcription request failed"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	default:
		return err.Error()
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
