package recorder

import (
	"context"
	"sync"

	"github.com/loqalabs/loqa-scribe/internal/capture"
)

// Affordance is the action the control currently offers.
type Affordance string

const (
	AffordanceRecord Affordance = "record"
	AffordanceStop   Affordance = "stop"
)

// Capturer is the part of capture.Recorder the control drives.
type Capturer interface {
	Start(ctx context.Context) error
	Stop() (capture.Blob, error)
}

// Control is the record/stop button. It notifies its parent once when a
// recording begins and hands over the finished blob once when it ends.
// Callbacks run with the control locked and must not call back into it.
type Control struct {
	capturer Capturer
	onStart  func()
	onStop   func(capture.Blob)

	mu     sync.Mutex
	active bool
}

func New(capturer Capturer, onStart func(), onStop func(capture.Blob)) *Control {
	return &Control{capturer: capturer, onStart: onStart, onStop: onStop}
}

func (c *Control) Affordance() Affordance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return AffordanceStop
	}
	return AffordanceRecord
}

func (c *Control) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return capture.ErrInvalidState
	}
	if err := c.capturer.Start(ctx); err != nil {
		return err
	}
	c.active = true
	if c.onStart != nil {
		c.onStart()
	}
	return nil
}

func (c *Control) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return capture.ErrInvalidState
	}
	c.active = false
	blob, err := c.capturer.Stop()
	if err != nil {
		return err
	}
	if c.onStop != nil {
		c.onStop(blob)
	}
	return nil
}

// Toggle starts or stops depending on the current affordance.
func (c *Control) Toggle(ctx context.Context) error {
	if c.Affordance() == AffordanceStop {
		return c.Stop()
	}
	return c.Start(ctx)
}

// Reset returns the control to the record affordance after the capture
// session died underneath it.
func (c *Control) Reset() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}
