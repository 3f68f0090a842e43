// Package realtime provides push-channel consumers delivering échéance change
// events from the backend. Three transports are supported behind a single
// Channel interface: Redis pub/sub, Server-Sent Events and WebSocket.
//
// Malformed payloads are reported on Errors() and dropped; the channel keeps
// running. Streaming transports reconnect with exponential backoff, capped at
// a maximum interval, and stop deterministically when the supplied context is
// cancelled or Close() is called.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mverdier/echeancier/pkg/echeance"
)

// Channel is an active subscription to backend change events.
// Caller must call Close() when done to clean up resources.
type Channel interface {
	// Events returns the channel of decoded change events. It is closed
	// when the subscription stops.
	Events() <-chan echeance.Event

	// Errors returns the channel of non-fatal subscription errors
	// (malformed payloads, dropped connections). The subscription
	// continues after errors.
	Errors() <-chan error

	// Close stops the subscription. Safe to call multiple times.
	Close() error
}

// ReconnectPolicy bounds the reconnect behaviour of streaming channels.
type ReconnectPolicy struct {
	Initial time.Duration // first retry delay
	Max     time.Duration // delay ceiling; growth stops here
}

// DefaultSSEPolicy matches the historical 10s event-stream retry delay as
// the starting point, with exponential growth capped at two minutes.
var DefaultSSEPolicy = ReconnectPolicy{Initial: 10 * time.Second, Max: 2 * time.Minute}

// DefaultWebSocketPolicy matches the historical 5s socket retry delay as the
// starting point, with exponential growth capped at two minutes.
var DefaultWebSocketPolicy = ReconnectPolicy{Initial: 5 * time.Second, Max: 2 * time.Minute}

// newBackOff builds the shared reconnect schedule for streaming channels.
// Unlimited retries; the context is the only stop condition.
func (p ReconnectPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		bo.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		bo.MaxInterval = p.Max
	}
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.WithContext(bo, ctx)
}

// pipe is the common event/error fan-out shared by all channel
// implementations.
type pipe struct {
	events chan echeance.Event
	errors chan error
	cancel context.CancelFunc
	once   sync.Once
}

func newPipe(cancel context.CancelFunc) *pipe {
	return &pipe{
		events: make(chan echeance.Event, 16),
		errors: make(chan error, 16),
		cancel: cancel,
	}
}

func (p *pipe) Events() <-chan echeance.Event { return p.events }
func (p *pipe) Errors() <-chan error          { return p.errors }

// Close stops the subscription. Implements io.Closer; safe to call twice.
func (p *pipe) Close() error {
	p.once.Do(p.cancel)
	return nil
}

// emit delivers one event unless the subscription is shutting down.
func (p *pipe) emit(ctx context.Context, ev echeance.Event) bool {
	select {
	case p.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail reports one non-fatal error unless the subscription is shutting down.
func (p *pipe) fail(ctx context.Context, err error) bool {
	select {
	case p.errors <- err:
		return true
	case <-ctx.Done():
		return false
	}
}

// decode unmarshals and validates one wire payload.
func decode(payload []byte) (echeance.Event, error) {
	var ev echeance.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return echeance.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return echeance.Event{}, fmt.Errorf("invalid event payload: %w", err)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev, nil
}
