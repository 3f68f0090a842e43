package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// WebSocketChannel consumes change events from the backend's socket at
// {ws-endpoint}/ws/echeances.
type WebSocketChannel struct {
	*pipe
	url    string
	policy ReconnectPolicy
}

// WebSocketURL derives the socket URL from the HTTP API endpoint.
func WebSocketURL(endpoint string) string {
	u := strings.TrimSuffix(endpoint, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws/echeances"
}

// NewWebSocketChannel starts consuming the socket. Connection failures
// trigger reconnects per the policy; cancelling ctx or calling Close()
// stops the channel deterministically.
func NewWebSocketChannel(ctx context.Context, endpoint string, policy ReconnectPolicy) (*WebSocketChannel, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if policy.Initial == 0 {
		policy = DefaultWebSocketPolicy
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := &WebSocketChannel{
		pipe:   newPipe(cancel),
		url:    WebSocketURL(endpoint),
		policy: policy,
	}

	go ch.run(subCtx)
	return ch, nil
}

func (ch *WebSocketChannel) run(ctx context.Context) {
	defer close(ch.events)
	defer close(ch.errors)

	bo := ch.policy.newBackOff(ctx)

	for {
		err := ch.consumeOnce(ctx, bo)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !ch.fail(ctx, fmt.Errorf("websocket dropped: %w", err)) {
				return
			}
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consumeOnce holds one socket connection open and forwards its events.
// A successful dial resets the reconnect schedule.
func (ch *WebSocketChannel) consumeOnce(ctx context.Context, bo backoff.BackOff) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ch.url, nil)
	if err != nil {
		return fmt.Errorf("socket connect failed: %w", err)
	}
	defer conn.Close()

	bo.Reset()

	// Unblock ReadMessage when the subscription is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("socket read failed: %w", err)
		}

		ev, err := decode(payload)
		if err != nil {
			if !ch.fail(ctx, err) {
				return nil
			}
			continue
		}
		if !ch.emit(ctx, ev) {
			return nil
		}
	}
}
