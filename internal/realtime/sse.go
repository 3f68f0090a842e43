package realtime

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SSEChannel consumes change events from the backend's Server-Sent Events
// stream at {endpoint}/sse/echeances.
type SSEChannel struct {
	*pipe
	url    string
	http   *http.Client
	policy ReconnectPolicy
}

// NewSSEChannel starts consuming the event stream. Connection failures
// trigger reconnects per the policy; cancelling ctx or calling Close()
// stops the channel deterministically.
func NewSSEChannel(ctx context.Context, endpoint string, policy ReconnectPolicy) (*SSEChannel, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if policy.Initial == 0 {
		policy = DefaultSSEPolicy
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := &SSEChannel{
		pipe:   newPipe(cancel),
		url:    strings.TrimSuffix(endpoint, "/") + "/sse/echeances",
		http:   &http.Client{}, // no client timeout: the stream is long-lived
		policy: policy,
	}

	go ch.run(subCtx)
	return ch, nil
}

func (ch *SSEChannel) run(ctx context.Context) {
	defer close(ch.events)
	defer close(ch.errors)

	bo := ch.policy.newBackOff(ctx)

	for {
		err := ch.consumeOnce(ctx, bo)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !ch.fail(ctx, fmt.Errorf("sse stream dropped: %w", err)) {
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

// consumeOnce holds one stream connection open and forwards its events.
// Returns when the stream ends or the context is cancelled. A successful
// connection resets the reconnect schedule: a stream that held and then
// dropped retries at the initial delay, not the fully grown one.
func (ch *SSEChannel) consumeOnce(ctx context.Context, bo backoff.BackOff) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ch.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := ch.http.Do(req)
	if err != nil {
		return fmt.Errorf("stream connect failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	bo.Reset()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			// Blank line terminates one SSE frame.
			if data.Len() > 0 {
				payload := data.String()
				data.Reset()

				ev, err := decode([]byte(payload))
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
		default:
			// Comments (":heartbeat") and other fields are ignored.
		}
	}

	return scanner.Err()
}
