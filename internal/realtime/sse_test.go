package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames [][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sse/echeances", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}

		// Hold the stream open until the client goes away.
		<-r.Context().Done()
	}))
}

func TestSSEChannelDeliversFrames(t *testing.T) {
	good := testEvent()
	payload, err := json.Marshal(good)
	require.NoError(t, err)

	srv := sseServer(t, [][]byte{[]byte("{broken"), payload})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewSSEChannel(ctx, srv.URL, ReconnectPolicy{Initial: 50 * time.Millisecond, Max: time.Second})
	require.NoError(t, err)
	defer ch.Close()

	// The malformed frame surfaces on Errors() and is dropped.
	select {
	case err := <-ch.Errors():
		assert.Contains(t, err.Error(), "unmarshal")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for malformed-frame error")
	}

	select {
	case got := <-ch.Events():
		assert.Equal(t, good.EcheanceID, got.EcheanceID)
		assert.Equal(t, good.Type, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSSEChannelReconnects(t *testing.T) {
	good := testEvent()
	payload, err := json.Marshal(good)
	require.NoError(t, err)

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// First connection dies immediately.
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewSSEChannel(ctx, srv.URL, ReconnectPolicy{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond})
	require.NoError(t, err)
	defer ch.Close()

	// First attempt fails, surfaces an error, then the retry succeeds.
	select {
	case err := <-ch.Errors():
		assert.Contains(t, err.Error(), "sse stream dropped")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for drop error")
	}

	select {
	case got := <-ch.Events():
		assert.Equal(t, good.EcheanceID, got.EcheanceID)
		assert.GreaterOrEqual(t, attempts.Load(), int32(2))
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event after reconnect")
	}
}

func TestSSEChannelStopsOnCancel(t *testing.T) {
	srv := sseServer(t, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := NewSSEChannel(ctx, srv.URL, ReconnectPolicy{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond})
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch.Events():
		assert.False(t, open, "events channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not stop on context cancellation")
	}
}
