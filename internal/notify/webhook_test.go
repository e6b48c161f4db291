package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dealroom/backend/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newForwarder(url string) *Forwarder {
	f := NewForwarder(url, time.Second, zap.NewNop())
	f.retry = time.Millisecond
	return f
}

func TestForwardPostsEnvelope(t *testing.T) {
	got := make(chan Envelope, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var env Envelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		got <- env
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newForwarder(srv.URL).Forward(context.Background(), events.StreamNotifications, events.Event{
		Type:    events.EventDeadlineOverdue,
		Payload: map[string]any{"deal_id": "d-1", "kind": "funding"},
	})
	require.NoError(t, err)

	env := <-got
	assert.Equal(t, events.StreamNotifications, env.Stream)
	assert.Equal(t, events.EventDeadlineOverdue, env.Type)
	assert.Equal(t, "d-1", env.DealID)
	assert.Equal(t, "funding", env.Payload["kind"])
	assert.False(t, env.SentAt.IsZero())
}

func TestForwardRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newForwarder(srv.URL).Forward(context.Background(), events.StreamDeal, events.Event{Type: "deal.created"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestForwardGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newForwarder(srv.URL).Forward(context.Background(), events.StreamDeal, events.Event{Type: "deal.created"})
	assert.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestForwardDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newForwarder(srv.URL).Forward(context.Background(), events.StreamDeal, events.Event{Type: "deal.created"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAttachForwardsBusEvents(t *testing.T) {
	got := make(chan Envelope, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		_ = json.NewDecoder(r.Body).Decode(&env)
		got <- env
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewLocalBus()
	require.NoError(t, newForwarder(srv.URL).Attach(ctx, bus, events.StreamDeal, events.StreamNotifications))

	require.NoError(t, bus.Publish(ctx, events.StreamDeal, events.Event{Type: "escrow.funded", Payload: map[string]any{"deal_id": "d-2"}}))
	require.NoError(t, bus.Publish(ctx, events.StreamNotifications, events.Event{Type: events.EventLedgerBroken}))

	first, second := <-got, <-got
	assert.Equal(t, events.StreamDeal, first.Stream)
	assert.Equal(t, "d-2", first.DealID)
	assert.Equal(t, events.StreamNotifications, second.Stream)
}
