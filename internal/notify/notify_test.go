package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fenceline/zonewatch/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestSendPostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})

	lat, lon := 5.0, 5.0
	err := n.Send(context.Background(), Event{
		Type:   EventEnter,
		Zone:   "office",
		Entity: "phone",
		Lat:    &lat,
		Lon:    &lon,
	})
	require.NoError(t, err)

	assert.Equal(t, EventEnter, got.Type)
	assert.Equal(t, "office", got.Zone)
	assert.Equal(t, "phone", got.Entity)
	require.NotNil(t, got.Lat)
	assert.Equal(t, 5.0, *got.Lat)
	assert.False(t, got.Timestamp.IsZero())
}

func TestSendNoWebhookConfigured(t *testing.T) {
	n := New(config.NotifyConfig{})
	assert.NoError(t, n.Send(context.Background(), Event{Type: EventExit, Zone: "z", Entity: "e"}))
}

func TestSendWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	err := n.Send(context.Background(), Event{Type: EventEnter, Zone: "z", Entity: "e"})
	assert.Error(t, err)
}

func TestSendRateLimited(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Burst of 2 and a tiny refill rate: the third send in a tight loop
	// must be dropped, not delivered.
	n := New(config.NotifyConfig{WebhookURL: srv.URL, RatePerSec: 0.001, Burst: 2})

	for i := 0; i < 5; i++ {
		require.NoError(t, n.Send(context.Background(), Event{Type: EventEnter, Zone: "z", Entity: "e"}))
	}

	assert.Equal(t, int64(2), hits.Load())
}
