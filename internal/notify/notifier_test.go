// AngelaMos | 2026
// notifier_test.go

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/event"
)

func testConfig(baseURL string) config.NotifyConfig {
	return config.NotifyConfig{
		Enabled:  true,
		BaseURL:  baseURL,
		BotToken: "bot-token",
		Channel:  "members",
		Timeout:  2 * time.Second,
	}
}

func TestAnnounceUnsuspendedWithPaidUntil(t *testing.T) {
	var got broadcastRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/broadcast", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	paidUntil := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	n.AnnounceUnsuspended(context.Background(), event.StatusChange{
		MemberID:  "m1",
		Name:      "Ada Lovelace",
		PaidUntil: &paidUntil,
	})

	require.Equal(t, "Bearer bot-token", auth)
	require.Equal(t, "members", got.Channel)
	require.Equal(t, "Ada Lovelace is no longer suspended, paid until 2026-04-01", got.Text)
}

func TestAnnounceUnsuspendedWithoutPaidUntil(t *testing.T) {
	var got broadcastRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	n.AnnounceUnsuspended(context.Background(), event.StatusChange{
		MemberID: "m1",
		Name:     "Ada Lovelace",
	})

	require.Equal(t, "Ada Lovelace is no longer suspended", got.Text)
}

func TestBroadcastFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	n := NewNotifier(testConfig(srv.URL))

	require.NotPanics(t, func() {
		n.AnnounceUnsuspended(context.Background(), event.StatusChange{Name: "Ada"})
	})
}

func TestBroadcastRejectionIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	require.NotPanics(t, func() {
		n.AnnounceUnsuspended(context.Background(), event.StatusChange{Name: "Ada"})
	})
}

func TestSubscribedNotifierAnnouncesOnUnsuspend(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))

	bus := event.NewBus()
	n.Subscribe(bus)

	bus.Publish(context.Background(), event.Event{
		Type:     event.MemberUnsuspended,
		MemberID: "m1",
		Payload:  event.StatusChange{MemberID: "m1", Name: "Ada"},
	})

	// Suspension events are not announced.
	bus.Publish(context.Background(), event.Event{
		Type:     event.MemberSuspended,
		MemberID: "m1",
		Payload:  event.StatusChange{MemberID: "m1", Name: "Ada"},
	})

	require.Equal(t, 1, requests)
}

func TestDisabledNotifierDoesNotSubscribe(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Enabled = false

	n := NewNotifier(cfg)

	bus := event.NewBus()
	n.Subscribe(bus)

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), event.Event{
			Type:    event.MemberUnsuspended,
			Payload: event.StatusChange{Name: "Ada"},
		})
	})
}
