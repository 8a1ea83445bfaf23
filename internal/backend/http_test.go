package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/common"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newChannelServer serves websocket upgrades for every conversation, except
// that upgrades for "conv-slow" park until gate is closed.
func newChannelServer(t *testing.T, gate chan struct{}) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "conv-slow") {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHTTPClient_SlowDialDoesNotBlockOtherSubscribes(t *testing.T) {
	gate := make(chan struct{})
	srv, wsURL := newChannelServer(t, gate)
	defer close(gate)

	c := NewHTTPClient(srv.URL, wsURL, "test-token")

	slowCtx, cancelSlow := context.WithCancel(context.Background())
	defer cancelSlow()
	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		c.SubscribeToMessages(slowCtx, "conv-slow", func(common.MessageEvent) {})
	}()

	// Give the slow dial time to enter the handler and park on the gate.
	time.Sleep(50 * time.Millisecond)

	fastDone := make(chan error, 1)
	go func() {
		_, err := c.SubscribeToMessages(context.Background(), "conv-fast", func(common.MessageEvent) {})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe stalled behind an unrelated slow dial")
	}
	require.NoError(t, c.Unsubscribe(MessageChannel("conv-fast")))

	cancelSlow()
	select {
	case <-slowDone:
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscribe did not unwind after cancel")
	}
	require.NoError(t, c.Unsubscribe(MessageChannel("conv-slow")))
}

func TestHTTPClient_DuplicateSubscribeRejected(t *testing.T) {
	srv, wsURL := newChannelServer(t, nil)

	c := NewHTTPClient(srv.URL, wsURL, "test-token")

	channel, err := c.SubscribeToMessages(context.Background(), "conv-1", func(common.MessageEvent) {})
	require.NoError(t, err)
	assert.Equal(t, MessageChannel("conv-1"), channel)

	_, err = c.SubscribeToMessages(context.Background(), "conv-1", func(common.MessageEvent) {})
	assert.ErrorIs(t, err, common.ErrDuplicateSubscription)

	require.NoError(t, c.Unsubscribe(channel))

	// The slot is free again after unsubscribe.
	_, err = c.SubscribeToMessages(context.Background(), "conv-1", func(common.MessageEvent) {})
	require.NoError(t, err)
	require.NoError(t, c.Unsubscribe(channel))
}

func TestHTTPClient_FailedDialReleasesReservation(t *testing.T) {
	srv, wsURL := newChannelServer(t, nil)
	srv.Close() // every dial now fails

	c := NewHTTPClient(srv.URL, wsURL, "test-token")

	_, err := c.SubscribeToMessages(context.Background(), "conv-1", func(common.MessageEvent) {})
	require.Error(t, err)

	// The failed dial must not leave the channel reserved.
	_, err = c.SubscribeToMessages(context.Background(), "conv-1", func(common.MessageEvent) {})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateSubscription)
}
