package websocket

import (
	"testing"
	"time"

	"meeting-moderator-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registered(h *Hub, meetingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[meetingID])
}

func TestBroadcastReachesRegisteredClients(t *testing.T) {
	hub := NewHub(nil, logger.NewIsolatedLogger("logs/test.log"))
	go hub.Run()

	client := &Client{Hub: hub, MeetingID: "meet-1", Send: make(chan []byte, 4)}
	hub.register <- client

	require.Eventually(t, func() bool { return registered(hub, "meet-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastToMeeting("meet-1", []byte(`{"type":"utterance"}`))

	select {
	case msg := <-client.Send:
		assert.Equal(t, `{"type":"utterance"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("client never received the broadcast")
	}
}

func TestSlowClientDroppedWithoutCrashingHub(t *testing.T) {
	hub := NewHub(nil, logger.NewIsolatedLogger("logs/test.log"))
	go hub.Run()

	slow := &Client{Hub: hub, MeetingID: "meet-1", Send: make(chan []byte, 1)}
	slow.Send <- []byte("backlog")
	hub.register <- slow

	require.Eventually(t, func() bool { return registered(hub, "meet-1") == 1 }, time.Second, 5*time.Millisecond)

	// The full buffer forces the drop path; only the hub loop may close Send.
	hub.BroadcastToMeeting("meet-1", []byte("dropped"))

	require.Eventually(t, func() bool { return registered(hub, "meet-1") == 0 }, time.Second, 5*time.Millisecond)

	<-slow.Send // drain the backlog
	_, open := <-slow.Send
	assert.False(t, open, "Send should be closed exactly once by the hub loop")

	// The loop must still be alive and serving registrations.
	next := &Client{Hub: hub, MeetingID: "meet-1", Send: make(chan []byte, 4)}
	hub.register <- next
	require.Eventually(t, func() bool { return registered(hub, "meet-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastToMeeting("meet-1", []byte("still alive"))
	select {
	case msg := <-next.Send:
		assert.Equal(t, "still alive", string(msg))
	case <-time.After(time.Second):
		t.Fatal("hub stopped delivering after dropping a slow client")
	}
}
