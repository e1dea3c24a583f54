package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"meeting-moderator-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub routes live meeting traffic (utterances, topic changes, interventions,
// status) to the websocket clients watching each meeting. When Redis is
// configured, messages also fan out to other instances.
type Hub struct {
	// Registered clients map: meeting ID -> list of watchers.
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.MeetingID] = append(h.clients[client.MeetingID], client)
			h.mu.Unlock()
			h.logger.Info("hub", "client registered", map[string]interface{}{"meeting_id": client.MeetingID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.MeetingID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.MeetingID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.MeetingID]) == 0 {
					delete(h.clients, client.MeetingID)
					h.logger.Info("hub", "last client left meeting", map[string]interface{}{"meeting_id": client.MeetingID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToMeeting sends a payload to every client watching a meeting,
// locally and (via Redis) on other instances.
func (h *Hub) BroadcastToMeeting(meetingID string, payload []byte) {
	h.sendLocal(meetingID, payload)

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"target_meeting_id": meetingID,
			"message":           json.RawMessage(payload),
		})
		h.rdb.Publish(context.Background(), clusterChannel, envelope)
	}
}

func (h *Hub) sendLocal(meetingID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[meetingID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("hub", "client send buffer full, dropping connection", map[string]interface{}{
				"meeting_id": meetingID,
			})
			// The unregister path owns close(client.Send); closing here too
			// would double-close when Run drains the channel.
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var envelope struct {
			TargetMeetingID string          `json:"target_meeting_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			h.logger.Warn("hub", "bad cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if envelope.TargetMeetingID == "" {
			continue
		}
		h.sendLocal(envelope.TargetMeetingID, envelope.Message)
	}
}
