package handler

import (
	"meeting-moderator-be/internal/pkg/logger"
	"meeting-moderator-be/internal/store"
	internalWS "meeting-moderator-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// LiveHandler upgrades websocket requests for live meeting streams.
type LiveHandler struct {
	store  *store.Store
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewLiveHandler(sessionStore *store.Store, hub *internalWS.Hub, log logger.ILogger) *LiveHandler {
	return &LiveHandler{
		store:  sessionStore,
		hub:    hub,
		logger: log,
	}
}

func (h *LiveHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/meetings/:id", h.ServeWs)
}

// ServeWs hijacks the connection and attaches it to the hub for one meeting.
func (h *LiveHandler) ServeWs(c *fiber.Ctx) error {
	meetingID := c.Params("id")
	if meetingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing meeting id"})
	}

	if !h.store.Exists(meetingID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown meeting"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("live", "websocket session started", map[string]interface{}{"meeting_id": meetingID})
			internalWS.ServeWs(h.hub, conn, meetingID)
			h.logger.Info("live", "websocket session ended", map[string]interface{}{"meeting_id": meetingID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
