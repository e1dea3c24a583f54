package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the hub for one meeting.
func ServeWs(hub *Hub, c *websocket.Conn, meetingID string) {
	client := &Client{Hub: hub, Conn: c, MeetingID: meetingID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // runs in the handler's goroutine
}
