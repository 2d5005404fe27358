package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the socket, sends it the current status and pumps until the peer
// goes away.
func ServeWs(hub *Hub, c *websocket.Conn, clientID string, initial []byte) {
	client := &Client{Hub: hub, Conn: c, ClientID: clientID, Send: make(chan []byte, 16)}
	if initial != nil {
		client.Send <- initial
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
