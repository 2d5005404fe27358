package controller

import (
	"encoding/json"

	"casebook/internal/pkg/serverutils"
	"casebook/internal/session"
	ws "casebook/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ISessionSocketController interface {
	RegisterRoutes(r fiber.Router)
}

type sessionSocketController struct {
	hub *ws.Hub
}

func NewSessionSocketController(hub *ws.Hub) ISessionSocketController {
	return &sessionSocketController{hub: hub}
}

func (c *sessionSocketController) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/session", websocket.New(c.serve))
}

func (c *sessionSocketController) serve(conn *websocket.Conn) {
	clientID, _ := conn.Locals(serverutils.LocalClientID).(string)
	store, _ := conn.Locals(serverutils.LocalSessionStore).(*session.Store)
	if clientID == "" || store == nil {
		conn.Close()
		return
	}

	initial, _ := json.Marshal(ws.StatusOf(store.Current()))
	ws.ServeWs(c.hub, conn, clientID, initial)
}
