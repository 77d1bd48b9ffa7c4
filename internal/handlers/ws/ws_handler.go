// internal/handlers/ws/ws_handler.go
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arborlead-service/internal/middleware"
	"arborlead-service/internal/pkg/response"
	ws "arborlead-service/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated clients onto the hub.
type WSHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *ws.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Connect runs behind the auth middleware; the token arrives via the
// `token` query parameter since browsers cannot set headers on
// websocket upgrades.
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "websocket upgrade failed", err)
		return
	}

	client := ws.NewClient(h.hub, conn, userID, h.logger)
	client.Start()
}
