package handlers

import (
	"net/http"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/api/servers"
	"github.com/appdraft/appdraft-backend/pkg/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	Hub *events.Hub
}

func NewEventsHandler(server *servers.Server) *EventsHandler {
	return &EventsHandler{Hub: server.Events}
}

// Stream godoc
// @Summary      Subscribe to project lifecycle events
// @Tags         events
// @Param        id path string true "Project ID"
// @Router       /projects/{id}/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := events.NewClient(conn)
	h.Hub.Subscribe(projectID.String(), client)

	// Reads are drained only to detect the close; clients never send.
	go func() {
		defer func() {
			h.Hub.Unsubscribe(projectID.String(), client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
