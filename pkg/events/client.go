package events

import (
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait caps how long a single websocket write may stall before the
// connection is treated as dead.
const writeWait = 10 * time.Second

// Client adapts a websocket connection to the Subscriber interface.
type Client struct {
	conn *websocket.Conn
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Warn("websocket send failed", zap.Error(err))
		_ = c.conn.Close()
		return err
	}
	return nil
}

func (c *Client) Close() {
	_ = c.conn.Close()
}
