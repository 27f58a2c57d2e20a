package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/config"
)

// Client is one live websocket connection for one authenticated user.
type Client struct {
	conn   *websocket.Conn
	userID int64
	connID string

	send chan []byte
	done chan struct{}

	gateway *Gateway
	cfg     config.WSConfig
	log     *zap.SugaredLogger
}

// ConnID returns the unique id for this connection.
func (c *Client) ConnID() string {
	return c.connID
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// enqueue hands a pre-marshalled payload to the write pump. A full buffer
// means the peer has stopped draining; the connection is torn down rather
// than letting one slow reader stall the hub.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		c.log.Warnw("send buffer full, dropping connection", "user_id", c.userID, "conn_id", c.connID)
		c.close()
	}
}

func (c *Client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// readPump consumes inbound frames until the connection drops. Pongs refresh
// the read deadline and the presence mirror TTL.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.gateway.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.gateway.heartbeat(c)
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debugw("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
		c.gateway.dispatch(c, payload)
	}
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
