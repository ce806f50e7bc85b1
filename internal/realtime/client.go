package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
	RoleObserver    Role = "observer"
)

// Identity is what a connection proved at handshake time.
type Identity struct {
	Role        Role
	Participant *security.ParticipantIdentity
	Actor       *service.Actor
}

func (i Identity) Anonymous() bool { return i.Role == RoleObserver }

// Client is one websocket connection.
type Client struct {
	id        string
	resumeKey string
	identity  Identity
	conn      *websocket.Conn
	send      chan []byte
	logger    *slog.Logger

	// room is guarded by Hub.mu.
	room string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id, resumeKey string, identity Identity, conn *websocket.Conn, buffer int, logger *slog.Logger) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		id:        id,
		resumeKey: resumeKey,
		identity:  identity,
		conn:      conn,
		send:      make(chan []byte, buffer),
		logger:    logger.With("connection_id", id, "role", identity.Role),
		done:      make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) emit(event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		c.logger.Error("encode websocket frame failed", "event", event, "error", err)
		return
	}
	if !c.enqueue(frame) {
		c.logger.Warn("websocket send buffer full", "event", event)
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump decodes inbound frames and hands them to dispatch in order. It
// returns when the peer disconnects or the connection is closed locally.
func (c *Client) readPump(ctx context.Context, pongWait time.Duration, dispatch func(context.Context, *Client, Envelope)) {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Info("websocket read failed", "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.emit(ErrorEventFor(""), ErrorPayload{Code: "BAD_REQUEST", Message: "malformed frame"})
			continue
		}
		dispatch(ctx, c, env)
	}
}

// writePump owns all writes to the connection.
func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.drain()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("websocket close frame failed", "error", err)
			}
			return
		}
	}
}

// drain flushes frames that were queued before close.
func (c *Client) drain() {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
