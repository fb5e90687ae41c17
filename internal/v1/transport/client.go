// Package transport adapts the client protocol to WebSocket: connection
// upgrade, envelope validation, replay protection and the read/write pumps.
package transport

import (
	"context"
	"encoding/json"
	"strings"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/sync"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer         = 256
	prioritySendBuffer = 16
)

// Client is one WebSocket session. Outbound traffic flows through two
// channels: prioritySend drains before send, so errors and pongs are not
// delayed behind state updates.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	sessionID   types.SessionIDType
	playerID    types.PlayerIDType
	displayName types.DisplayNameType

	send         chan *types.ServerEnvelope
	prioritySend chan *types.ServerEnvelope

	guard *sync.SequenceGuard

	mu   gosync.Mutex
	room types.RoomLifecycle

	done      chan struct{}
	closeOnce gosync.Once
}

var _ types.ClientInterface = (*Client)(nil)

func (c *Client) GetSessionID() types.SessionIDType {
	return c.sessionID
}

func (c *Client) GetPlayerID() types.PlayerIDType {
	return c.playerID
}

func (c *Client) GetDisplayName() types.DisplayNameType {
	return c.displayName
}

// Send enqueues an envelope for delivery. A full buffer means the consumer
// cannot keep up; the session is dropped rather than blocking the room.
func (c *Client) Send(env *types.ServerEnvelope) {
	ch := c.send
	if env.Priority {
		ch = c.prioritySend
	}
	select {
	case ch <- env:
	case <-c.done:
	default:
		logging.Warn(c.logCtx(), "slow consumer, dropping session")
		c.Disconnect()
	}
}

// Disconnect tears the session down exactly once: the room is notified,
// presence is withdrawn and both pumps unwind.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		metrics.DecConnection()

		c.mu.Lock()
		r := c.room
		c.room = nil
		c.mu.Unlock()

		if r != nil {
			r.HandleClientDisconnect(c)
			if presence := c.hub.registry.Presence(); presence != nil {
				_ = presence.PresenceRemove(context.Background(), string(r.Code()), string(c.playerID))
			}
		}
		logging.Info(c.logCtx(), "session closed")
	})
}

func (c *Client) currentRoom() types.RoomLifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) bindRoom(r types.RoomLifecycle) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// readPump decodes, validates and routes inbound envelopes until the
// connection drops.
func (c *Client) readPump() {
	defer c.Disconnect()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(c.logCtx(), "unexpected close", zap.Error(err))
			}
			return
		}

		var env types.ClientEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "malformed envelope")))
			continue
		}
		c.handleEnvelope(&env)
	}
}

// handleEnvelope runs the inbound gauntlet: schema validation, protocol
// version, rate limit, replay protection, then routing.
func (c *Client) handleEnvelope(env *types.ClientEnvelope) {
	if err := c.hub.validateEnvelope(env); err != nil {
		c.Send(types.NewErrorEnvelope(err))
		return
	}

	if major, _, _ := strings.Cut(env.Version, "."); major != types.ProtocolMajor {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation,
			"unsupported protocol version %q (want major %s)", env.Version, types.ProtocolMajor)))
		return
	}

	if !c.hub.limiter.AllowMessage(context.Background(), string(c.playerID)) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrRateLimit, "message rate limit exceeded").WithRetry()))
		return
	}

	if err := c.guard.Check(env.Seq); err != nil {
		c.Send(types.NewErrorEnvelope(err))
		return
	}

	r := c.currentRoom()
	if r == nil {
		// Until a room is bound, only room entry and ping are meaningful.
		switch env.Event {
		case types.EventCreateGame:
			c.hub.handleCreateGame(c, env)
		case types.EventJoinGame:
			c.hub.handleJoinGame(c, env)
		case types.EventPing:
			c.handleUnboundPing(env)
		default:
			c.Send(types.NewErrorEnvelope(types.NewError(types.ErrRoomNotFound, "join or create a room first")))
		}
		return
	}
	r.Route(c, env)
}

func (c *Client) handleUnboundPing(env *types.ClientEnvelope) {
	var payload types.PingPayload
	_ = json.Unmarshal(env.Payload, &payload)
	c.Send(&types.ServerEnvelope{
		Event:    types.EventPong,
		Body:     types.PongBody{ClientTime: payload.ClientTime, ServerTime: time.Now().UnixMilli()},
		Priority: true,
	})
}

// writePump drains the outbound channels, priority first, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Disconnect()
	}()

	for {
		// Priority messages jump the queue.
		select {
		case env := <-c.prioritySend:
			if !c.write(env) {
				return
			}
			continue
		default:
		}

		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case env := <-c.prioritySend:
			if !c.write(env) {
				return
			}
		case env := <-c.send:
			if !c.write(env) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(env *types.ServerEnvelope) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(env); err != nil {
		logging.Warn(c.logCtx(), "write failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Client) logCtx() context.Context {
	ctx := context.WithValue(context.Background(), logging.PlayerIDKey, string(c.playerID))
	if r := c.currentRoom(); r != nil {
		ctx = context.WithValue(ctx, logging.RoomCodeKey, string(r.Code()))
	}
	return ctx
}
