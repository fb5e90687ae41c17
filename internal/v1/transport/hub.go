package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/ratelimit"
	"github.com/TheZedxD/HomeGameServer/internal/v1/room"
	"github.com/TheZedxD/HomeGameServer/internal/v1/sync"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Hub owns the WebSocket entry point: upgrade, identity assignment and
// room binding. Once a client is bound, the room routes its envelopes.
type Hub struct {
	cfg      *config.Config
	registry *room.Registry
	limiter  *ratelimit.RateLimiter
	validate *validator.Validate
	upgrader websocket.Upgrader
}

// NewHub builds the hub with an origin check derived from ALLOWED_ORIGINS.
// An empty allowlist permits everything, for LAN deployments.
func NewHub(cfg *config.Config, registry *room.Registry, limiter *ratelimit.RateLimiter) *Hub {
	allowed := splitOrigins(cfg.AllowedOrigins)
	return &Hub{
		cfg:      cfg,
		registry: registry,
		limiter:  limiter,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowed {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ServeWs upgrades GET /ws. Identity comes from query parameters: a
// returning player passes its playerId to reclaim its seat; a new player
// gets a fresh id.
func (h *Hub) ServeWs(c *gin.Context) {
	if !h.limiter.CheckConnection(c) {
		return
	}

	displayName := c.Query("displayName")
	if !types.DisplayNamePattern.MatchString(displayName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName must be 1-50 characters (letters, digits, spaces, - or _)"})
		return
	}

	playerID := c.Query("playerId")
	if playerID == "" {
		playerID = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:          h,
		conn:         conn,
		sessionID:    types.SessionIDType(uuid.New().String()),
		playerID:     types.PlayerIDType(playerID),
		displayName:  types.DisplayNameType(displayName),
		send:         make(chan *types.ServerEnvelope, sendBuffer),
		prioritySend: make(chan *types.ServerEnvelope, prioritySendBuffer),
		guard:        sync.NewSequenceGuard(h.cfg.MaxSequenceDrift),
		done:         make(chan struct{}),
	}

	metrics.IncConnection()
	logging.Info(client.logCtx(), "session opened")

	go client.writePump()
	go client.readPump()
}

// validateEnvelope enforces the envelope schema and the per-event payload
// schema before anything reaches a room.
func (h *Hub) validateEnvelope(env *types.ClientEnvelope) *types.Error {
	if err := h.validate.Struct(env); err != nil {
		return types.NewError(types.ErrValidation, "invalid envelope: %v", err)
	}

	var payload any
	switch env.Event {
	case types.EventCreateGame:
		payload = &types.CreateGamePayload{}
	case types.EventJoinGame:
		payload = &types.JoinGamePayload{}
	case types.EventPlayerReady:
		payload = &types.PlayerReadyPayload{}
	case types.EventStartGame:
		payload = &types.StartGamePayload{}
	case types.EventSubmitMove:
		payload = &types.SubmitMovePayload{}
	case types.EventUndoMove:
		payload = &types.UndoMovePayload{}
	case types.EventLeaveGame:
		payload = &types.LeaveGamePayload{}
	case types.EventChatMessage:
		payload = &types.ChatMessagePayload{}
	case types.EventPing:
		payload = &types.PingPayload{}
	case types.EventRequestSync:
		payload = &types.RequestSyncPayload{}
	default:
		return nil // unknown events surface as UNKNOWN_COMMAND downstream
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return types.NewError(types.ErrValidation, "malformed %s payload", env.Event)
		}
	}
	if err := h.validate.Struct(payload); err != nil {
		return types.NewError(types.ErrValidation, "invalid %s payload: %v", env.Event, err)
	}
	return nil
}

// handleCreateGame allocates a room and binds the creator as its host.
func (h *Hub) handleCreateGame(c *Client, env *types.ClientEnvelope) {
	var payload types.CreateGamePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "malformed createGame payload")))
		return
	}
	if !payload.BoundsValid() {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "maxPlayers must be >= minPlayers")))
		return
	}
	gameID := types.GameIDType(strings.ToLower(payload.GameType))
	if !types.GameIDPattern.MatchString(string(gameID)) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "invalid gameType %q", payload.GameType)))
		return
	}

	r, cerr := h.registry.Create(gameID, types.RoomCodeType(payload.RoomCode), payload.MinPlayers, payload.MaxPlayers)
	if cerr != nil {
		c.Send(types.NewErrorEnvelope(cerr))
		return
	}

	h.bind(c, r)
}

// handleJoinGame binds the client to an existing room by code.
func (h *Hub) handleJoinGame(c *Client, env *types.ClientEnvelope) {
	var payload types.JoinGamePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "malformed joinGame payload")))
		return
	}

	code := types.RoomCodeType(strings.ToUpper(payload.RoomCode))
	r := h.registry.Get(code)
	if r == nil {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrRoomNotFound, "no room with code %s", code)))
		return
	}

	h.bind(c, r)
}

// bind attaches the client to the room and records presence.
func (h *Hub) bind(c *Client, r *room.Room) {
	h.registry.CancelCleanup(r.Code())
	c.bindRoom(r)
	r.HandleClientConnect(c)

	if presence := h.registry.Presence(); presence != nil {
		_ = presence.PresenceAdd(context.Background(), string(r.Code()), string(c.playerID))
	}
}
