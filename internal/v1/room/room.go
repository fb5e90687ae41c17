// Package room implements the authoritative room runtime: lifecycle FSM,
// membership, the attached game, and broadcast fan-out. A room owns its
// state; the transport only routes envelopes in and envelopes out.
package room

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/clock"
	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/fsm"
	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/sync"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

var (
	_ clock.RoomTicker    = (*Room)(nil)
	_ types.RoomLifecycle = (*Room)(nil)
)

// Room is one game room. All mutation happens under mu; the tick path and
// the transport path serialize on it, so strategies never run concurrently
// for a room.
type Room struct {
	code       types.RoomCodeType
	gameID     types.GameIDType
	def        *game.Definition
	minPlayers int
	maxPlayers int
	createdAt  time.Time
	cfg        *config.Config

	mu      gosync.Mutex
	machine *fsm.Machine
	players *game.PlayerManager

	// cmu guards clients and relay alone, so paths holding mu can fan out
	// through broadcast without re-entering mu.
	cmu     gosync.RWMutex
	clients map[types.SessionIDType]types.ClientInterface
	relay   func(*types.ServerEnvelope)

	hostID       types.PlayerIDType
	game         *game.Game
	bus          *game.Bus
	synchronizer *sync.Synchronizer
	chat         []types.ChatBody
	lastActivity time.Time
	terminated   bool

	// onEmpty fires once when the last client disconnects; the registry
	// schedules destruction after a grace period.
	onEmpty func(code types.RoomCodeType)
}

// maxChatHistory bounds the chat backlog replayed to joining clients.
const maxChatHistory = 100

// New creates a room in LOBBY with no players.
func New(code types.RoomCodeType, def *game.Definition, minPlayers, maxPlayers int, cfg *config.Config, onEmpty func(types.RoomCodeType)) *Room {
	r := &Room{
		code:         code,
		gameID:       def.ID,
		def:          def,
		minPlayers:   minPlayers,
		maxPlayers:   maxPlayers,
		createdAt:    time.Now(),
		cfg:          cfg,
		machine:      fsm.NewRoomMachine(),
		players:      game.NewPlayerManager(),
		clients:      make(map[types.SessionIDType]types.ClientInterface),
		lastActivity: time.Now(),
		onEmpty:      onEmpty,
	}
	// INITIALIZING is instantaneous: the room is joinable once constructed.
	_ = r.machine.Transition(fsm.RoomLobby, nil)
	return r
}

// Code implements clock.RoomTicker and types.RoomLifecycle.
func (r *Room) Code() types.RoomCodeType {
	return r.code
}

// GameID returns the attached game definition id.
func (r *Room) GameID() types.GameIDType {
	return r.gameID
}

// CreatedAt returns the room creation time; combined with the room code it
// seeds the deterministic PRNG.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Status derives the lobby-facing status from the FSM state.
func (r *Room) Status() types.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Room) statusLocked() types.RoomStatus {
	switch r.machine.Current() {
	case fsm.RoomPlaying, fsm.RoomStarting, fsm.RoomRoundEnd:
		return types.RoomStatusPlaying
	case fsm.RoomPaused:
		return types.RoomStatusPaused
	case fsm.RoomEnding, fsm.RoomTerminated:
		return types.RoomStatusEnded
	default:
		if r.players.Count() >= r.minPlayers && r.players.AllReady() {
			return types.RoomStatusReady
		}
		return types.RoomStatusWaiting
	}
}

// LastActivity returns the last command or membership activity, for idle
// collection.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Collectable reports whether the idle sweeper may destroy the room:
// terminated rooms always, lobby rooms once inactive past the cutoff.
// Rooms with a game in progress are never swept.
func (r *Room) Collectable(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated {
		return true
	}
	return r.machine.Is(fsm.RoomLobby) && r.lastActivity.Before(cutoff)
}

// ClientCount returns the number of connected transport sessions.
func (r *Room) ClientCount() int {
	r.cmu.RLock()
	defer r.cmu.RUnlock()
	return len(r.clients)
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

// Tick implements clock.RoomTicker: flush any pending delta for this tick.
func (r *Room) Tick(tick types.Tick, _ time.Duration) {
	r.mu.Lock()
	s := r.synchronizer
	r.mu.Unlock()
	if s != nil {
		s.FlushDelta(tick)
	}
}

// Snapshot implements clock.RoomTicker: emit a full snapshot on the
// snapshot cadence while a game is running.
func (r *Room) Snapshot(tick types.Tick) {
	r.mu.Lock()
	s := r.synchronizer
	playing := r.machine.Is(fsm.RoomPlaying) || r.machine.Is(fsm.RoomPaused)
	r.mu.Unlock()
	if s != nil && playing {
		s.EmitSnapshot(tick)
	}
}

// HandleClientConnect admits a new session: a fresh player joins the
// lobby, a returning player resumes their identity and session. Rejected
// clients are notified and dropped after the room lock is released, since
// Disconnect re-enters HandleClientDisconnect.
func (r *Room) HandleClientConnect(c types.ClientInterface) {
	if reject := r.admit(c); reject != nil {
		c.Send(reject)
		c.Disconnect()
	}
}

// admit runs the locked part of connection handling. A non-nil return is
// the rejection to deliver once the lock is dropped.
func (r *Room) admit(c types.ClientInterface) *types.ServerEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := r.logCtx(c.GetPlayerID())

	if r.terminated {
		return types.NewErrorEnvelope(types.NewError(types.ErrRoomTerminated, "room %s is terminated", r.code))
	}

	existing := r.players.Get(c.GetPlayerID())
	// Seats, not sockets: a disconnected player still occupies their seat
	// until they leave or the room ends.
	if existing == nil && r.players.Count() >= r.maxPlayers {
		return types.NewErrorEnvelope(types.NewError(types.ErrRoomFull, "room %s is full (%d/%d)", r.code, r.maxPlayers, r.maxPlayers))
	}
	if existing == nil && !r.machine.Is(fsm.RoomLobby) {
		return types.NewErrorEnvelope(types.NewError(types.ErrRoomNotJoinable, "room %s is not accepting new players", r.code))
	}

	r.cmu.Lock()
	r.clients[c.GetSessionID()] = c
	r.cmu.Unlock()

	if existing != nil {
		// Reconnect: same identity, new session.
		existing.SessionID = c.GetSessionID()
		existing.ConnectAttempts++
		if existing.FSM.Is(fsm.PlayerDisconnected) {
			target := fsm.PlayerInLobby
			if r.machine.Is(fsm.RoomPlaying) || r.machine.Is(fsm.RoomPaused) {
				target = fsm.PlayerPlaying
			}
			_ = existing.FSM.Transition(target, nil)
		}
		logging.Info(ctx, "player reconnected", zap.Int("attempts", existing.ConnectAttempts))

		r.resumeIfQuorateLocked()
		if r.synchronizer != nil {
			if env, err := r.synchronizer.SnapshotEnvelope(0); err == nil {
				c.Send(env)
			}
		}
	} else {
		p := &game.Player{
			ID:          c.GetPlayerID(),
			DisplayName: c.GetDisplayName(),
			SessionID:   c.GetSessionID(),
			FSM:         fsm.NewPlayerMachine(),
			JoinedAt:    time.Now(),
		}
		_ = p.FSM.Transition(fsm.PlayerConnected, nil)
		_ = p.FSM.Transition(fsm.PlayerJoining, nil)
		_ = p.FSM.Transition(fsm.PlayerInLobby, nil)
		r.players.Add(p)
		if r.hostID == "" {
			r.hostID = p.ID
		}
		logging.Info(ctx, "player joined", zap.Int("players", r.players.Count()))
	}

	// Replay the chat backlog so late joiners see the conversation.
	for i := range r.chat {
		c.Send(&types.ServerEnvelope{
			Event:      types.EventChatMessage,
			ServerTime: r.chat[i].ServerTime,
			Body:       r.chat[i],
		})
	}

	r.touchLocked()
	metrics.RoomPlayers.WithLabelValues(string(r.code)).Set(float64(r.players.Count()))
	r.broadcastRoomStateLocked()
	return nil
}

// HandleClientDisconnect marks the player disconnected. A running game
// pauses; identity survives for reconnection.
func (r *Room) HandleClientDisconnect(c types.ClientInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cmu.Lock()
	if _, ok := r.clients[c.GetSessionID()]; !ok {
		r.cmu.Unlock()
		return
	}
	delete(r.clients, c.GetSessionID())
	empty := len(r.clients) == 0
	r.cmu.Unlock()

	p := r.players.Get(c.GetPlayerID())
	if p != nil && p.SessionID == c.GetSessionID() && !p.FSM.Is(fsm.PlayerLeft) {
		_ = p.FSM.Transition(fsm.PlayerDisconnected, nil)
		p.LastDisconnect = time.Now()
		logging.Info(r.logCtx(p.ID), "player disconnected")

		if r.machine.Is(fsm.RoomPlaying) {
			if err := r.machine.Transition(fsm.RoomPaused, map[string]any{"reason": "player disconnected"}); err == nil {
				logging.Info(r.logCtx(p.ID), "game paused")
			}
		}
	}

	r.touchLocked()
	r.broadcastRoomStateLocked()

	if empty && r.onEmpty != nil {
		r.onEmpty(r.code)
	}
}

// resumeIfQuorateLocked resumes a paused game once every seated player is
// connected again.
func (r *Room) resumeIfQuorateLocked() {
	if !r.machine.Is(fsm.RoomPaused) {
		return
	}
	for _, p := range r.players.All() {
		if p.FSM.Is(fsm.PlayerDisconnected) {
			return
		}
	}
	if err := r.machine.Transition(fsm.RoomPlaying, map[string]any{"reason": "all players reconnected"}); err == nil {
		logging.Info(r.logCtx(""), "game resumed")
		r.broadcastRoomStateLocked()
	}
}

// broadcast fans an envelope out to every connected session and forwards
// it to other instances when a relay is installed. It takes only cmu, so
// command handlers holding mu and the synchronizer callback both deliver
// through it.
func (r *Room) broadcast(env *types.ServerEnvelope) {
	r.cmu.RLock()
	relay := r.relay
	r.cmu.RUnlock()

	r.DeliverLocal(env)
	if relay != nil {
		relay(env)
	}
}

// SetRelay installs the cross-instance publish hook. Envelopes arriving
// from other instances enter through DeliverLocal instead, so relayed
// traffic never loops.
func (r *Room) SetRelay(fn func(*types.ServerEnvelope)) {
	r.cmu.Lock()
	r.relay = fn
	r.cmu.Unlock()
}

// DeliverLocal fans an envelope out to the sessions on this instance only.
func (r *Room) DeliverLocal(env *types.ServerEnvelope) {
	r.cmu.RLock()
	clients := make([]types.ClientInterface, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.cmu.RUnlock()
	for _, c := range clients {
		c.Send(env)
	}
}

// roomStateBodyLocked builds the lobby metadata broadcast.
func (r *Room) roomStateBodyLocked() *types.RoomStateBody {
	body := &types.RoomStateBody{
		RoomCode:   r.code,
		GameType:   r.gameID,
		Status:     r.statusLocked(),
		MinPlayers: r.minPlayers,
		MaxPlayers: r.maxPlayers,
		HostID:     r.hostID,
	}
	for _, p := range r.players.All() {
		body.Players = append(body.Players, types.RoomPlayerInfo{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			IsReady:     p.Ready,
			IsHost:      p.ID == r.hostID,
		})
	}
	return body
}

func (r *Room) broadcastRoomStateLocked() {
	r.broadcast(&types.ServerEnvelope{
		Event:      types.EventRoomStateUpdate,
		ServerTime: time.Now().UnixMilli(),
		Body:       r.roomStateBodyLocked(),
	})
}

// Terminate tears the room down: every client is notified and dropped,
// the game detaches, and the FSM lands in TERMINATED through ENDING.
func (r *Room) Terminate(reason string) {
	r.mu.Lock()
	if r.terminated {
		r.mu.Unlock()
		return
	}
	r.terminated = true

	r.cmu.Lock()
	clients := r.clients
	r.clients = make(map[types.SessionIDType]types.ClientInterface)
	r.cmu.Unlock()

	r.detachGameLocked()

	if !r.machine.Is(fsm.RoomTerminated) {
		if r.machine.CanTransition(fsm.RoomEnding) {
			_ = r.machine.Transition(fsm.RoomEnding, nil)
		}
		_ = r.machine.Transition(fsm.RoomTerminated, map[string]any{"reason": reason})
	}
	metrics.RoomPlayers.DeleteLabelValues(string(r.code))
	logging.Info(r.logCtx(""), "room terminated", zap.String("reason", reason))
	r.mu.Unlock()

	// Sessions are dropped outside mu: Disconnect re-enters
	// HandleClientDisconnect.
	env := types.NewErrorEnvelope(types.NewError(types.ErrRoomTerminated, "room %s terminated: %s", r.code, reason))
	for _, c := range clients {
		c.Send(env)
		c.Disconnect()
	}
}

func (r *Room) detachGameLocked() {
	if r.synchronizer != nil {
		r.synchronizer.Close()
		r.synchronizer = nil
	}
	r.game = nil
	r.bus = nil
}

// logCtx builds a context carrying room and player fields for the logger.
func (r *Room) logCtx(playerID types.PlayerIDType) context.Context {
	ctx := context.WithValue(context.Background(), logging.RoomCodeKey, string(r.code))
	if playerID != "" {
		ctx = context.WithValue(ctx, logging.PlayerIDKey, string(playerID))
	}
	return ctx
}
