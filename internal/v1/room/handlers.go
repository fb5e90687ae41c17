package room

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/fsm"
	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/sync"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Route dispatches one validated envelope from a connected client.
func (r *Room) Route(c types.ClientInterface, env *types.ClientEnvelope) {
	switch env.Event {
	case types.EventPlayerReady:
		r.handlePlayerReady(c, env.Payload)
	case types.EventStartGame:
		r.handleStartGame(c, env.Payload)
	case types.EventSubmitMove:
		r.handleSubmitMove(c, env.Payload)
	case types.EventUndoMove:
		r.handleUndoMove(c, env.Payload)
	case types.EventLeaveGame:
		r.handleLeaveGame(c, env.Payload)
	case types.EventChatMessage:
		r.handleChatMessage(c, env.Payload)
	case types.EventPing:
		r.handlePing(c, env.Payload)
	case types.EventRequestSync:
		r.handleRequestSync(c)
	default:
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrUnknownCommand, "unknown event %q", env.Event)))
	}
}

func (r *Room) handlePlayerReady(c types.ClientInterface, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.machine.Is(fsm.RoomLobby) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrInvalidTransition, "readiness can only change in the lobby")))
		return
	}
	p := r.players.Get(c.GetPlayerID())
	if p == nil {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "player is not in this room")))
		return
	}

	var payload types.PlayerReadyPayload
	_ = json.Unmarshal(raw, &payload)

	var ready bool
	if payload.Ready != nil {
		ready = *payload.Ready
		r.players.SetReady(p.ID, ready)
	} else {
		ready, _ = r.players.ToggleReady(p.ID)
	}

	if ready && p.FSM.Is(fsm.PlayerInLobby) {
		_ = p.FSM.Transition(fsm.PlayerReady, nil)
	} else if !ready && p.FSM.Is(fsm.PlayerReady) {
		_ = p.FSM.Transition(fsm.PlayerInLobby, nil)
	}

	r.touchLocked()
	r.broadcastRoomStateLocked()
}

func (r *Room) handleStartGame(c types.ClientInterface, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.GetPlayerID() != r.hostID {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "only the host can start the game")))
		return
	}
	if !r.machine.Is(fsm.RoomLobby) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrInvalidTransition, "game already started")))
		return
	}

	var payload types.StartGamePayload
	_ = json.Unmarshal(raw, &payload)

	count := r.players.Count()
	min := r.minPlayers
	if r.def.MinPlayers > min {
		min = r.def.MinPlayers
	}
	if count < min {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "%s needs at least %d players (have %d)", r.def.Name, min, count)))
		return
	}
	if count > r.maxPlayers {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrRoomFull, "%s seats at most %d players (have %d)", r.def.Name, r.maxPlayers, count)))
		return
	}
	if !payload.ForceStart && !r.players.AllReady() {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "not all players are ready")))
		return
	}

	if err := r.machine.Transition(fsm.RoomStarting, nil); err != nil {
		c.Send(types.NewErrorEnvelope(err))
		return
	}

	rng := game.NewRand(r.code, r.createdAt, r.cfg.DeterministicRNG)
	r.game = game.NewGame(r.def, r.players, rng)
	r.bus = game.NewBus(r.game, r.cfg.CommandTimeout, r.cfg.UndoJournalSize)
	r.synchronizer = sync.New(r.game.States, r.broadcast)

	for _, p := range r.players.All() {
		if p.FSM.Is(fsm.PlayerInLobby) {
			_ = p.FSM.Transition(fsm.PlayerReady, nil)
		}
		_ = p.FSM.Transition(fsm.PlayerPlaying, nil)
	}

	_ = r.machine.Transition(fsm.RoomPlaying, nil)
	r.touchLocked()
	logging.Info(r.logCtx(c.GetPlayerID()), "game started",
		zap.String("game", string(r.gameID)), zap.Int("players", count))

	r.broadcastRoomStateLocked()
	r.synchronizer.EmitSnapshot(0)
}

func (r *Room) handleSubmitMove(c types.ClientInterface, raw json.RawMessage) {
	r.mu.Lock()

	if r.bus == nil || !r.machine.Is(fsm.RoomPlaying) {
		r.mu.Unlock()
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrInvalidTransition, "no game in progress")))
		return
	}

	var payload types.SubmitMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Type == "" {
		r.mu.Unlock()
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "submitMove requires a command type")))
		return
	}

	result, cmdErr := r.bus.Submit(types.CommandDescriptor{
		Type:     payload.Type,
		Payload:  payload.Data,
		PlayerID: c.GetPlayerID(),
	})
	if cmdErr != nil {
		fatal := cmdErr.Code == types.ErrRoomTerminated
		r.mu.Unlock()
		c.Send(types.NewErrorEnvelope(cmdErr))
		if fatal {
			// An apply failure is unrecoverable: every subscriber is told
			// the room is gone.
			r.Terminate("internal command failure")
		}
		return
	}

	r.players.TouchActivity(c.GetPlayerID())
	r.touchLocked()
	r.afterCommandLocked(result)
	r.mu.Unlock()
}

// afterCommandLocked reacts to game-level outcomes: a completed game or a
// lobby vote returns the room to the lobby.
func (r *Room) afterCommandLocked(result *game.Result) {
	voteResult, _ := result.Metadata["voteResult"].(string)
	state, _ := r.game.States.Current()
	complete := state.StateHeader().IsComplete

	if voteResult == game.VoteLobby || complete {
		r.endGameLocked()
	}
}

// endGameLocked returns a finished game to the lobby through ROUND_END.
func (r *Room) endGameLocked() {
	if r.synchronizer != nil {
		// Final state reaches clients before the room state flips.
		r.synchronizer.EmitSnapshot(0)
	}

	_ = r.machine.Transition(fsm.RoomRoundEnd, nil)
	_ = r.machine.Transition(fsm.RoomLobby, nil)
	r.detachGameLocked()

	for _, p := range r.players.All() {
		p.Ready = false
		if p.FSM.Is(fsm.PlayerPlaying) {
			_ = p.FSM.Transition(fsm.PlayerInLobby, nil)
		}
	}
	logging.Info(r.logCtx(""), "game ended, room back in lobby")
	r.broadcastRoomStateLocked()
}

func (r *Room) handleUndoMove(c types.ClientInterface, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bus == nil || !r.machine.Is(fsm.RoomPlaying) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrInvalidTransition, "no game in progress")))
		return
	}

	var payload types.UndoMovePayload
	_ = json.Unmarshal(raw, &payload)

	if _, err := r.bus.Undo(c.GetPlayerID()); err != nil {
		c.Send(types.NewErrorEnvelope(err))
		return
	}
	r.touchLocked()
}

func (r *Room) handleLeaveGame(c types.ClientInterface, raw json.RawMessage) {
	r.mu.Lock()

	var payload types.LeaveGamePayload
	_ = json.Unmarshal(raw, &payload)

	p := r.players.Get(c.GetPlayerID())
	if p == nil {
		r.mu.Unlock()
		c.Disconnect()
		return
	}

	_ = p.FSM.Transition(fsm.PlayerLeft, map[string]any{"reason": payload.Reason})
	r.players.Remove(p.ID)
	r.cmu.Lock()
	delete(r.clients, c.GetSessionID())
	empty := len(r.clients) == 0
	r.cmu.Unlock()
	logging.Info(r.logCtx(p.ID), "player left", zap.String("reason", payload.Reason))

	if p.ID == r.hostID {
		r.hostID = ""
		if next := r.players.LongestConnected(p.ID); next != nil {
			r.hostID = next.ID
			logging.Info(r.logCtx(next.ID), "host promoted")
		}
	}

	// A seated player leaving mid-game ends the game for everyone.
	if r.game != nil && (r.machine.Is(fsm.RoomPlaying) || r.machine.Is(fsm.RoomPaused)) {
		if r.machine.Is(fsm.RoomPaused) {
			_ = r.machine.Transition(fsm.RoomPlaying, nil)
		}
		r.endGameLocked()
	} else {
		r.broadcastRoomStateLocked()
	}

	r.touchLocked()
	r.mu.Unlock()

	c.Disconnect()
	if empty && r.onEmpty != nil {
		r.onEmpty(r.code)
	}
}

func (r *Room) handleChatMessage(c types.ClientInterface, raw json.RawMessage) {
	var payload types.ChatMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "chat message must not be empty")))
		return
	}
	if payload.Type == "" {
		payload.Type = "text"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.players.Has(c.GetPlayerID()) {
		c.Send(types.NewErrorEnvelope(types.NewError(types.ErrValidation, "player is not in this room")))
		return
	}
	body := types.ChatBody{
		SenderID:   c.GetPlayerID(),
		SenderName: c.GetDisplayName(),
		Message:    payload.Message,
		Type:       payload.Type,
		ServerTime: time.Now().UnixMilli(),
	}
	r.chat = append(r.chat, body)
	if len(r.chat) > maxChatHistory {
		r.chat = r.chat[len(r.chat)-maxChatHistory:]
	}

	r.broadcast(&types.ServerEnvelope{
		Event:      types.EventChatMessage,
		ServerTime: body.ServerTime,
		Body:       body,
	})
}

func (r *Room) handlePing(c types.ClientInterface, raw json.RawMessage) {
	var payload types.PingPayload
	_ = json.Unmarshal(raw, &payload)
	c.Send(&types.ServerEnvelope{
		Event: types.EventPong,
		Body: types.PongBody{
			ClientTime: payload.ClientTime,
			ServerTime: time.Now().UnixMilli(),
		},
		Priority: true,
	})
}

func (r *Room) handleRequestSync(c types.ClientInterface) {
	r.mu.Lock()
	s := r.synchronizer
	body := r.roomStateBodyLocked()
	r.mu.Unlock()

	if s != nil {
		env, err := s.SnapshotEnvelope(0)
		if err != nil {
			c.Send(types.NewErrorEnvelope(err))
			return
		}
		c.Send(env)
		return
	}
	c.Send(&types.ServerEnvelope{
		Event:      types.EventRoomStateUpdate,
		ServerTime: time.Now().UnixMilli(),
		Body:       body,
	})
}
