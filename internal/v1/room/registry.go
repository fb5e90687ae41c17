package room

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/bus"
	"github.com/TheZedxD/HomeGameServer/internal/v1/clock"
	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
	codeRetries      = 5

	// emptyRoomGrace is how long an empty room survives so its players can
	// reconnect before it is destroyed.
	emptyRoomGrace = 30 * time.Second

	idleSweepInterval = time.Minute
)

// Registry owns every live room: creation with unique codes, lookup,
// scheduler registration, bus relay wiring, empty-room grace cleanup and
// idle collection.
type Registry struct {
	cfg        *config.Config
	games      *game.Registry
	scheduler  *clock.Scheduler
	busSvc     *bus.Service
	instanceID string

	mu             gosync.Mutex
	rooms          map[types.RoomCodeType]*Room
	pendingCleanup map[types.RoomCodeType]*time.Timer
	relayCancel    map[types.RoomCodeType]context.CancelFunc

	stopChan chan struct{}
	stopOnce gosync.Once
	wg       gosync.WaitGroup
	subWg    gosync.WaitGroup
}

// NewRegistry creates an empty registry. busSvc may be nil in
// single-instance mode.
func NewRegistry(cfg *config.Config, games *game.Registry, scheduler *clock.Scheduler, busSvc *bus.Service) *Registry {
	return &Registry{
		cfg:            cfg,
		games:          games,
		scheduler:      scheduler,
		busSvc:         busSvc,
		instanceID:     uuid.New().String(),
		rooms:          make(map[types.RoomCodeType]*Room),
		pendingCleanup: make(map[types.RoomCodeType]*time.Timer),
		relayCancel:    make(map[types.RoomCodeType]context.CancelFunc),
		stopChan:       make(chan struct{}),
	}
}

// Start launches the idle-room sweeper.
func (reg *Registry) Start() {
	reg.wg.Add(1)
	go reg.sweepLoop()
}

// Stop halts the sweeper and terminates every room.
func (reg *Registry) Stop() {
	reg.stopOnce.Do(func() {
		close(reg.stopChan)
		reg.wg.Wait()
	})

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()
	for _, r := range rooms {
		reg.Destroy(r.Code(), "server shutting down")
	}
	// Relay subscribers exit once Destroy cancels their contexts.
	reg.subWg.Wait()
}

// Create allocates a room with a unique code and registers it with the
// tick scheduler. requestedCode, when non-empty, must be unused.
func (reg *Registry) Create(gameID types.GameIDType, requestedCode types.RoomCodeType, minPlayers, maxPlayers int) (*Room, *types.Error) {
	def := reg.games.Get(gameID)
	if def == nil {
		return nil, types.NewError(types.ErrValidation, "unknown game %q", gameID)
	}

	if minPlayers <= 0 {
		minPlayers = def.MinPlayers
	}
	if maxPlayers <= 0 {
		maxPlayers = def.MaxPlayers
	}
	if maxPlayers > reg.cfg.MaxPlayersPerRoom {
		maxPlayers = reg.cfg.MaxPlayersPerRoom
	}
	if minPlayers > maxPlayers {
		return nil, types.NewError(types.ErrValidation, "minPlayers %d exceeds maxPlayers %d", minPlayers, maxPlayers)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(reg.rooms) >= reg.cfg.MaxRooms {
		return nil, types.NewError(types.ErrRoomNotJoinable, "server is at capacity (%d rooms)", reg.cfg.MaxRooms).WithRetry()
	}

	code := requestedCode
	if code != "" {
		if !types.RoomCodePattern.MatchString(string(code)) {
			return nil, types.NewError(types.ErrValidation, "room code must match %s", types.RoomCodePattern.String())
		}
		if _, taken := reg.rooms[code]; taken {
			return nil, types.NewError(types.ErrValidation, "room code %s is taken", code)
		}
	} else {
		var err *types.Error
		code, err = reg.generateCodeLocked()
		if err != nil {
			return nil, err
		}
	}

	r := New(code, def, minPlayers, maxPlayers, reg.cfg, reg.markEmpty)
	reg.rooms[code] = r
	reg.scheduler.RegisterRoom(r)
	if reg.busSvc != nil {
		reg.attachRelayLocked(r)
	}
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))

	logging.Info(context.Background(), "room created",
		zap.String("room_code", string(code)), zap.String("game", string(gameID)))
	return r, nil
}

// attachRelayLocked bridges the room onto the Redis bus: local broadcasts
// publish to the room channel, and events published by other instances
// hosting sessions of the same room fan out to local clients. Messages
// from this instance are dropped by sender id.
func (reg *Registry) attachRelayLocked(r *Room) {
	code := r.Code()
	r.SetRelay(func(env *types.ServerEnvelope) {
		_ = reg.busSvc.Publish(context.Background(), string(code), env.Event, env, reg.instanceID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	reg.relayCancel[code] = cancel
	reg.busSvc.Subscribe(ctx, string(code), &reg.subWg, func(ev bus.RoomEvent) {
		if ev.SenderID == reg.instanceID {
			return
		}
		var env types.ServerEnvelope
		if err := json.Unmarshal(ev.Payload, &env); err != nil {
			logging.Warn(ctx, "malformed relayed envelope", zap.String("room_code", string(code)), zap.Error(err))
			return
		}
		r.DeliverLocal(&env)
	})
}

// generateCodeLocked draws random codes until one is unused.
func (reg *Registry) generateCodeLocked() (types.RoomCodeType, *types.Error) {
	for attempt := 0; attempt < codeRetries; attempt++ {
		buf := make([]byte, roomCodeLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
			if err != nil {
				return "", types.NewError(types.ErrRoomNotJoinable, "code generation failed").WithRetry()
			}
			buf[i] = roomCodeAlphabet[n.Int64()]
		}
		code := types.RoomCodeType(buf)
		if _, taken := reg.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", types.NewError(types.ErrRoomNotJoinable, "could not allocate a unique room code").WithRetry()
}

// Get returns the room or nil.
func (reg *Registry) Get(code types.RoomCodeType) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// markEmpty schedules destruction after the reconnect grace period. A
// client connecting in the meantime cancels it via CancelCleanup.
func (reg *Registry) markEmpty(code types.RoomCodeType) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, pending := reg.pendingCleanup[code]; pending {
		return
	}
	reg.pendingCleanup[code] = time.AfterFunc(emptyRoomGrace, func() {
		reg.mu.Lock()
		r := reg.rooms[code]
		delete(reg.pendingCleanup, code)
		reg.mu.Unlock()
		if r != nil && r.ClientCount() == 0 {
			reg.Destroy(code, "room empty past grace period")
		}
	})
	logging.Info(context.Background(), "room empty, cleanup scheduled",
		zap.String("room_code", string(code)), zap.Duration("grace", emptyRoomGrace))
}

// CancelCleanup aborts a pending empty-room destruction, called when a
// client connects during the grace period.
func (reg *Registry) CancelCleanup(code types.RoomCodeType) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if timer, ok := reg.pendingCleanup[code]; ok {
		timer.Stop()
		delete(reg.pendingCleanup, code)
	}
}

// Destroy terminates and removes a room.
func (reg *Registry) Destroy(code types.RoomCodeType, reason string) {
	reg.mu.Lock()
	r := reg.rooms[code]
	delete(reg.rooms, code)
	if timer, ok := reg.pendingCleanup[code]; ok {
		timer.Stop()
		delete(reg.pendingCleanup, code)
	}
	if cancel, ok := reg.relayCancel[code]; ok {
		cancel()
		delete(reg.relayCancel, code)
	}
	count := len(reg.rooms)
	reg.mu.Unlock()

	if r == nil {
		return
	}
	reg.scheduler.UnregisterRoom(code)
	r.Terminate(reason)
	metrics.ActiveRooms.Set(float64(count))
}

func (reg *Registry) sweepLoop() {
	defer reg.wg.Done()
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-reg.stopChan:
			return
		case <-ticker.C:
			reg.collectIdle()
		}
	}
}

// collectIdle destroys lobby rooms with no command or membership activity
// past the idle timeout, plus any room already terminated. Rooms mid-game
// are left alone no matter how quiet they are.
func (reg *Registry) collectIdle() {
	cutoff := time.Now().Add(-reg.cfg.RoomIdleTimeout)

	// Snapshot first: Collectable takes the room lock, and rooms call back
	// into the registry while holding it.
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	var idle []types.RoomCodeType
	for _, r := range rooms {
		if r.Collectable(cutoff) {
			idle = append(idle, r.Code())
		}
	}
	for _, code := range idle {
		reg.Destroy(code, "room idle past timeout")
	}
}

// Presence returns the cross-instance bus service, or nil.
func (reg *Registry) Presence() *bus.Service {
	return reg.busSvc
}
