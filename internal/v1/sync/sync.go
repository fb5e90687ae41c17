package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// DeltaBody is the body of a gameStateUpdate envelope.
type DeltaBody struct {
	Ops []Op `json:"ops"`
}

// Synchronizer batches state changes per room and emits wire messages on
// clock boundaries: deltas on ticks where the state changed, full
// snapshots on the snapshot cadence and on demand.
type Synchronizer struct {
	mu        gosync.Mutex
	states    *game.StateManager
	broadcast func(*types.ServerEnvelope)
	cancel    func()

	last        map[string]any
	lastVersion uint64
	dirty       bool
}

// New wires a synchronizer to a state manager. broadcast delivers an
// envelope to every client in the room.
func New(states *game.StateManager, broadcast func(*types.ServerEnvelope)) *Synchronizer {
	s := &Synchronizer{
		states:    states,
		broadcast: broadcast,
	}
	s.cancel = states.OnChange(func(version uint64, _ game.State) {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	})
	return s
}

// Close detaches the synchronizer from the state manager.
func (s *Synchronizer) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// FlushDelta emits a delta if the state changed since the last emission.
// The first emission is always a snapshot.
func (s *Synchronizer) FlushDelta(tick types.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}

	state, version := s.states.Current()
	doc, err := Render(state)
	if err != nil {
		logging.Error(context.Background(), "state render failed", zap.Error(err))
		return
	}

	if s.last == nil {
		s.emitSnapshotLocked(doc, version, tick)
		return
	}

	ops := Diff(s.last, doc)
	s.last = doc
	s.lastVersion = version
	s.dirty = false
	if len(ops) == 0 {
		return
	}

	s.broadcast(&types.ServerEnvelope{
		Event:      types.EventGameStateUpdate,
		Version:    version,
		Tick:       tick,
		ServerTime: time.Now().UnixMilli(),
		Kind:       types.SyncKindDelta,
		Body:       DeltaBody{Ops: ops},
		Checksum:   Checksum(doc),
	})
	metrics.SyncMessages.WithLabelValues(string(types.SyncKindDelta)).Inc()
}

// EmitSnapshot broadcasts a full snapshot and resets the delta baseline.
func (s *Synchronizer) EmitSnapshot(tick types.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, version := s.states.Current()
	doc, err := Render(state)
	if err != nil {
		logging.Error(context.Background(), "state render failed", zap.Error(err))
		return
	}
	s.emitSnapshotLocked(doc, version, tick)
}

func (s *Synchronizer) emitSnapshotLocked(doc map[string]any, version uint64, tick types.Tick) {
	s.last = doc
	s.lastVersion = version
	s.dirty = false

	s.broadcast(snapshotEnvelope(doc, version, tick))
	metrics.SyncMessages.WithLabelValues(string(types.SyncKindSnapshot)).Inc()
}

// SnapshotEnvelope renders the current state as a snapshot envelope
// without broadcasting. Used to reconcile one client on request or join.
func (s *Synchronizer) SnapshotEnvelope(tick types.Tick) (*types.ServerEnvelope, *types.Error) {
	state, version := s.states.Current()
	doc, err := Render(state)
	if err != nil {
		return nil, types.NewError(types.ErrRoomTerminated, "state render failed")
	}
	return snapshotEnvelope(doc, version, tick), nil
}

func snapshotEnvelope(doc map[string]any, version uint64, tick types.Tick) *types.ServerEnvelope {
	return &types.ServerEnvelope{
		Event:      types.EventGameStateSnapshot,
		Version:    version,
		Tick:       tick,
		ServerTime: time.Now().UnixMilli(),
		Kind:       types.SyncKindSnapshot,
		Body:       doc,
		Checksum:   Checksum(doc),
	}
}
