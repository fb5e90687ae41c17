package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
	"go.uber.org/zap"
)

// journalEntry pairs an executed descriptor with its undo closure.
type journalEntry struct {
	descriptor types.CommandDescriptor
	undo       func() State
}

// Result reports a successfully applied command.
type Result struct {
	Version  uint64
	Metadata map[string]any
}

// Bus dispatches client commands into game strategies, strictly serialized
// per room. Commands take effect in submission order; the state version
// increases by exactly one per applied command.
type Bus struct {
	mu          sync.Mutex
	game        *Game
	timeout     time.Duration
	journal     []journalEntry
	journalSize int

	subMu   sync.Mutex
	nextSub int
	onExec  map[int]func(desc types.CommandDescriptor, version uint64)
}

// NewBus creates a command bus for the given game. timeout is the strategy
// execution budget; journalSize bounds the undo journal.
func NewBus(g *Game, timeout time.Duration, journalSize int) *Bus {
	if timeout <= 0 {
		timeout = 5 * time.Millisecond
	}
	if journalSize <= 0 {
		journalSize = 64
	}
	return &Bus{
		game:        g,
		timeout:     timeout,
		journalSize: journalSize,
		onExec:      make(map[int]func(types.CommandDescriptor, uint64)),
	}
}

// Submit validates, executes and applies one command. On any error the
// state is unchanged and no journal entry is written.
//
// The time budget is enforced by measuring the synchronous strategy call:
// strategies are pure and bounded by contract, so a measured check after
// execution rejects the outcome without needing cooperative cancellation.
func (b *Bus) Submit(desc types.CommandDescriptor) (*Result, *types.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	desc.Type = strings.TrimSpace(desc.Type)
	if desc.Type == "" {
		return nil, types.NewError(types.ErrValidation, "command type is required")
	}
	if !desc.IsSystem() && !b.game.Players.Has(desc.PlayerID) {
		return nil, types.NewError(types.ErrValidation, "unknown player %q", desc.PlayerID)
	}

	strategy := b.game.Strategy(desc.Type)
	if strategy == nil {
		return nil, types.NewError(types.ErrUnknownCommand, "no strategy registered for %q", desc.Type)
	}

	current, _ := b.game.States.Current()
	execCtx := &Context{
		State:    current.Clone(),
		Players:  b.game.Players,
		PlayerID: desc.PlayerID,
		Payload:  desc.Payload,
		Rand:     b.game.Rand,
	}

	started := time.Now()
	outcome, cmdErr := strategy.Execute(execCtx)
	elapsed := time.Since(started)

	gameLabel := string(b.game.Def.ID)
	metrics.CommandDuration.WithLabelValues(gameLabel, desc.Type).Observe(elapsed.Seconds())

	if elapsed > b.timeout {
		metrics.CommandsTotal.WithLabelValues(gameLabel, desc.Type, "timeout").Inc()
		return nil, types.NewError(types.ErrCommandTimeout, "strategy exceeded %s budget (took %s)", b.timeout, elapsed)
	}
	if cmdErr != nil {
		metrics.CommandsTotal.WithLabelValues(gameLabel, desc.Type, "rejected").Inc()
		return nil, cmdErr
	}

	next, applyErr := b.apply(outcome, current)
	if applyErr != nil {
		metrics.CommandsTotal.WithLabelValues(gameLabel, desc.Type, "fatal").Inc()
		return nil, applyErr
	}

	version := b.game.States.Replace(next)

	b.journal = append(b.journal, journalEntry{descriptor: desc, undo: outcome.GetUndo()})
	if len(b.journal) > b.journalSize {
		b.journal = b.journal[len(b.journal)-b.journalSize:]
	}

	metrics.CommandsTotal.WithLabelValues(gameLabel, desc.Type, "applied").Inc()
	for _, fn := range b.execSubs() {
		fn(desc, version)
	}

	return &Result{Version: version, Metadata: outcome.Metadata}, nil
}

// apply invokes the outcome against the authoritative state. A panic here
// is a strategy bug; it is confined and surfaced as a room-fatal error.
func (b *Bus) apply(outcome *Outcome, current State) (next State, fatal *types.Error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(context.Background(), "strategy apply panicked",
				zap.String("game", string(b.game.Def.ID)), zap.Any("panic", rec))
			next = nil
			fatal = types.NewError(types.ErrRoomTerminated, "internal error applying command")
		}
	}()
	return outcome.Apply(current), nil
}

// Undo rolls back the most recent command iff it was submitted by playerID.
// The restored state lands at exactly +2 versus the pre-command version.
func (b *Bus) Undo(playerID types.PlayerIDType) (*Result, *types.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.journal) == 0 {
		return nil, types.NewError(types.ErrUndoForbidden, "nothing to undo")
	}
	top := b.journal[len(b.journal)-1]
	if top.descriptor.PlayerID != playerID {
		return nil, types.NewError(types.ErrUndoForbidden, "last command was not submitted by %q", playerID)
	}

	b.journal = b.journal[:len(b.journal)-1]
	version := b.game.States.Replace(top.undo())

	metrics.CommandsTotal.WithLabelValues(string(b.game.Def.ID), top.descriptor.Type, "undone").Inc()
	return &Result{Version: version}, nil
}

// JournalLen returns the current undo journal depth.
func (b *Bus) JournalLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.journal)
}

// OnExecuted subscribes to applied commands. The synchronizer uses this to
// schedule a delta on the next tick.
func (b *Bus) OnExecuted(fn func(desc types.CommandDescriptor, version uint64)) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.onExec[id] = fn
	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.onExec, id)
	}
}

func (b *Bus) execSubs() []func(types.CommandDescriptor, uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	out := make([]func(types.CommandDescriptor, uint64), 0, len(b.onExec))
	for _, fn := range b.onExec {
		out = append(out, fn)
	}
	return out
}
