// Package clock drives every room at a fixed tick rate from a single
// logical scheduler. Rooms observe the fixed timestep, never the measured
// wall-clock delta; an accumulator clamp prevents spiral-of-death after a
// stall.
package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
	"github.com/TheZedxD/HomeGameServer/internal/v1/metrics"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
	"go.uber.org/zap"
)

// RoomTicker is the per-room callback surface the scheduler drives.
type RoomTicker interface {
	Code() types.RoomCodeType
	Tick(tick types.Tick, dt time.Duration)
	Snapshot(tick types.Tick)
}

// Options configures a Scheduler. Zero fields fall back to defaults.
type Options struct {
	TickInterval     time.Duration // fixed timestep (1s / TICK_RATE)
	SnapshotInterval time.Duration // wall-time spacing of snapshot events
	MaxAccumulated   time.Duration // accumulator clamp, default 100ms
	WarningThreshold time.Duration // slow-tick threshold, default 10ms
}

const (
	defaultMaxAccumulated   = 100 * time.Millisecond
	defaultWarningThreshold = 10 * time.Millisecond
)

// Scheduler produces monotonically increasing ticks and dispatches them to
// every registered room. Room tick panics are confined to the offending
// room and surfaced as tick errors; the scheduler never halts.
type Scheduler struct {
	opts Options

	mu      sync.Mutex
	rooms   map[types.RoomCodeType]RoomTicker
	pending map[types.RoomCodeType]RoomTicker // applied at the next tick boundary
	removed map[types.RoomCodeType]struct{}

	currentTick  atomic.Uint64
	skippedTicks atomic.Uint64
	paused       atomic.Bool

	accumulator  time.Duration
	lastWake     time.Time
	lastSnapshot time.Time

	stats *rollingStats

	subMu       sync.Mutex
	nextSub     int
	onTick      map[int]func(tick types.Tick, dt time.Duration)
	onSnapshot  map[int]func(tick types.Tick)
	onSlowTick  map[int]func(d time.Duration)
	onTickError map[int]func(code types.RoomCodeType, recovered any)

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewScheduler creates a stopped Scheduler with the given options.
func NewScheduler(opts Options) *Scheduler {
	if opts.MaxAccumulated <= 0 {
		opts.MaxAccumulated = defaultMaxAccumulated
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = defaultWarningThreshold
	}
	return &Scheduler{
		opts:        opts,
		rooms:       make(map[types.RoomCodeType]RoomTicker),
		pending:     make(map[types.RoomCodeType]RoomTicker),
		removed:     make(map[types.RoomCodeType]struct{}),
		stats:       newRollingStats(1000),
		onTick:      make(map[int]func(types.Tick, time.Duration)),
		onSnapshot:  make(map[int]func(types.Tick)),
		onSlowTick:  make(map[int]func(time.Duration)),
		onTickError: make(map[int]func(types.RoomCodeType, any)),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the scheduler loop.
func (s *Scheduler) Start() {
	if s.running.CompareAndSwap(false, true) {
		s.lastWake = time.Now()
		s.lastSnapshot = s.lastWake
		s.wg.Add(1)
		go s.loop()
	}
}

// Stop halts the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.running.CompareAndSwap(true, false) {
			close(s.stopChan)
			s.wg.Wait()
		}
	})
}

// Pause halts tick increments. Resume continues without a tick jump.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
}

// Resume restarts tick production after Pause.
func (s *Scheduler) Resume() {
	s.paused.Store(false)
}

// CurrentTick returns the last emitted tick number.
func (s *Scheduler) CurrentTick() types.Tick {
	return types.Tick(s.currentTick.Load())
}

// SkippedTicks returns the count of ticks dropped by the accumulator clamp.
func (s *Scheduler) SkippedTicks() uint64 {
	return s.skippedTicks.Load()
}

// RegisterRoom schedules r for ticks starting at the next tick boundary.
// Safe to call from any goroutine.
func (s *Scheduler) RegisterRoom(r RoomTicker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removed, r.Code())
	s.pending[r.Code()] = r
}

// UnregisterRoom removes the room at the next tick boundary.
func (s *Scheduler) UnregisterRoom(code types.RoomCodeType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, code)
	s.removed[code] = struct{}{}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.wake(time.Now())
		}
	}
}

// wake runs one scheduler wake-up: accumulate, clamp, emit due ticks and
// snapshots, record telemetry. Separated from loop for tests.
func (s *Scheduler) wake(now time.Time) {
	start := time.Now()

	delta := now.Sub(s.lastWake)
	s.lastWake = now

	if s.paused.Load() {
		// Wall time spent paused never accumulates, so resuming does not
		// produce a burst of catch-up ticks.
		return
	}

	s.accumulator += delta
	if s.accumulator > s.opts.MaxAccumulated {
		excess := s.accumulator - s.opts.MaxAccumulated
		skipped := uint64(excess / s.opts.TickInterval)
		if skipped > 0 {
			s.skippedTicks.Add(skipped)
			metrics.SkippedTicks.Add(float64(skipped))
		}
		s.accumulator = s.opts.MaxAccumulated
	}

	for s.accumulator >= s.opts.TickInterval {
		s.accumulator -= s.opts.TickInterval
		tick := types.Tick(s.currentTick.Add(1))
		s.emitTick(tick)
	}

	if now.Sub(s.lastSnapshot) >= s.opts.SnapshotInterval {
		s.lastSnapshot = now
		s.emitSnapshot(types.Tick(s.currentTick.Load()))
	}

	elapsed := time.Since(start)
	s.stats.record(elapsed)
	metrics.TickDuration.Observe(elapsed.Seconds())
	if elapsed > s.opts.WarningThreshold {
		metrics.SlowTicks.Inc()
		for _, fn := range s.slowTickSubs() {
			fn(elapsed)
		}
	}
}

// emitTick applies pending registrations and dispatches the tick to every
// room concurrently, confining panics to the offending room.
func (s *Scheduler) emitTick(tick types.Tick) {
	s.mu.Lock()
	for code, r := range s.pending {
		s.rooms[code] = r
		delete(s.pending, code)
	}
	for code := range s.removed {
		delete(s.rooms, code)
		delete(s.removed, code)
	}
	rooms := make([]RoomTicker, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, fn := range s.tickSubs() {
		fn(tick, s.opts.TickInterval)
	}

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func(r RoomTicker) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error(context.Background(), "room tick panicked",
						zap.String("room_code", string(r.Code())), zap.Any("panic", rec))
					for _, fn := range s.tickErrorSubs() {
						fn(r.Code(), rec)
					}
				}
			}()
			r.Tick(tick, s.opts.TickInterval)
		}(r)
	}
	wg.Wait()
}

func (s *Scheduler) emitSnapshot(tick types.Tick) {
	s.mu.Lock()
	rooms := make([]RoomTicker, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, fn := range s.snapshotSubs() {
		fn(tick)
	}

	for _, r := range rooms {
		func(r RoomTicker) {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error(context.Background(), "room snapshot panicked",
						zap.String("room_code", string(r.Code())), zap.Any("panic", rec))
				}
			}()
			r.Snapshot(tick)
		}(r)
	}
}

// Stats returns telemetry over the last 1000 wakes.
func (s *Scheduler) Stats() TickStats {
	return s.stats.snapshot()
}
