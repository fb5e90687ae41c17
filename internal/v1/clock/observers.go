package clock

import (
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Typed subscription methods. Each returns a cancel func that removes the
// observer; observers run on the scheduler goroutine.

// OnTick subscribes to every emitted tick.
func (s *Scheduler) OnTick(fn func(tick types.Tick, dt time.Duration)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onTick[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.onTick, id)
	}
}

// OnSnapshot subscribes to snapshot-interval events.
func (s *Scheduler) OnSnapshot(fn func(tick types.Tick)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onSnapshot[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.onSnapshot, id)
	}
}

// OnSlowTick subscribes to wakes exceeding the warning threshold.
func (s *Scheduler) OnSlowTick(fn func(d time.Duration)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onSlowTick[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.onSlowTick, id)
	}
}

// OnTickError subscribes to recovered panics from room tick callbacks.
func (s *Scheduler) OnTickError(fn func(code types.RoomCodeType, recovered any)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.onTickError[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.onTickError, id)
	}
}

func (s *Scheduler) tickSubs() []func(types.Tick, time.Duration) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]func(types.Tick, time.Duration), 0, len(s.onTick))
	for _, fn := range s.onTick {
		out = append(out, fn)
	}
	return out
}

func (s *Scheduler) snapshotSubs() []func(types.Tick) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]func(types.Tick), 0, len(s.onSnapshot))
	for _, fn := range s.onSnapshot {
		out = append(out, fn)
	}
	return out
}

func (s *Scheduler) slowTickSubs() []func(time.Duration) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]func(time.Duration), 0, len(s.onSlowTick))
	for _, fn := range s.onSlowTick {
		out = append(out, fn)
	}
	return out
}

func (s *Scheduler) tickErrorSubs() []func(types.RoomCodeType, any) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]func(types.RoomCodeType, any), 0, len(s.onTickError))
	for _, fn := range s.onTickError {
		out = append(out, fn)
	}
	return out
}
