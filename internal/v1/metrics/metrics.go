package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game host.
//
// Naming convention: namespace_subsystem_name
// - namespace: game_host (application-level grouping)
// - subsystem: websocket, room, clock, command, sync (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, players)
// - Counter: Cumulative events (commands processed, rejections)
// - Histogram: Latency distributions (tick/command duration)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of registered rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks the number of players in each room
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_code"})

	// CommandsTotal counts commands dispatched through the command bus
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "command",
		Name:      "commands_total",
		Help:      "Total commands dispatched, by game, type and status",
	}, []string{"game", "type", "status"})

	// CommandDuration tracks strategy execution time against the 5ms budget
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_host",
		Subsystem: "command",
		Name:      "execution_seconds",
		Help:      "Strategy execution time",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05},
	}, []string{"game", "type"})

	// TickDuration tracks per-wake scheduler processing time
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "game_host",
		Subsystem: "clock",
		Name:      "tick_seconds",
		Help:      "Scheduler per-wake processing time",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	// SlowTicks counts wakes exceeding the warning threshold
	SlowTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "clock",
		Name:      "slow_ticks_total",
		Help:      "Total scheduler wakes exceeding the warning threshold",
	})

	// SkippedTicks counts ticks dropped by the accumulator clamp
	SkippedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "clock",
		Name:      "skipped_ticks_total",
		Help:      "Total ticks dropped by the spiral-of-death clamp",
	})

	// SyncMessages counts outbound delta and snapshot envelopes
	SyncMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "sync",
		Name:      "messages_total",
		Help:      "Total outbound state sync messages, by kind",
	}, []string{"kind"})

	// ReplayRejections counts inbound messages dropped by replay protection
	ReplayRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "sync",
		Name:      "replay_rejections_total",
		Help:      "Total inbound messages rejected by sequence replay protection",
	})

	// RateLimitHits counts WebSocket requests rejected by rate limiting
	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "websocket",
		Name:      "rate_limit_hits_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"scope"})

	// CircuitBreakerState exposes the Redis circuit breaker state (0=closed 1=open 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "bus",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
