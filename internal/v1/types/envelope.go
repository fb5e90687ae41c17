package types

import "encoding/json"

// ProtocolMajor is the accepted major version of the client protocol.
const ProtocolMajor = "1"

// SyncKind distinguishes incremental updates from full reconciliation.
type SyncKind string

const (
	SyncKindDelta    SyncKind = "delta"
	SyncKindSnapshot SyncKind = "snapshot"
)

// ClientEnvelope wraps every inbound message. Seq is monotonically
// non-decreasing within a session and drives replay protection.
type ClientEnvelope struct {
	Version string          `json:"version" validate:"required"`
	Seq     uint64          `json:"seq"`
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEnvelope wraps every outbound message. Version/Tick/ServerTime are
// populated for state-bearing events; Priority routes the message through
// the client's priority channel.
type ServerEnvelope struct {
	Event      string   `json:"event"`
	Version    uint64   `json:"version,omitempty"`
	Tick       Tick     `json:"tick,omitempty"`
	ServerTime int64    `json:"serverTime,omitempty"`
	Kind       SyncKind `json:"kind,omitempty"`
	Body       any      `json:"body,omitempty"`
	Checksum   string   `json:"checksum,omitempty"`

	Priority bool `json:"-"`
}

// Inbound event names (client → server).
const (
	EventCreateGame  = "createGame"
	EventJoinGame    = "joinGame"
	EventPlayerReady = "playerReady"
	EventStartGame   = "startGame"
	EventSubmitMove  = "submitMove"
	EventUndoMove    = "undoMove"
	EventLeaveGame   = "leaveGame"
	EventChatMessage = "chatMessage"
	EventPing        = "ping"
	EventRequestSync = "requestSync"
)

// Outbound event names (server → client).
const (
	EventGameStateUpdate   = "gameStateUpdate"
	EventGameStateSnapshot = "gameStateSnapshot"
	EventRoomStateUpdate   = "roomStateUpdate"
	EventError             = "error"
	EventPong              = "pong"
)

// NewErrorEnvelope wraps an Error for transmission on the priority channel.
func NewErrorEnvelope(err *Error) *ServerEnvelope {
	return &ServerEnvelope{Event: EventError, Body: err, Priority: true}
}
