package types

import (
	"encoding/json"
	"regexp"
)

// --- Core Domain Types ---

// PlayerIDType is the stable, opaque identifier of a player. It survives
// disconnects; a rejoining player keeps the same id with a new session.
type PlayerIDType string

// RoomCodeType identifies a room: six uppercase alphanumeric characters.
type RoomCodeType string

// SessionIDType identifies one transport connection. A player that
// reconnects receives a fresh session id.
type SessionIDType string

// DisplayNameType is the human-readable name for a player.
type DisplayNameType string

// GameIDType identifies a registered game definition (e.g. "checkers").
type GameIDType string

// Tick is the integer count of the fixed-rate simulation clock.
type Tick uint64

// Input validation patterns from the wire contract.
var (
	RoomCodePattern    = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	GameIDPattern      = regexp.MustCompile(`^[a-z0-9-]+$`)
	DisplayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]{1,50}$`)
)

// RoomStatus is the lobby-facing summary of a room's lifecycle, derived
// from the room FSM state for roomStateUpdate broadcasts.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusReady   RoomStatus = "ready"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusPaused  RoomStatus = "paused"
	RoomStatusEnded   RoomStatus = "ended"
)

// --- Command Types ---

// CommandDescriptor is the authenticated unit of work submitted to a room.
// PlayerID is empty for system commands (e.g. dealer advancement).
type CommandDescriptor struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	PlayerID PlayerIDType    `json:"playerId"`
}

// IsSystem reports whether the command originates from the runtime itself
// rather than a connected player.
func (d CommandDescriptor) IsSystem() bool {
	return d.PlayerID == ""
}

// --- Interfaces ---

// ClientInterface is the behavior the room runtime needs from a transport
// session. It decouples the room package from the websocket transport.
type ClientInterface interface {
	GetSessionID() SessionIDType
	GetPlayerID() PlayerIDType
	GetDisplayName() DisplayNameType
	Send(env *ServerEnvelope)
	Disconnect()
}

// RoomLifecycle is the subset of room behavior the transport layer drives.
type RoomLifecycle interface {
	Code() RoomCodeType
	HandleClientConnect(c ClientInterface)
	HandleClientDisconnect(c ClientInterface)
	Route(c ClientInterface, env *ClientEnvelope)
}
