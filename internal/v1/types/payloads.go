package types

import "encoding/json"

// Event payload schemas for the client protocol. Shapes are enforced with
// validator tags by the transport before any payload reaches a room.

type CreateGamePayload struct {
	GameType   string         `json:"gameType" validate:"required,max=50"`
	Mode       string         `json:"mode" validate:"required,oneof=lan p2p"`
	RoomCode   string         `json:"roomCode,omitempty" validate:"omitempty,len=6"`
	MinPlayers int            `json:"minPlayers,omitempty" validate:"omitempty,min=1"`
	MaxPlayers int            `json:"maxPlayers,omitempty" validate:"omitempty,min=1"`
	Options    map[string]any `json:"options,omitempty"`
}

// BoundsValid checks the cross-field constraint the tag syntax cannot express.
func (p CreateGamePayload) BoundsValid() bool {
	if p.MinPlayers > 0 && p.MaxPlayers > 0 {
		return p.MaxPlayers >= p.MinPlayers
	}
	return true
}

type JoinGamePayload struct {
	RoomCode string `json:"roomCode" validate:"required,len=6"`
	Password string `json:"password,omitempty"`
}

// PlayerReadyPayload toggles readiness when Ready is omitted.
type PlayerReadyPayload struct {
	Ready *bool `json:"ready,omitempty"`
}

type StartGamePayload struct {
	ForceStart bool `json:"forceStart,omitempty"`
}

type SubmitMovePayload struct {
	Type      string          `json:"type" validate:"required,max=50"`
	Data      json.RawMessage `json:"data" validate:"required"`
	Timestamp uint64          `json:"timestamp,omitempty"`
}

type UndoMovePayload struct {
	Confirm bool `json:"confirm"`
}

type LeaveGamePayload struct {
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

type ChatMessagePayload struct {
	Message string `json:"message" validate:"required,min=1,max=500"`
	Type    string `json:"type" validate:"required,oneof=text emote system"`
}

type PingPayload struct {
	ClientTime uint64 `json:"clientTime"`
}

type RequestSyncPayload struct {
	Reason string `json:"reason" validate:"required,oneof=desync reconnect manual"`
}

// PongBody answers a ping with both clocks for RTT estimation.
type PongBody struct {
	ClientTime uint64 `json:"clientTime"`
	ServerTime int64  `json:"serverTime"`
}

// RoomPlayerInfo is one entry of a roomStateUpdate broadcast.
type RoomPlayerInfo struct {
	ID          PlayerIDType    `json:"id"`
	DisplayName DisplayNameType `json:"displayName"`
	IsReady     bool            `json:"isReady"`
	IsHost      bool            `json:"isHost"`
	AvatarPath  string          `json:"avatarPath,omitempty"`
}

// RoomStateBody is the lobby metadata fanned out to every subscriber.
type RoomStateBody struct {
	RoomCode   RoomCodeType     `json:"roomCode"`
	GameType   GameIDType       `json:"gameType"`
	Status     RoomStatus       `json:"status"`
	Players    []RoomPlayerInfo `json:"players"`
	MinPlayers int              `json:"minPlayers"`
	MaxPlayers int              `json:"maxPlayers"`
	HostID     PlayerIDType     `json:"hostId"`
}

// ChatBody is a relayed chat message with server timestamp.
type ChatBody struct {
	SenderID   PlayerIDType    `json:"senderId"`
	SenderName DisplayNameType `json:"senderName"`
	Message    string          `json:"message"`
	Type       string          `json:"type"`
	ServerTime int64           `json:"serverTime"`
}
