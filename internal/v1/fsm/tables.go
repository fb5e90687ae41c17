package fsm

// Room lifecycle states.
const (
	RoomInitializing State = "INITIALIZING"
	RoomLobby        State = "LOBBY"
	RoomStarting     State = "STARTING"
	RoomPlaying      State = "PLAYING"
	RoomPaused       State = "PAUSED"
	RoomRoundEnd     State = "ROUND_END"
	RoomEnding       State = "ENDING"
	RoomTerminated   State = "TERMINATED"
)

// Player membership/activity states.
const (
	PlayerConnecting   State = "CONNECTING"
	PlayerConnected    State = "CONNECTED"
	PlayerJoining      State = "JOINING"
	PlayerInLobby      State = "IN_LOBBY"
	PlayerReady        State = "READY"
	PlayerPlaying      State = "PLAYING"
	PlayerSpectating   State = "SPECTATING"
	PlayerDisconnected State = "DISCONNECTED"
	PlayerLeft         State = "LEFT"
)

// RoomTable is the legal-transition set for room lifecycle.
var RoomTable = Table{
	RoomInitializing: {RoomLobby, RoomTerminated},
	RoomLobby:        {RoomStarting, RoomTerminated},
	RoomStarting:     {RoomPlaying, RoomLobby, RoomTerminated},
	RoomPlaying:      {RoomPaused, RoomRoundEnd, RoomEnding, RoomTerminated},
	RoomPaused:       {RoomPlaying, RoomEnding, RoomTerminated},
	RoomRoundEnd:     {RoomStarting, RoomLobby, RoomEnding, RoomTerminated},
	RoomEnding:       {RoomTerminated},
	RoomTerminated:   {},
}

// PlayerTable is the legal-transition set for player membership.
var PlayerTable = Table{
	PlayerConnecting:   {PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerConnected:    {PlayerJoining, PlayerDisconnected, PlayerLeft},
	PlayerJoining:      {PlayerInLobby, PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerInLobby:      {PlayerReady, PlayerSpectating, PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerReady:        {PlayerInLobby, PlayerPlaying, PlayerDisconnected, PlayerLeft},
	PlayerPlaying:      {PlayerInLobby, PlayerSpectating, PlayerDisconnected, PlayerLeft},
	PlayerSpectating:   {PlayerInLobby, PlayerDisconnected, PlayerLeft},
	PlayerDisconnected: {PlayerConnected, PlayerInLobby, PlayerPlaying, PlayerLeft},
	PlayerLeft:         {},
}

// NewRoomMachine returns a room FSM at INITIALIZING.
func NewRoomMachine() *Machine {
	return New(RoomTable, RoomInitializing)
}

// NewPlayerMachine returns a player FSM at CONNECTING.
func NewPlayerMachine() *Machine {
	return New(PlayerTable, PlayerConnecting)
}
