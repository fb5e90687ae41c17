package room

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/bus"
	"github.com/TheZedxD/HomeGameServer/internal/v1/clock"
	"github.com/TheZedxD/HomeGameServer/internal/v1/config"
	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/tictactoe"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func newTestRegistry(t *testing.T, cfg *config.Config) *Registry {
	return newTestRegistryWithBus(t, cfg, nil)
}

func newTestRegistryWithBus(t *testing.T, cfg *config.Config, svc *bus.Service) *Registry {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	games := game.NewRegistry()
	games.Register(tictactoe.Definition())
	scheduler := clock.NewScheduler(clock.Options{
		TickInterval:     time.Second / time.Duration(cfg.TickRate),
		SnapshotInterval: time.Second / time.Duration(cfg.SnapshotRate),
	})
	return NewRegistry(cfg, games, scheduler, svc)
}

func TestRegistry_CreateGeneratesUniqueCode(t *testing.T) {
	reg := newTestRegistry(t, nil)

	r, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)
	assert.Regexp(t, types.RoomCodePattern, string(r.Code()))
	assert.Same(t, r, reg.Get(r.Code()))
	assert.Equal(t, 1, reg.Count())

	// Bounds default from the game definition.
	assert.Equal(t, 2, r.minPlayers)
	assert.Equal(t, 2, r.maxPlayers)
}

func TestRegistry_CreateHonorsRequestedCode(t *testing.T) {
	reg := newTestRegistry(t, nil)

	r, err := reg.Create(tictactoe.GameID, "GAME42", 0, 0)
	require.Nil(t, err)
	assert.Equal(t, types.RoomCodeType("GAME42"), r.Code())

	_, err = reg.Create(tictactoe.GameID, "GAME42", 0, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)

	_, err = reg.Create(tictactoe.GameID, "nope", 0, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)
}

func TestRegistry_CreateUnknownGame(t *testing.T) {
	reg := newTestRegistry(t, nil)

	_, err := reg.Create("quidditch", "", 0, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)
}

func TestRegistry_CreateValidatesBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayersPerRoom = 4
	reg := newTestRegistry(t, cfg)

	// Requested maximum clamps to the server-wide cap.
	r, err := reg.Create(tictactoe.GameID, "", 2, 99)
	require.Nil(t, err)
	assert.Equal(t, 4, r.maxPlayers)

	_, err = reg.Create(tictactoe.GameID, "", 6, 4)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)
}

func TestRegistry_CreateRejectedAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRooms = 1
	reg := newTestRegistry(t, cfg)

	_, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)

	_, err = reg.Create(tictactoe.GameID, "", 0, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrRoomNotJoinable, err.Code)
	assert.True(t, err.Retryable)
}

func TestRegistry_DestroyTerminatesRoom(t *testing.T) {
	reg := newTestRegistry(t, nil)
	r, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)

	alice := newMockClient("alice", "sess-a1")
	r.HandleClientConnect(alice)

	reg.Destroy(r.Code(), "test teardown")

	assert.Nil(t, reg.Get(r.Code()))
	assert.Zero(t, reg.Count())
	assert.Equal(t, types.RoomStatusEnded, r.Status())
	assert.True(t, alice.isDisconnected())
	assert.Equal(t, types.ErrRoomTerminated, alice.lastError().Code)

	// Destroying twice is a no-op.
	reg.Destroy(r.Code(), "again")
}

func TestRegistry_CancelCleanupKeepsRoomAlive(t *testing.T) {
	reg := newTestRegistry(t, nil)
	r, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)

	reg.markEmpty(r.Code())
	reg.mu.Lock()
	_, pending := reg.pendingCleanup[r.Code()]
	reg.mu.Unlock()
	assert.True(t, pending)

	// Marking twice does not stack timers.
	reg.markEmpty(r.Code())

	reg.CancelCleanup(r.Code())
	reg.mu.Lock()
	_, pending = reg.pendingCleanup[r.Code()]
	reg.mu.Unlock()
	assert.False(t, pending)
	assert.NotNil(t, reg.Get(r.Code()))
}

func TestRegistry_StopTerminatesEveryRoom(t *testing.T) {
	reg := newTestRegistry(t, nil)
	reg.Start()

	r1, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)
	r2, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)

	reg.Stop()

	assert.Zero(t, reg.Count())
	assert.Equal(t, types.RoomStatusEnded, r1.Status())
	assert.Equal(t, types.RoomStatusEnded, r2.Status())
}

func TestRegistry_CollectIdleDestroysStaleRooms(t *testing.T) {
	cfg := testConfig()
	cfg.RoomIdleTimeout = time.Nanosecond
	reg := newTestRegistry(t, cfg)

	r, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)

	time.Sleep(time.Millisecond)
	reg.collectIdle()

	assert.Nil(t, reg.Get(r.Code()))
	assert.Equal(t, types.RoomStatusEnded, r.Status())
}

func TestRegistry_CollectIdleSkipsRoomsMidGame(t *testing.T) {
	cfg := testConfig()
	cfg.RoomIdleTimeout = time.Nanosecond
	reg := newTestRegistry(t, cfg)

	r, err := reg.Create(tictactoe.GameID, "", 0, 0)
	require.Nil(t, err)
	alice := newMockClient("alice", "sess-a1")
	bob := newMockClient("bob", "sess-b1")
	r.HandleClientConnect(alice)
	r.HandleClientConnect(bob)
	startPlaying(t, r, alice, bob)

	time.Sleep(time.Millisecond)
	reg.collectIdle()
	assert.Same(t, r, reg.Get(r.Code()), "a quiet game in progress is not swept")

	// Terminated rooms are reaped on the next sweep.
	r.Terminate("test teardown")
	reg.collectIdle()
	assert.Nil(t, reg.Get(r.Code()))
}

func TestRegistry_RelayBridgesInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	svcA, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svcA.Close() })
	svcB, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svcB.Close() })

	regA := newTestRegistryWithBus(t, nil, svcA)
	regB := newTestRegistryWithBus(t, nil, svcB)

	roomA, cerr := regA.Create(tictactoe.GameID, "GAME42", 0, 0)
	require.Nil(t, cerr)
	roomB, cerr := regB.Create(tictactoe.GameID, "GAME42", 0, 0)
	require.Nil(t, cerr)

	alice := newMockClient("alice", "sess-a1")
	roomA.HandleClientConnect(alice)
	bob := newMockClient("bob", "sess-b1")
	roomB.HandleClientConnect(bob)

	// Subscription registration races the first publish; keep chatting
	// until the other instance sees it.
	require.Eventually(t, func() bool {
		route(roomA, alice, types.EventChatMessage, `{"message":"hello across","type":"text"}`)
		return bob.lastEvent(types.EventChatMessage) != nil
	}, 5*time.Second, 50*time.Millisecond)

	regA.Destroy(roomA.Code(), "test teardown")
	regB.Destroy(roomB.Code(), "test teardown")
}
