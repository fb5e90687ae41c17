package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNilServiceIsNoOp(t *testing.T) {
	var s *Service
	ctx := context.Background()

	assert.Nil(t, s.Client())
	assert.NoError(t, s.Publish(ctx, "ROOM01", "chatMessage", nil, "sender"))
	assert.NoError(t, s.PresenceAdd(ctx, "ROOM01", "alice"))
	assert.NoError(t, s.PresenceRemove(ctx, "ROOM01", "alice"))
	members, err := s.PresenceMembers(ctx, "ROOM01")
	assert.NoError(t, err)
	assert.Nil(t, members)
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close())

	s.Subscribe(ctx, "ROOM01", nil, func(RoomEvent) {
		t.Fatal("nil service must not deliver events")
	})
}

func TestNewService_UnreachableRedis(t *testing.T) {
	_, err := NewService("127.0.0.1:1", "")
	require.Error(t, err)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	received := make(chan RoomEvent, 16)
	svc.Subscribe(ctx, "ROOM01", &wg, func(ev RoomEvent) {
		received <- ev
	})

	// Subscription registration races the first publish; retry until the
	// event comes back.
	var got RoomEvent
	require.Eventually(t, func() bool {
		_ = svc.Publish(ctx, "ROOM01", "chatMessage", map[string]string{"message": "hi"}, "instance-a")
		select {
		case got = <-received:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "ROOM01", got.RoomCode)
	assert.Equal(t, "chatMessage", got.Event)
	assert.Equal(t, "instance-a", got.SenderID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "hi", payload["message"])

	cancel()
	wg.Wait()
}

func TestSubscribe_IsolatedPerRoom(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	received := make(chan RoomEvent, 16)
	svc.Subscribe(ctx, "ROOM01", &wg, func(ev RoomEvent) {
		received <- ev
	})

	require.Eventually(t, func() bool {
		_ = svc.Publish(ctx, "ROOM02", "chatMessage", nil, "instance-a")
		_ = svc.Publish(ctx, "ROOM01", "playerReady", nil, "instance-a")
		select {
		case got := <-received:
			assert.Equal(t, "ROOM01", got.RoomCode, "other rooms' events never arrive")
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestPresenceLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PresenceAdd(ctx, "ROOM01", "alice"))
	require.NoError(t, svc.PresenceAdd(ctx, "ROOM01", "bob"))
	require.NoError(t, svc.PresenceAdd(ctx, "ROOM02", "carol"))

	members, err := svc.PresenceMembers(ctx, "ROOM01")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	require.NoError(t, svc.PresenceRemove(ctx, "ROOM01", "alice"))
	members, err = svc.PresenceMembers(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)
}

func TestPing(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.Ping(context.Background()))
}
