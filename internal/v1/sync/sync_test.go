package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func newSyncFixture() (*game.StateManager, *Synchronizer, *[]*types.ServerEnvelope) {
	states := game.NewStateManager(newBoardState("", "", ""))
	var sent []*types.ServerEnvelope
	s := New(states, func(env *types.ServerEnvelope) {
		sent = append(sent, env)
	})
	return states, s, &sent
}

func TestSynchronizer_FirstEmissionIsSnapshot(t *testing.T) {
	states, s, sent := newSyncFixture()
	defer s.Close()

	s.FlushDelta(1)
	assert.Empty(t, *sent, "clean state must not emit")

	states.Replace(newBoardState("X", "", ""))
	s.FlushDelta(2)

	require.Len(t, *sent, 1)
	env := (*sent)[0]
	assert.Equal(t, types.EventGameStateSnapshot, env.Event)
	assert.Equal(t, types.SyncKindSnapshot, env.Kind)
	assert.Equal(t, uint64(1), env.Version)
	assert.Equal(t, types.Tick(2), env.Tick)
	assert.NotEmpty(t, env.Checksum)
}

func TestSynchronizer_SubsequentChangesEmitDeltas(t *testing.T) {
	states, s, sent := newSyncFixture()
	defer s.Close()

	states.Replace(newBoardState("X", "", ""))
	s.FlushDelta(1)
	states.Replace(newBoardState("X", "O", ""))
	s.FlushDelta(2)

	require.Len(t, *sent, 2)
	env := (*sent)[1]
	assert.Equal(t, types.EventGameStateUpdate, env.Event)
	assert.Equal(t, types.SyncKindDelta, env.Kind)
	assert.Equal(t, uint64(2), env.Version)

	body, ok := env.Body.(DeltaBody)
	require.True(t, ok)
	require.Len(t, body.Ops, 1)
	assert.Equal(t, "board", body.Ops[0].Path)
	assert.Equal(t, OpSplice, body.Ops[0].Op)
}

func TestSynchronizer_CleanTicksEmitNothing(t *testing.T) {
	states, s, sent := newSyncFixture()
	defer s.Close()

	states.Replace(newBoardState("X", "", ""))
	s.FlushDelta(1)
	s.FlushDelta(2)
	s.FlushDelta(3)

	assert.Len(t, *sent, 1)
}

func TestSynchronizer_EmitSnapshotResetsBaseline(t *testing.T) {
	states, s, sent := newSyncFixture()
	defer s.Close()

	states.Replace(newBoardState("X", "", ""))
	s.EmitSnapshot(10)
	require.Len(t, *sent, 1)
	assert.Equal(t, types.SyncKindSnapshot, (*sent)[0].Kind)

	// The snapshot consumed the pending change.
	s.FlushDelta(11)
	assert.Len(t, *sent, 1)
}

func TestSynchronizer_SnapshotEnvelopeDoesNotBroadcast(t *testing.T) {
	states, s, sent := newSyncFixture()
	defer s.Close()

	states.Replace(newBoardState("X", "", ""))
	env, err := s.SnapshotEnvelope(5)
	require.Nil(t, err)
	assert.Equal(t, types.EventGameStateSnapshot, env.Event)
	assert.Empty(t, *sent)
}
