package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func TestSequenceGuard_RejectsDuplicates(t *testing.T) {
	g := NewSequenceGuard(100)
	require.Nil(t, g.Check(1))

	err := g.Check(1)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrReplayRejected, err.Code)
}

func TestSequenceGuard_RejectsStaleSequences(t *testing.T) {
	g := NewSequenceGuard(100)
	require.Nil(t, g.Check(500))

	err := g.Check(400)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrReplayRejected, err.Code)
}

func TestSequenceGuard_AcceptsFreshOutOfOrderWithinWindow(t *testing.T) {
	g := NewSequenceGuard(100)
	require.Nil(t, g.Check(500))

	// A late but unseen sequence inside the drift window is fine.
	assert.Nil(t, g.Check(450))
	assert.Equal(t, uint64(500), g.Highest())

	// Replaying it is not.
	assert.NotNil(t, g.Check(450))
}

func TestSequenceGuard_WindowAdvancesWithHighest(t *testing.T) {
	g := NewSequenceGuard(10)
	require.Nil(t, g.Check(5))
	require.Nil(t, g.Check(50))

	// 5 now trails highest-drift and no longer counts as a duplicate,
	// just as stale.
	err := g.Check(5)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrReplayRejected, err.Code)
	assert.Nil(t, g.Check(45))
}

func TestSequenceGuard_ZeroDriftDefaults(t *testing.T) {
	g := NewSequenceGuard(0)
	require.Nil(t, g.Check(1))
	require.Nil(t, g.Check(101))
	assert.NotNil(t, g.Check(1))
}
