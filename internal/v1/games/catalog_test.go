package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func TestNewRegistry_InstallsEveryGame(t *testing.T) {
	reg := NewRegistry()

	want := []types.GameIDType{"tictactoe", "checkers", "blackjack", "holdem", "stud", "baccarat"}
	assert.ElementsMatch(t, want, reg.IDs())

	for _, id := range want {
		def := reg.Get(id)
		require.NotNil(t, def, "missing definition for %s", id)
		assert.Equal(t, id, def.ID)
		assert.NotEmpty(t, def.Name)
		assert.GreaterOrEqual(t, def.MinPlayers, 1)
		assert.GreaterOrEqual(t, def.MaxPlayers, def.MinPlayers)
		assert.NotNil(t, def.NewState)
		assert.NotEmpty(t, def.Strategies)
	}

	assert.Nil(t, reg.Get("bridge"))
}
