// Package games assembles the built-in game catalog.
package games

import (
	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/baccarat"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/blackjack"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/checkers"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/holdem"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/stud"
	"github.com/TheZedxD/HomeGameServer/internal/v1/games/tictactoe"
)

// NewRegistry returns a registry with every built-in game installed.
func NewRegistry() *game.Registry {
	r := game.NewRegistry()
	r.Register(tictactoe.Definition())
	r.Register(checkers.Definition())
	r.Register(blackjack.Definition())
	r.Register(holdem.Definition())
	r.Register(stud.Definition())
	r.Register(baccarat.Definition())
	return r
}
