package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
	"github.com/cespare/xxhash/v2"
)

// SeedFor derives a deterministic PRNG seed from the room code and its
// creation time. The same room code created at the same instant replays
// identical shuffles and deals.
func SeedFor(code types.RoomCodeType, createdAt time.Time) int64 {
	return int64(xxhash.Sum64String(fmt.Sprintf("%s:%d", code, createdAt.UnixNano())))
}

// NewRand returns a seeded PRNG for a room. When deterministic is false
// the seed comes from the wall clock instead.
func NewRand(code types.RoomCodeType, createdAt time.Time, deterministic bool) *rand.Rand {
	if deterministic {
		return rand.New(rand.NewSource(SeedFor(code, createdAt)))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
