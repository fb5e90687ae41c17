// Package sync renders authoritative game state for the wire: full
// snapshots, minimal deltas between versions, state checksums, and replay
// protection for inbound sequence numbers.
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
)

// Render converts a game state into its generic JSON document form. Deltas
// and checksums are computed over this form so they are independent of the
// concrete state struct.
func Render(state game.State) (map[string]any, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("render state: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("render state: %w", err)
	}
	return doc, nil
}

// Checksum hashes the canonical JSON encoding of a rendered document.
// encoding/json sorts map keys, so equal documents hash equally.
func Checksum(doc map[string]any) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}
