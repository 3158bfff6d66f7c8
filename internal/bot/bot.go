// Package bot holds the immutable bot roster entries and the ephemeral
// units of work derived from them.
package bot

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Bot is one configured automated player. It is created once at startup from
// static configuration and shared read-only between its producer and every
// turn it produces.
type Bot struct {
	Name          string
	Endpoint      string
	APIKey        string
	EngineCommand string
	MoveBudget    string // e.g. "depth 1" or "time 00:00:01"
}

// Fingerprint is a fixed-width BLAKE3 digest of a serialized game string,
// used as the dedup key. Collisions between distinct positions are accepted
// as negligible.
type Fingerprint [32]byte

// FingerprintOf computes the fingerprint of a serialized game string.
func FingerprintOf(gameString string) Fingerprint {
	return blake3.Sum256([]byte(gameString))
}

// String returns the full hex form, suitable for journal rows.
func (fp Fingerprint) String() string {
	return hex.EncodeToString(fp[:])
}

// Short returns an abbreviated hex form for log lines.
func (fp Fingerprint) Short() string {
	return hex.EncodeToString(fp[:8])
}

// Turn is one pending move owed by a bot on a specific game position. It is
// created by a producer, consumed by exactly one engine invocation, and never
// persisted.
type Turn struct {
	ID          string
	GameString  string
	Fingerprint Fingerprint
	Bot         *Bot
}

// NewTurn builds a turn for b from a serialized game string.
func NewTurn(b *Bot, gameString string) *Turn {
	return &Turn{
		ID:          uuid.NewString(),
		GameString:  gameString,
		Fingerprint: FingerprintOf(gameString),
		Bot:         b,
	}
}
