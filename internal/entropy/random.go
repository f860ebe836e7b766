// Package entropy provides the seeded random sources threaded through the
// spawner and the clearing strategies. Falls back to crypto/rand for seeding
// when no seed is configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// Stream offsets keep independent consumers from sharing a sequence.
const (
	StreamSpawner  int64 = 300
	StreamClearing int64 = 400
)

// Seed returns seed unchanged when non-zero, otherwise a fresh seed from crypto/rand.
func Seed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := cryptoSeed()
	slog.Debug("generated random seed", "seed", s)
	return s
}

// New returns a deterministic source for the given seed and stream.
func New(seed, stream int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed + stream))
}

// cryptoSeed draws a non-zero int64 from crypto/rand.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return a fixed seed as a safe default.
		return 42
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}
