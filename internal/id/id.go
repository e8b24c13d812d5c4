// Package id mints the identifiers used for impulses, brackets, and
// journal rows. They are ULIDs, so ordering by ID is ordering by mint
// time and they index well in SQLite.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints ULIDs from one monotonic entropy stream, so IDs minted
// within the same millisecond still sort in mint order.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator seeds the entropy stream from crypto/rand, falling back to
// the wall clock if that read fails.
func NewGenerator() *Generator {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		binary.LittleEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	}
	src := rand.NewSource(int64(binary.LittleEndian.Uint64(buf[:])))
	return &Generator{entropy: ulid.Monotonic(rand.New(src), 0)}
}

// New mints one ID.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

var defaultGen = NewGenerator()

// New mints an ID from the package-level generator.
func New() string { return defaultGen.New() }
