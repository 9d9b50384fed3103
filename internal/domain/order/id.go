package order

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
)

// IDPrefix marks every order identifier.
const IDPrefix = "ORD-"

const (
	issuedCapacity = 100_000
	issuedFPR      = 0.0001
	maxIDAttempts  = 8
)

// IDGenerator issues order identifiers of the form ORD-<32 hex chars>,
// derived from a time-ordered UUIDv7. Issued ids are remembered in a bloom
// filter and a repeat is regenerated.
type IDGenerator struct {
	mu     sync.Mutex
	issued *bloom.BloomFilter
	newID  func() (uuid.UUID, error)
}

// NewIDGenerator returns a generator with an empty issued set.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		issued: bloom.NewWithEstimates(issuedCapacity, issuedFPR),
		newID:  uuid.NewV7,
	}
}

// Next returns a fresh order id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id string
	for range maxIDAttempts {
		id = formatID(g.nextUUID())
		if !g.issued.TestString(id) {
			break
		}
	}
	g.issued.AddString(id)
	return id
}

func (g *IDGenerator) nextUUID() uuid.UUID {
	u, err := g.newID()
	if err != nil {
		return uuid.New()
	}
	return u
}

func formatID(u uuid.UUID) string {
	return IDPrefix + strings.ToUpper(hex.EncodeToString(u[:]))
}
