package models

import (
	"math"
	"slices"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// A sequential id generator. 0 is never returned.
type SequentialIDGenerator struct {
	// Reports whether an id is held by something else, such as a restored
	// node. When set, the generator wraps around once the counter is
	// exhausted and skips the ids in use. When nil, exhaustion is an error.
	InUse func(id uint32) bool

	mutex       sync.Mutex
	currentID   uint32
	reusableIDs []uint32
}

// New returns a sequential id. The most recently reused id is returned in
// priority.
func (g *SequentialIDGenerator) New() (uint32, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.reusableIDs); n != 0 {
		id := g.reusableIDs[n-1]
		g.reusableIDs = g.reusableIDs[:n-1]
		return id, nil
	}

	for scanned := uint64(0); scanned < math.MaxUint32; scanned++ {
		if g.currentID == math.MaxUint32 {
			if g.InUse == nil {
				break
			}
			g.currentID = 0
		}

		g.currentID++
		if g.InUse == nil || !g.InUse(g.currentID) {
			return g.currentID, nil
		}
	}

	return 0, errors.New("no id available").
		WithType(ErrTypeHandlesExhausted).
		WithTag("reusable", len(g.reusableIDs))
}

// Reuse marks the given id as reusable. Ids that were never issued are
// ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.currentID || slices.Contains(g.reusableIDs, id) {
		return
	}
	g.reusableIDs = append(g.reusableIDs, id)
}

// Reserve marks an id that was issued elsewhere, such as one read from a
// snapshot, as taken. Ids below it that were never issued are skipped.
func (g *SequentialIDGenerator) Reserve(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id > g.currentID {
		g.currentID = id
		return
	}

	if idx := slices.Index(g.reusableIDs, id); idx >= 0 {
		g.reusableIDs = slices.Delete(g.reusableIDs, idx, idx+1)
	}
}

// Reset forgets every issued id.
func (g *SequentialIDGenerator) Reset() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID = 0
	g.reusableIDs = nil
}
