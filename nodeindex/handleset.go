package nodeindex

import (
	"slices"
	"unsafe"

	"github.com/aukilabs/navindex/models"
)

// handleSet is a sorted set of unique handles. Inserting handles in
// ascending order, as bulk loads do, appends in amortized constant time.
type handleSet struct {
	handles []models.Handle
}

func (s *handleSet) insert(h models.Handle) bool {
	i, found := slices.BinarySearch(s.handles, h)
	if found {
		return false
	}
	s.handles = slices.Insert(s.handles, i, h)
	return true
}

func (s *handleSet) remove(h models.Handle) bool {
	i, found := slices.BinarySearch(s.handles, h)
	if !found {
		return false
	}
	s.handles = slices.Delete(s.handles, i, i+1)
	return true
}

func (s *handleSet) contains(h models.Handle) bool {
	_, found := slices.BinarySearch(s.handles, h)
	return found
}

// reserve makes room for size handles in total.
func (s *handleSet) reserve(size int) {
	if n := size - len(s.handles); n > 0 {
		s.handles = slices.Grow(s.handles, n)
	}
}

func (s *handleSet) compact() {
	switch {
	case len(s.handles) == 0:
		s.handles = nil
	case cap(s.handles) > len(s.handles):
		s.handles = slices.Clone(s.handles)
	}
}

func (s *handleSet) len() int {
	return len(s.handles)
}

func (s *handleSet) memStats() int {
	return cap(s.handles) * int(unsafe.Sizeof(models.Handle(0)))
}
