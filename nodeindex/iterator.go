package nodeindex

import (
	"iter"

	"github.com/aukilabs/navindex/models"
)

// Iterator walks the indexed nodes whose type matches a mask, type by type
// in bit order and by ascending handle within a type.
//
// An iterator notices lazily when its index was modified since it was
// positioned and restarts from the beginning of the current index state. The
// iterator of a closed index is exhausted.
type Iterator struct {
	index      *Index
	mask       models.NavType
	generation uint64
	typeIdx    int
	cursor     int
	exhausted  bool
}

// NewIterator returns an iterator positioned on the first node matching
// mask.
func (idx *Index) NewIterator(mask models.NavType) *Iterator {
	it := &Iterator{
		index: idx,
		mask:  mask,
	}
	it.Reset()
	return it
}

// Reset positions the iterator on the first node matching its mask.
func (it *Iterator) Reset() {
	it.generation = it.index.generation
	it.typeIdx = 0
	it.cursor = 0
	it.exhausted = it.index.closed
	it.seek()
}

func (it *Iterator) seek() {
	for !it.exhausted {
		if it.typeIdx >= models.NavTypeCount {
			it.exhausted = true
			return
		}

		if models.NavTypeAt(it.typeIdx).Matches(it.mask) &&
			it.cursor < it.index.types[it.typeIdx].len() {
			return
		}

		it.typeIdx++
		it.cursor = 0
	}
}

// sync restarts the iterator when its index changed. It reports whether a
// restart happened.
func (it *Iterator) sync() bool {
	if it.generation == it.index.generation {
		return false
	}
	it.Reset()
	return true
}

// Valid reports whether the iterator is positioned on a node.
func (it *Iterator) Valid() bool {
	it.sync()
	return !it.exhausted
}

// Handle returns the current node handle, or models.InvalidHandle once the
// iterator is exhausted.
func (it *Iterator) Handle() models.Handle {
	it.sync()
	if it.exhausted {
		return models.InvalidHandle
	}
	return it.index.types[it.typeIdx].handles[it.cursor]
}

// Type returns the navigation type of the current node.
func (it *Iterator) Type() models.NavType {
	it.sync()
	if it.exhausted {
		return 0
	}
	return models.NavTypeAt(it.typeIdx)
}

// Increment moves to the next node. An iterator whose index changed is
// restarted instead.
func (it *Iterator) Increment() {
	if it.sync() || it.exhausted {
		return
	}

	it.cursor++
	it.seek()
}

// Handles returns a sequence of the handles of the nodes matching mask. The
// index must not be modified while the sequence is consumed.
func (idx *Index) Handles(mask models.NavType) iter.Seq[models.Handle] {
	return func(yield func(models.Handle) bool) {
		for it := idx.NewIterator(mask); it.Valid(); it.Increment() {
			if !yield(it.Handle()) {
				return
			}
		}
	}
}
