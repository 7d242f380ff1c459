package spatial

import (
	"iter"
	"math"
)

// RadialIterator walks the objects within a radius of a center. The cells
// covering the bounding cube of the sphere are visited in i, j, k order and
// each candidate is checked against its cell and the squared radius. When
// the cube covers more cells than there are buckets, every bucket is scanned
// once instead. Results are not sorted by distance.
//
// An iterator is forward only. It must not be used after the hash it was
// created from is modified.
type RadialIterator[T comparable] struct {
	hash     *Hash[T]
	center   Vec3
	radiusSq float32

	start [3]int32
	end   [3]int32
	i     int32
	j     int32
	k     int32

	fullScan bool
	bucket   int
	mask     uint32
	index    int
	done     bool

	object T
	distSq float32
}

// Radial returns an iterator over the objects within radius of center.
func (h *Hash[T]) Radial(center Vec3, radius float32) *RadialIterator[T] {
	it := &RadialIterator[T]{
		hash:     h,
		center:   center,
		radiusSq: radius * radius,
	}

	if !(radius >= 0) {
		it.done = true
		return it
	}

	extents := Vec3{radius, radius, radius}
	it.start[0], it.start[1], it.start[2] = h.IJK(center.Sub(extents))
	it.end[0], it.end[1], it.end[2] = h.IJK(center.Add(extents))

	if cubeExceeds(it.start, it.end, len(h.cells)) {
		it.fullScan = true
		it.bucket = 0
		return it
	}

	it.i, it.j, it.k = it.start[0], it.start[1], it.start[2]
	it.selectCell()
	return it
}

// cubeExceeds reports whether the cube of cells from start to end holds more
// than limit cells.
func cubeExceeds(start, end [3]int32, limit int) bool {
	cells := uint64(1)
	for a := range start {
		cells *= uint64(int64(end[a]) - int64(start[a]) + 1)
		if cells > uint64(limit) {
			return true
		}
	}
	return false
}

func (it *RadialIterator[T]) selectCell() {
	it.bucket = it.hash.BucketIndex(it.i, it.j, it.k)
	it.mask = LocationMask(it.i, it.j, it.k)
	it.index = 0
}

func (it *RadialIterator[T]) nextCell() {
	it.index = 0

	if it.fullScan {
		it.bucket++
		it.done = it.bucket >= len(it.hash.cells)
		return
	}

	switch {
	case it.k < it.end[2]:
		it.k++
	case it.j < it.end[1]:
		it.k = it.start[2]
		it.j++
	case it.i < it.end[0]:
		it.k = it.start[2]
		it.j = it.start[1]
		it.i++
	default:
		it.done = true
		return
	}
	it.selectCell()
}

// Next moves to the next object within the radius. It returns false once
// every covered cell has been scanned.
func (it *RadialIterator[T]) Next() bool {
	for !it.done {
		c := &it.hash.cells[it.bucket]

		for it.index < len(c.masks) {
			n := it.index
			it.index++

			if !it.fullScan && c.masks[n] != it.mask {
				continue
			}

			obj := c.objects[n]
			pos := it.hash.position(obj)
			distSq := DistanceSquared(pos, it.center)
			if !(distSq <= it.radiusSq) || math.IsInf(float64(distSq), 1) {
				continue
			}

			if !it.fullScan {
				// Cells a multiple of the mask period apart share the mask.
				if i, j, k := it.hash.IJK(pos); i != it.i || j != it.j || k != it.k {
					continue
				}
			}

			it.object = obj
			it.distSq = distSq
			return true
		}

		it.nextCell()
	}

	var zero T
	it.object = zero
	it.distSq = 0
	return false
}

// Object returns the current object.
func (it *RadialIterator[T]) Object() T {
	return it.object
}

// DistanceSquared returns the squared distance between the current object
// and the center.
func (it *RadialIterator[T]) DistanceSquared() float32 {
	return it.distSq
}

// Within returns a sequence of the objects within radius of center paired
// with their squared distance.
func (h *Hash[T]) Within(center Vec3, radius float32) iter.Seq2[T, float32] {
	return func(yield func(T, float32) bool) {
		for it := h.Radial(center, radius); it.Next(); {
			if !yield(it.Object(), it.DistanceSquared()) {
				return
			}
		}
	}
}

// ProcessWithinRadius calls fn for every object within radius of center.
func (h *Hash[T]) ProcessWithinRadius(center Vec3, radius float32, fn func(obj T, distSq float32)) {
	for it := h.Radial(center, radius); it.Next(); {
		fn(it.Object(), it.DistanceSquared())
	}
}

// FirstWithinRadius returns the first object within radius of center that
// accept returns true for. The scan stops there, the returned object is not
// necessarily the nearest one. A nil accept accepts any object.
func (h *Hash[T]) FirstWithinRadius(center Vec3, radius float32, accept func(obj T, distSq float32) bool) (T, float32, bool) {
	for it := h.Radial(center, radius); it.Next(); {
		if accept == nil || accept(it.Object(), it.DistanceSquared()) {
			return it.Object(), it.DistanceSquared(), true
		}
	}

	var zero T
	return zero, 0, false
}
