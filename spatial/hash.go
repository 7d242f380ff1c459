package spatial

import (
	"fmt"
	"math"
	"unsafe"
)

// Uniform Spatial Hash
//
// A uniform grid of cellSize sized cells mapped onto a fixed, power of two,
// number of buckets. The particularities are:
//   - the grid is unbounded, any (i, j, k) cell maps to a bucket through a
//     multiplicative hash masked by bucketCount-1.
//   - several cells can share a bucket. Every stored object keeps the
//     location mask of its cell so that queries can tell apart objects of the
//     scanned cell from objects of colliding cells.
//   - objects and masks live in two parallel slices per bucket. Queries scan
//     the masks first and only touch the objects that match.

const (
	hashPrimeI = 0x8da6b343
	hashPrimeJ = 0xd8163841
	hashPrimeK = 0xcb1ab31f

	maskBitsI = 12
	maskBitsJ = 12
	maskBitsK = 8
)

// PositionFunc extracts the world position of a stored object.
type PositionFunc[T any] func(T) Vec3

type cell[T comparable] struct {
	objects []T
	masks   []uint32
}

func (c *cell[T]) reserve(n int) {
	if cap(c.objects) >= n {
		return
	}

	objects := make([]T, len(c.objects), n)
	copy(objects, c.objects)
	c.objects = objects

	masks := make([]uint32, len(c.masks), n)
	copy(masks, c.masks)
	c.masks = masks
}

func (c *cell[T]) shrink() {
	if cap(c.objects) == len(c.objects) && cap(c.masks) == len(c.masks) {
		return
	}

	if len(c.objects) == 0 {
		c.objects = nil
		c.masks = nil
		return
	}

	objects := make([]T, len(c.objects))
	copy(objects, c.objects)
	c.objects = objects

	masks := make([]uint32, len(c.masks))
	copy(masks, c.masks)
	c.masks = masks
}

// Hash is a uniform spatial hash storing copies of T. T equality is used by
// Remove.
type Hash[T comparable] struct {
	cellSize   Vec3
	cellScale  Vec3
	bucketMask uint32
	cells      []cell[T]
	count      int
	position   PositionFunc[T]
}

// NewHash creates a spatial hash. bucketCount must be a power of two and
// every cellSize component must be positive, NewHash panics otherwise.
func NewHash[T comparable](cellSize Vec3, bucketCount int, position PositionFunc[T]) *Hash[T] {
	if !IsPowerOfTwo(bucketCount) {
		panic(fmt.Sprintf("spatial: bucket count %d is not a power of two", bucketCount))
	}
	if cellSize[0] <= 0 || cellSize[1] <= 0 || cellSize[2] <= 0 {
		panic(fmt.Sprintf("spatial: invalid cell size %v", cellSize))
	}
	if position == nil {
		panic("spatial: nil position func")
	}

	return &Hash[T]{
		cellSize:   cellSize,
		cellScale:  Reciprocal(cellSize),
		bucketMask: uint32(bucketCount - 1),
		cells:      make([]cell[T], bucketCount),
		position:   position,
	}
}

func (h *Hash[T]) CellSize() Vec3 {
	return h.cellSize
}

// IJK returns the coordinates of the cell containing pos.
func (h *Hash[T]) IJK(pos Vec3) (i, j, k int32) {
	return floorToInt32(pos[0] * h.cellScale[0]),
		floorToInt32(pos[1] * h.cellScale[1]),
		floorToInt32(pos[2] * h.cellScale[2])
}

// InRange reports whether pos lies in a cell the hash can address. Cells
// past the int32 range are clamped onto the border cells, which stay
// reserved.
func (h *Hash[T]) InRange(pos Vec3) bool {
	for a := range pos {
		f := math.Floor(float64(pos[a] * h.cellScale[a]))
		if !(f > math.MinInt32 && f < math.MaxInt32) {
			return false
		}
	}
	return true
}

// BucketIndex returns the bucket of the (i, j, k) cell.
func (h *Hash[T]) BucketIndex(i, j, k int32) int {
	n := uint32(i)*hashPrimeI + uint32(j)*hashPrimeJ + uint32(k)*hashPrimeK
	return int(n & h.bucketMask)
}

// LocationMask packs the low bits of a cell coordinates. Two cells sharing a
// bucket have different masks unless they are a multiple of 4096 cells
// apart on i or j, or 256 on k. Queries then compare the cell of the
// candidate position.
func LocationMask(i, j, k int32) uint32 {
	return uint32(i)&(1<<maskBitsI-1) |
		(uint32(j)&(1<<maskBitsJ-1))<<maskBitsI |
		(uint32(k)&(1<<maskBitsK-1))<<(maskBitsI+maskBitsJ)
}

func (h *Hash[T]) locate(obj T) (bucket int, mask uint32) {
	i, j, k := h.IJK(h.position(obj))
	return h.BucketIndex(i, j, k), LocationMask(i, j, k)
}

// Add stores a copy of obj in the bucket of its current position.
func (h *Hash[T]) Add(obj T) {
	bucket, mask := h.locate(obj)

	c := &h.cells[bucket]
	c.objects = append(c.objects, obj)
	c.masks = append(c.masks, mask)
	h.count++
}

// Remove deletes every stored copy of obj and returns how many were removed.
// All buckets are scanned since obj position may have changed since it was
// added.
func (h *Hash[T]) Remove(obj T) int {
	removed := 0

	for b := range h.cells {
		c := &h.cells[b]

		n := 0
		for idx, o := range c.objects {
			if o == obj {
				continue
			}
			c.objects[n] = o
			c.masks[n] = c.masks[idx]
			n++
		}

		if diff := len(c.objects) - n; diff != 0 {
			clear(c.objects[n:])
			c.objects = c.objects[:n]
			c.masks = c.masks[:n]
			removed += diff
		}
	}

	h.count -= removed
	return removed
}

// Clear removes all the objects. Bucket storage is released when freeMemory
// is true and kept for reuse otherwise.
func (h *Hash[T]) Clear(freeMemory bool) {
	for b := range h.cells {
		c := &h.cells[b]
		if freeMemory {
			c.objects = nil
			c.masks = nil
			continue
		}

		clear(c.objects)
		c.objects = c.objects[:0]
		c.masks = c.masks[:0]
	}
	h.count = 0
}

// Compact releases the unused capacity of every bucket.
func (h *Hash[T]) Compact() {
	for b := range h.cells {
		h.cells[b].shrink()
	}
}

func (h *Hash[T]) Len() int {
	return h.count
}

func (h *Hash[T]) BucketCount() int {
	return len(h.cells)
}

func (h *Hash[T]) ObjectCountInBucket(bucket int) int {
	return len(h.cells[bucket].objects)
}

// ObjectInBucket returns the n-th object of a bucket.
func (h *Hash[T]) ObjectInBucket(bucket int, n int) T {
	return h.cells[bucket].objects[n]
}

func (h *Hash[T]) BucketCapacity(bucket int) int {
	return cap(h.cells[bucket].objects)
}

// NewBucketUsage returns a zeroed per bucket tally for RecordBucketUsage.
func (h *Hash[T]) NewBucketUsage() []int {
	return make([]int, len(h.cells))
}

// RecordBucketUsage counts obj in the bucket it would be added to, without
// adding it.
func (h *Hash[T]) RecordBucketUsage(obj T, counts []int) {
	bucket, _ := h.locate(obj)
	counts[bucket]++
}

// ReserveSpaceInBuckets grows every bucket so that it can hold counts[b]
// objects without reallocating.
func (h *Hash[T]) ReserveSpaceInBuckets(counts []int) {
	for b, n := range counts {
		if n > 0 {
			h.cells[b].reserve(n)
		}
	}
}

// MemStats returns the number of bytes used by the bucket storage.
func (h *Hash[T]) MemStats() int {
	var zero T
	objectSize := int(unsafe.Sizeof(zero))
	maskSize := int(unsafe.Sizeof(uint32(0)))

	size := len(h.cells) * int(unsafe.Sizeof(cell[T]{}))
	for b := range h.cells {
		size += cap(h.cells[b].objects)*objectSize + cap(h.cells[b].masks)*maskSize
	}
	return size
}
