// Package nodeindex keeps track of the navigation nodes that exist in a
// graph. Nodes are grouped by navigation type and stored in a uniform
// spatial hash for radius queries. Node data stays in an external manager
// that the index calls back into for node positions and types.
//
// An Index is not safe for concurrent use.
package nodeindex

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/spatial"
)

// NodeManager resolves node handles to nodes.
type NodeManager interface {
	Node(h models.Handle) (models.Node, bool)
}

// Record is what the spatial hash stores for a node.
type Record struct {
	Handle models.Handle
}

// Result is a node returned by a radius query.
type Result struct {
	DistanceSquared float32       `json:"distance_squared"`
	Handle          models.Handle `json:"handle"`
}

type Index struct {
	manager    NodeManager
	types      [models.NavTypeCount]handleSet
	hash       *spatial.Hash[Record]
	generation uint64
	closed     bool
}

// New creates an index. It panics when manager is nil, bucketCount is not a
// power of two or cellSize is not positive.
func New(manager NodeManager, cellSize spatial.Vec3, bucketCount int) *Index {
	if manager == nil {
		panic("nodeindex: nil node manager")
	}

	idx := &Index{manager: manager}
	idx.hash = spatial.NewHash[Record](cellSize, bucketCount, idx.recordPosition)
	return idx
}

var unresolvedPosition = spatial.Vec3{
	float32(math.Inf(1)),
	float32(math.Inf(1)),
	float32(math.Inf(1)),
}

// recordPosition returns an infinitely far position for records whose node
// is gone from the manager so that radius queries never match them.
func (idx *Index) recordPosition(r Record) spatial.Vec3 {
	n, ok := idx.manager.Node(r.Handle)
	if !ok {
		return unresolvedPosition
	}
	return n.Position
}

func (idx *Index) nodeMatches(h models.Handle, mask models.NavType) bool {
	n, ok := idx.manager.Node(h)
	return ok && n.Type.Matches(mask)
}

func (idx *Index) mutated() {
	idx.generation++
}

// AddNode inserts the node with the given handle. The node must exist in the
// manager and have a single navigation type, AddNode panics otherwise.
// Adding a node that is already indexed does nothing.
func (idx *Index) AddNode(h models.Handle) {
	if idx.closed {
		panic("nodeindex: add to a closed index")
	}

	n, ok := idx.manager.Node(h)
	if !ok {
		panic(fmt.Sprintf("nodeindex: unknown node handle %d", h))
	}
	if !n.Type.IsSingle() {
		panic(fmt.Sprintf("nodeindex: node %d has invalid type %#x", h, uint32(n.Type)))
	}

	if idx.DoesNodeExist(h) {
		return
	}

	idx.types[n.Type.Index()].insert(h)
	idx.hash.Add(Record{Handle: h})
	idx.mutated()
}

// Reserve grows the storage of every type in t so that it can hold size
// nodes.
func (idx *Index) Reserve(t models.NavType, size int) {
	for _, nt := range t.Split() {
		idx.types[nt.Index()].reserve(size)
	}
}

// ReserveForBulkLoad reserves the per type and per bucket storage required
// to add the given nodes. Nodes unknown to the manager are ignored.
func (idx *Index) ReserveForBulkLoad(handles []models.Handle) {
	var typeCounts [models.NavTypeCount]int
	bucketCounts := idx.hash.NewBucketUsage()

	for _, h := range handles {
		n, ok := idx.manager.Node(h)
		if !ok || !n.Type.IsSingle() {
			continue
		}
		typeCounts[n.Type.Index()]++
		idx.hash.RecordBucketUsage(Record{Handle: h}, bucketCounts)
	}

	for i, count := range typeCounts {
		if count > 0 {
			idx.types[i].reserve(idx.types[i].len() + count)
		}
	}

	for b := range bucketCounts {
		if bucketCounts[b] > 0 {
			bucketCounts[b] += idx.hash.ObjectCountInBucket(b)
		}
	}
	idx.hash.ReserveSpaceInBuckets(bucketCounts)
}

// RemoveNode removes a node and resets the iterators created from the
// index. The node does not need to exist in the manager anymore. It returns
// false when the node is not indexed.
func (idx *Index) RemoveNode(h models.Handle) bool {
	removed := false
	for i := range idx.types {
		if idx.types[i].remove(h) {
			removed = true
			break
		}
	}

	if idx.hash.Remove(Record{Handle: h}) != 0 {
		removed = true
	}

	if removed {
		idx.mutated()
	}
	return removed
}

func (idx *Index) DoesNodeExist(h models.Handle) bool {
	for i := range idx.types {
		if idx.types[i].contains(h) {
			return true
		}
	}
	return false
}

// GetAllNodesWithinRange returns the nodes matching typeMask within r of pos.
// Results are not sorted by distance.
func (idx *Index) GetAllNodesWithinRange(pos spatial.Vec3, r float32, typeMask models.NavType) []Result {
	var results []Result
	idx.hash.ProcessWithinRadius(pos, r, func(rec Record, distSq float32) {
		if idx.nodeMatches(rec.Handle, typeMask) {
			results = append(results, Result{
				DistanceSquared: distSq,
				Handle:          rec.Handle,
			})
		}
	})
	return results
}

// GetNodeWithinRange returns the first node matching typeMask found within r
// of pos. It is not necessarily the nearest one.
func (idx *Index) GetNodeWithinRange(pos spatial.Vec3, r float32, typeMask models.NavType) (Result, bool) {
	rec, distSq, ok := idx.hash.FirstWithinRadius(pos, r, func(rec Record, distSq float32) bool {
		return idx.nodeMatches(rec.Handle, typeMask)
	})
	if !ok {
		return Result{}, false
	}

	return Result{
		DistanceSquared: distSq,
		Handle:          rec.Handle,
	}, true
}

// HashSpace returns the spatial hash backing the index. It must not be
// modified.
func (idx *Index) HashSpace() *spatial.Hash[Record] {
	return idx.hash
}

// MemStats returns the number of bytes used by the index.
func (idx *Index) MemStats() int {
	size := int(unsafe.Sizeof(*idx)) + idx.hash.MemStats()
	for i := range idx.types {
		size += idx.types[i].memStats()
	}
	return size
}

// ValidateHashSpace reports whether the type sets and the spatial hash hold
// the same nodes, each of them once, in the bucket and under the type the
// manager currently reports.
func (idx *Index) ValidateHashSpace() bool {
	typeCount := 0
	for i := range idx.types {
		typeCount += idx.types[i].len()
	}
	if typeCount != idx.hash.Len() {
		return false
	}

	seen := make(map[models.Handle]struct{}, idx.hash.Len())

	for b := 0; b < idx.hash.BucketCount(); b++ {
		for o := 0; o < idx.hash.ObjectCountInBucket(b); o++ {
			h := idx.hash.ObjectInBucket(b, o).Handle

			if _, ok := seen[h]; ok {
				return false
			}
			seen[h] = struct{}{}

			n, ok := idx.manager.Node(h)
			if !ok || !n.Type.IsSingle() || !idx.types[n.Type.Index()].contains(h) {
				return false
			}

			i, j, k := idx.hash.IJK(n.Position)
			if idx.hash.BucketIndex(i, j, k) != b {
				return false
			}
		}
	}

	return true
}

// Compact releases the unused memory of the type sets and of the spatial
// hash. Query results and iterators are not affected.
func (idx *Index) Compact() {
	for i := range idx.types {
		idx.types[i].compact()
	}
	idx.hash.Compact()
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return idx.hash.Len()
}

// CountByType returns the number of indexed nodes matching t.
func (idx *Index) CountByType(t models.NavType) int {
	count := 0
	for _, nt := range t.Split() {
		count += idx.types[nt.Index()].len()
	}
	return count
}

// Types returns the navigation types that have at least one indexed node.
func (idx *Index) Types() models.NavType {
	var t models.NavType
	for i := range idx.types {
		if idx.types[i].len() != 0 {
			t |= models.NavTypeAt(i)
		}
	}
	return t
}

// Close releases the index storage. Iterators created from a closed index
// are exhausted and nodes can no longer be added.
func (idx *Index) Close() {
	for i := range idx.types {
		idx.types[i] = handleSet{}
	}
	idx.hash.Clear(true)
	idx.closed = true
	idx.mutated()
}
