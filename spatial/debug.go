package spatial

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DebugInfo describes how a hash is filled. It is meant for diagnostics and
// is expensive to compute on large hashes.
type DebugInfo struct {
	CellSize        Vec3     `json:"cell_size"`
	BucketCount     int      `json:"bucket_count"`
	ObjectCount     int      `json:"object_count"`
	EmptyBuckets    int      `json:"empty_buckets"`
	MaxOccupancy    int      `json:"max_occupancy"`
	MeanOccupancy   float64  `json:"mean_occupancy"`
	StdDevOccupancy float64  `json:"std_dev_occupancy"`
	LoadFactor      float64  `json:"load_factor"`
	MemoryBytes     int      `json:"memory_bytes"`
	Occupancy       []uint32 `json:"occupancy,omitempty"`
}

func (h *Hash[T]) DebugInfo(withOccupancy bool) DebugInfo {
	result := DebugInfo{
		CellSize:    h.cellSize,
		BucketCount: len(h.cells),
		ObjectCount: h.count,
		MemoryBytes: h.MemStats(),
	}

	occupancy := make([]float64, len(h.cells))
	for b := range h.cells {
		n := len(h.cells[b].objects)
		occupancy[b] = float64(n)
		if n == 0 {
			result.EmptyBuckets++
		}
	}

	if len(occupancy) > 1 {
		result.MeanOccupancy, result.StdDevOccupancy = stat.MeanStdDev(occupancy, nil)
	} else {
		result.MeanOccupancy = occupancy[0]
	}
	result.MaxOccupancy = int(floats.Max(occupancy))
	result.LoadFactor = float64(h.count) / float64(len(h.cells))

	if withOccupancy {
		result.Occupancy = make([]uint32, len(occupancy))
		for b, n := range occupancy {
			result.Occupancy[b] = uint32(n)
		}
	}

	return result
}
