package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 is a world space position.
type Vec3 = mgl32.Vec3

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func Vec3EqualWithEpsilon(v1 Vec3, v2 Vec3, epsilon float64) bool {
	return EqualWithEpsilon(v1[0], v2[0], epsilon) &&
		EqualWithEpsilon(v1[1], v2[1], epsilon) &&
		EqualWithEpsilon(v1[2], v2[2], epsilon)
}

// DistanceSquared returns the squared euclidean distance between a and b.
func DistanceSquared(a Vec3, b Vec3) float32 {
	d := a.Sub(b)
	return d.Dot(d)
}

// Reciprocal returns the per component inverse of v.
func Reciprocal(v Vec3) Vec3 {
	return Vec3{1 / v[0], 1 / v[1], 1 / v[2]}
}

// MaxCoordinate bounds the absolute value of a position component. Past it
// float32 positions are no longer precise to the unit.
const MaxCoordinate float32 = 1 << 24

// floorToInt32 floors v and clamps it to the int32 range. NaN maps to 0.
func floorToInt32(v float32) int32 {
	f := math.Floor(float64(v))
	switch {
	case f != f:
		return 0
	case f <= math.MinInt32:
		return math.MinInt32
	case f >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(f)
	}
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two greater or equal to n.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}

	v := uint32(n - 1)
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return int(v + 1)
}

// IsFinite reports whether no component of v is NaN or infinite.
func IsFinite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

// InBounds reports whether v is finite and no component exceeds
// MaxCoordinate in absolute value.
func InBounds(v Vec3) bool {
	if !IsFinite(v) {
		return false
	}
	for _, c := range v {
		if c > MaxCoordinate || c < -MaxCoordinate {
			return false
		}
	}
	return true
}
