package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestVec3EqualWithEpsilon(t *testing.T) {
	oneVector := NewVec3(1, 1, 1)

	require.True(t, Vec3EqualWithEpsilon(oneVector, NewVec3(0.9, 1.1, 1), 0.11))
	require.False(t, Vec3EqualWithEpsilon(oneVector, NewVec3(0.9, 1.1, 2), 0.11))
}

func TestDistanceSquared(t *testing.T) {
	require.Equal(t, float32(0), DistanceSquared(NewVec3(1, 2, 3), NewVec3(1, 2, 3)))
	require.Equal(t, float32(25), DistanceSquared(NewVec3(0, 0, 0), NewVec3(3, 4, 0)))
	require.Equal(t, float32(12), DistanceSquared(NewVec3(-1, -1, -1), NewVec3(1, 1, 1)))
}

func TestReciprocal(t *testing.T) {
	require.Equal(t, NewVec3(0.5, 0.25, 1), Reciprocal(NewVec3(2, 4, 1)))
}

func TestFloorToInt32(t *testing.T) {
	require.Equal(t, int32(0), floorToInt32(0.5))
	require.Equal(t, int32(-1), floorToInt32(-0.5))
	require.Equal(t, int32(-1), floorToInt32(-1))
	require.Equal(t, int32(1), floorToInt32(1))

	t.Run("clamps to the int32 range", func(t *testing.T) {
		require.Equal(t, int32(math.MaxInt32), floorToInt32(1e12))
		require.Equal(t, int32(math.MinInt32), floorToInt32(-1e12))
		require.Equal(t, int32(math.MaxInt32), floorToInt32(float32(math.Inf(1))))
		require.Equal(t, int32(0), floorToInt32(float32(math.NaN())))
	})
}

func TestInBounds(t *testing.T) {
	require.True(t, InBounds(NewVec3(MaxCoordinate, -MaxCoordinate, 0)))
	require.False(t, InBounds(NewVec3(0, MaxCoordinate*2, 0)))
	require.False(t, InBounds(NewVec3(0, 0, float32(math.Inf(-1)))))
	require.False(t, InBounds(NewVec3(float32(math.NaN()), 0, 0)))
}

func TestPowerOfTwo(t *testing.T) {
	t.Run("is power of two", func(t *testing.T) {
		for _, n := range []int{1, 2, 4, 1024, 1 << 20} {
			require.True(t, IsPowerOfTwo(n), n)
		}
		for _, n := range []int{-4, 0, 3, 6, 1000} {
			require.False(t, IsPowerOfTwo(n), n)
		}
	})

	t.Run("next power of two", func(t *testing.T) {
		require.Equal(t, 1, NextPowerOfTwo(0))
		require.Equal(t, 1, NextPowerOfTwo(1))
		require.Equal(t, 2, NextPowerOfTwo(2))
		require.Equal(t, 4, NextPowerOfTwo(3))
		require.Equal(t, 1024, NextPowerOfTwo(1000))
		require.Equal(t, 1024, NextPowerOfTwo(1024))
	})
}

func TestIsFinite(t *testing.T) {
	require.True(t, IsFinite(NewVec3(1, -2, 3e30)))
	require.False(t, IsFinite(NewVec3(float32(math.NaN()), 0, 0)))
	require.False(t, IsFinite(NewVec3(0, float32(math.Inf(-1)), 0)))
}
