package models

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newID(t *testing.T, idGen *SequentialIDGenerator) uint32 {
	id, err := idGen.New()
	require.NoError(t, err)
	return id
}

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), newID(t, &idGen))
		}
	})

	t.Run("returns the last reusable id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			newID(t, &idGen)
		}

		idGen.Reuse(2)
		idGen.Reuse(4)
		require.Equal(t, uint32(4), newID(t, &idGen))
		require.Equal(t, uint32(2), newID(t, &idGen))
		require.Equal(t, uint32(6), newID(t, &idGen))
	})

	t.Run("ignores ids that were never issued", func(t *testing.T) {
		var idGen SequentialIDGenerator
		newID(t, &idGen)

		idGen.Reuse(0)
		idGen.Reuse(42)
		idGen.Reuse(1)
		idGen.Reuse(1)
		require.Equal(t, uint32(1), newID(t, &idGen))
		require.Equal(t, uint32(2), newID(t, &idGen))
	})

	t.Run("returns an error when exhausted", func(t *testing.T) {
		var idGen SequentialIDGenerator
		idGen.Reserve(math.MaxUint32)

		id, err := idGen.New()
		require.Error(t, err)
		require.Equal(t, ErrTypeHandlesExhausted, errors.Type(err))
		require.Zero(t, id)

		idGen.Reuse(7)
		require.Equal(t, uint32(7), newID(t, &idGen))
	})

	t.Run("wraps around and skips ids in use", func(t *testing.T) {
		inUse := map[uint32]bool{1: true, 2: true, math.MaxUint32: true}
		idGen := SequentialIDGenerator{
			InUse: func(id uint32) bool { return inUse[id] },
		}
		idGen.Reserve(math.MaxUint32)

		require.Equal(t, uint32(3), newID(t, &idGen))
		require.Equal(t, uint32(4), newID(t, &idGen))
	})

}

func TestSequentialIDGeneratorReserve(t *testing.T) {
	t.Run("advances past a reserved id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		idGen.Reserve(10)
		require.Equal(t, uint32(11), newID(t, &idGen))
	})

	t.Run("takes a reusable id", func(t *testing.T) {
		var idGen SequentialIDGenerator
		for i := 1; i <= 3; i++ {
			newID(t, &idGen)
		}

		idGen.Reuse(2)
		idGen.Reserve(2)
		require.Equal(t, uint32(4), newID(t, &idGen))
	})

	t.Run("reset", func(t *testing.T) {
		var idGen SequentialIDGenerator
		idGen.Reserve(10)
		idGen.Reuse(3)

		idGen.Reset()
		require.Equal(t, uint32(1), newID(t, &idGen))
	})
}
