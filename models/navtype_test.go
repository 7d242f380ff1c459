package models

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNavTypeBits(t *testing.T) {
	require.Equal(t, NavType(1), NavTriangular)
	require.Equal(t, NavType(1<<8), NavCustom)
	require.Equal(t, 9, NavTypeCount)
	require.Equal(t, NavType(0x1ff), NavAll)

	for i := 0; i < NavTypeCount; i++ {
		nt := NavTypeAt(i)
		require.True(t, nt.IsSingle())
		require.Equal(t, i, nt.Index())
	}

	require.False(t, NavType(0).IsSingle())
	require.False(t, (NavFlight | NavRoad).IsSingle())
	require.False(t, NavType(1<<12).IsSingle())
}

func TestNavTypeMatches(t *testing.T) {
	require.True(t, NavFlight.Matches(NavFlight|NavRoad))
	require.True(t, NavFlight.Matches(NavAll))
	require.False(t, NavFlight.Matches(NavRoad))
	require.False(t, NavFlight.Matches(0))
}

func TestNavTypeString(t *testing.T) {
	tests := []struct {
		navType  NavType
		expected string
	}{
		{navType: 0, expected: "none"},
		{navType: NavAll, expected: "all"},
		{navType: NavWaypointHuman, expected: "waypoint_human"},
		{navType: NavTriangular | NavFlight, expected: "triangular|flight"},
		{navType: NavCustom | 1<<20, expected: "custom|unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, test.navType.String())
		})
	}
}

func TestParseNavType(t *testing.T) {
	t.Run("parses names", func(t *testing.T) {
		nt, err := ParseNavType("flight|road")
		require.NoError(t, err)
		require.Equal(t, NavFlight|NavRoad, nt)

		nt, err = ParseNavType(" volume, free_2d ")
		require.NoError(t, err)
		require.Equal(t, NavVolume|NavFree2D, nt)
	})

	t.Run("parses all", func(t *testing.T) {
		nt, err := ParseNavType("all")
		require.NoError(t, err)
		require.Equal(t, NavAll, nt)

		nt, err = ParseNavType("")
		require.NoError(t, err)
		require.Equal(t, NavAll, nt)
	})

	t.Run("string round trip", func(t *testing.T) {
		for i := 0; i < NavTypeCount; i++ {
			nt, err := ParseNavType(NavTypeAt(i).String())
			require.NoError(t, err)
			require.Equal(t, NavTypeAt(i), nt)
		}
	})

	t.Run("unknown name returns an error", func(t *testing.T) {
		_, err := ParseNavType("flight|boat")
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidNavType, errors.Type(err))
	})
}

func TestNavTypeText(t *testing.T) {
	b, err := (NavSmartObject | NavRoad).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "road|smart_object", string(b))

	var nt NavType
	require.NoError(t, nt.UnmarshalText(b))
	require.Equal(t, NavSmartObject|NavRoad, nt)

	require.Error(t, nt.UnmarshalText([]byte("nope")))
}
