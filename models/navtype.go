package models

import (
	"math/bits"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// NavType is a bitmask of navigation surface types. A node has exactly one
// type while queries accept any combination.
type NavType uint32

const (
	NavTriangular NavType = 1 << iota
	NavWaypointHuman
	NavWaypoint3DSurface
	NavFlight
	NavVolume
	NavRoad
	NavSmartObject
	NavFree2D
	NavCustom

	// NavTypeCount is the number of single navigation types.
	NavTypeCount = iota

	NavAll NavType = 1<<NavTypeCount - 1
)

var navTypeNames = [NavTypeCount]string{
	"triangular",
	"waypoint_human",
	"waypoint_3d_surface",
	"flight",
	"volume",
	"road",
	"smart_object",
	"free_2d",
	"custom",
}

// NavTypeAt returns the single type stored at the given bit index.
func NavTypeAt(index int) NavType {
	return 1 << index
}

// IsSingle reports whether t is exactly one known navigation type.
func (t NavType) IsSingle() bool {
	return t != 0 && t&NavAll == t && t&(t-1) == 0
}

// Index returns the bit index of a single type.
func (t NavType) Index() int {
	return bits.TrailingZeros32(uint32(t))
}

// Matches reports whether t shares at least one bit with mask.
func (t NavType) Matches(mask NavType) bool {
	return t&mask != 0
}

// Split returns the single types contained in t, lowest bit first.
func (t NavType) Split() []NavType {
	types := make([]NavType, 0, bits.OnesCount32(uint32(t&NavAll)))
	for i := 0; i < NavTypeCount; i++ {
		if nt := NavTypeAt(i); t&nt != 0 {
			types = append(types, nt)
		}
	}
	return types
}

func (t NavType) String() string {
	switch {
	case t == 0:
		return "none"
	case t == NavAll:
		return "all"
	}

	names := make([]string, 0, NavTypeCount)
	for _, nt := range t.Split() {
		names = append(names, navTypeNames[nt.Index()])
	}
	if t&^NavAll != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}

func (t NavType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *NavType) UnmarshalText(b []byte) error {
	v, err := ParseNavType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseNavType parses a list of type names separated by "|" or ",". "all"
// and an empty string both return NavAll.
func ParseNavType(s string) (NavType, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return NavAll, nil
	}

	var t NavType
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		name = strings.TrimSpace(name)

		idx := -1
		for i, n := range navTypeNames {
			if n == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, errors.New("unknown navigation type").
				WithType(ErrTypeInvalidNavType).
				WithTag("name", name)
		}
		t |= NavTypeAt(idx)
	}
	return t, nil
}
