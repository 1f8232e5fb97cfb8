package models

import (
	"fmt"
	"strings"
)

// Region partitions where a metric value is recorded for an assessment.
type Region int

const (
	// Mid holds non-bilateral (frontal) measurements
	Mid Region = iota
	// Left holds the left lateral of bilateral measurements
	Left
	// Right holds the right lateral of bilateral measurements
	Right
)

// Regions lists every region in storage order.
var Regions = []Region{Mid, Left, Right}

func (r Region) String() string {
	switch r {
	case Mid:
		return "frontal"
	case Left:
		return "left-lateral"
	case Right:
		return "right-lateral"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

// Valid reports whether r is one of the three known regions.
func (r Region) Valid() bool { return r >= Mid && r <= Right }

// Lateral reports whether r is one of the lateral regions.
func (r Region) Lateral() bool { return r == Left || r == Right }

// Opposite returns the other lateral. Mid is its own opposite.
func (r Region) Opposite() Region {
	switch r {
	case Left:
		return Right
	case Right:
		return Left
	default:
		return r
	}
}

// ParseRegion accepts both the long names returned by String and the
// short forms mid, left and right.
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mid", "frontal", "front", "":
		return Mid, nil
	case "left", "left-lateral", "leftlateral":
		return Left, nil
	case "right", "right-lateral", "rightlateral":
		return Right, nil
	default:
		return Mid, fmt.Errorf("unknown region %q", s)
	}
}

// Sex is a bitmask so growth data can apply to both sexes at once.
type Sex int8

const (
	UnknownSex Sex = 0
	Female     Sex = 1
	Male       Sex = 2
	BothSexes      = Female | Male
)

func (s Sex) String() string {
	switch s {
	case Female:
		return "F"
	case Male:
		return "M"
	case BothSexes:
		return "MF"
	default:
		return "U"
	}
}

// Valid reports whether s names a sex a growth dataset can describe.
func (s Sex) Valid() bool { return s == Female || s == Male || s == BothSexes }

// ParseSex reads F, M, MF (or FM, B). Empty and U give UnknownSex.
func ParseSex(s string) (Sex, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "F", "FEMALE":
		return Female, nil
	case "M", "MALE":
		return Male, nil
	case "MF", "FM", "B", "BOTH":
		return BothSexes, nil
	case "", "U", "UNKNOWN":
		return UnknownSex, nil
	default:
		return UnknownSex, fmt.Errorf("unknown sex %q", s)
	}
}

// Demographic is the subject information used to select reference data.
// It is comparable so it can key memoized selections.
type Demographic struct {
	// Sex of the subject (UnknownSex when not recorded)
	Sex Sex

	// MaternalEthnicity and PaternalEthnicity are ethnicity codes
	// where 0 means unspecified
	MaternalEthnicity int
	PaternalEthnicity int

	// Age in years at the time of capture
	Age float64
}
