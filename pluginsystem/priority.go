package pluginsystem

import (
	"fmt"
	"strconv"
	"strings"
)

// PriorityBand is a coarse ordering class; lower bands initialize first.
type PriorityBand int

const (
	BandKernel PriorityBand = iota
	BandCoreCritical
	BandCore
	BandThirdPartyHigh
	BandThirdParty
	BandThirdPartyLow
)

var bandNames = map[PriorityBand]string{
	BandKernel:         "kernel",
	BandCoreCritical:   "core_critical",
	BandCore:           "core",
	BandThirdPartyHigh: "third_party_high",
	BandThirdParty:     "third_party",
	BandThirdPartyLow:  "third_party_low",
}

var bandRange = map[PriorityBand][2]uint8{
	BandKernel:         {0, 10},
	BandCoreCritical:   {11, 50},
	BandCore:           {51, 100},
	BandThirdPartyHigh: {101, 150},
	BandThirdParty:     {151, 200},
	BandThirdPartyLow:  {201, 255},
}

// Priority is a plugin's init ordering: band first, then the inner value.
type Priority struct {
	Band  PriorityBand
	Value uint8
}

// Compare implements the two-level (band, then value) ordering: lower
// Compare result means p initializes earlier.
func (p Priority) Compare(o Priority) int {
	if p.Band != o.Band {
		if p.Band < o.Band {
			return -1
		}
		return 1
	}
	switch {
	case p.Value < o.Value:
		return -1
	case p.Value > o.Value:
		return 1
	default:
		return 0
	}
}

// Less reports whether p initializes strictly before o.
func (p Priority) Less(o Priority) bool { return p.Compare(o) < 0 }

// String renders the canonical "band:value" form, underscored.
func (p Priority) String() string {
	return fmt.Sprintf("%s:%d", bandNames[p.Band], p.Value)
}

// ParsePriority parses "band:value", accepting both the underscored
// ("core_critical") and non-underscored ("corecritical") band spellings.
// The value must fall inside the band's numeric range or parsing fails —
// unlike the FFI wire-priority clamp in package ffi, a malformed manifest
// string is an authoring error, not a degrade-gracefully case.
func ParsePriority(s string) (Priority, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Priority{}, fmt.Errorf("priority %q: expected \"band:value\"", s)
	}
	band, ok := parseBand(parts[0])
	if !ok {
		return Priority{}, fmt.Errorf("priority %q: unknown band %q", s, parts[0])
	}
	n, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil {
		return Priority{}, fmt.Errorf("priority %q: value is not a valid byte: %w", s, err)
	}
	value := uint8(n)
	bounds := bandRange[band]
	if value < bounds[0] || value > bounds[1] {
		return Priority{}, fmt.Errorf("priority %q: value %d out of range [%d,%d] for band %s", s, value, bounds[0], bounds[1], bandNames[band])
	}
	return Priority{Band: band, Value: value}, nil
}

func parseBand(s string) (PriorityBand, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(s, "_", ""))
	switch normalized {
	case "kernel":
		return BandKernel, true
	case "corecritical":
		return BandCoreCritical, true
	case "core":
		return BandCore, true
	case "thirdpartyhigh":
		return BandThirdPartyHigh, true
	case "thirdparty":
		return BandThirdParty, true
	case "thirdpartylow":
		return BandThirdPartyLow, true
	default:
		return 0, false
	}
}
