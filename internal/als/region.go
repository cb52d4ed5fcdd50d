// Package als classifies ambient light sensor readings into coarse regions.
package als

import (
	"strconv"
	"time"
)

// Region is a coarse ambient light classification.
type Region int

const (
	RegionUndefined Region = iota
	RegionDark
	RegionDim
	RegionIndoor
	RegionOutdoor
)

func (r Region) String() string {
	switch r {
	case RegionUndefined:
		return "undefined"
	case RegionDark:
		return "dark"
	case RegionDim:
		return "dim"
	case RegionIndoor:
		return "indoor"
	case RegionOutdoor:
		return "outdoor"
	default:
		return "region(" + strconv.Itoa(int(r)) + ")"
	}
}

// WindowSize is the number of raw readings averaged.
const WindowSize = 10

// Config holds the region borders and hysteresis margins. A border is the
// upper bound of its region; leaving a region upward requires the average to
// exceed its border plus margin, leaving it downward requires the average to
// drop below the lower neighbour's border minus that neighbour's margin.
type Config struct {
	DarkBorder   int32 `yaml:"dark_border"`
	DimBorder    int32 `yaml:"dim_border"`
	IndoorBorder int32 `yaml:"indoor_border"`

	DarkMargin   int32 `yaml:"dark_margin"`
	DimMargin    int32 `yaml:"dim_margin"`
	IndoorMargin int32 `yaml:"indoor_margin"`

	// FastSamples is used right after Start, SteadySamples afterwards.
	FastSamples   int `yaml:"fast_samples"`
	SteadySamples int `yaml:"steady_samples"`

	MinInterval time.Duration `yaml:"min_interval"`
}

// DefaultConfig returns the stock borders.
func DefaultConfig() Config {
	return Config{
		DarkBorder:    15,
		DimBorder:     200,
		IndoorBorder:  3000,
		DarkMargin:    5,
		DimMargin:     30,
		IndoorMargin:  400,
		FastSamples:   3,
		SteadySamples: 5,
		MinInterval:   100 * time.Millisecond,
	}
}

func (c Config) upper(r Region) (border, margin int32, ok bool) {
	switch r {
	case RegionDark:
		return c.DarkBorder, c.DarkMargin, true
	case RegionDim:
		return c.DimBorder, c.DimMargin, true
	case RegionIndoor:
		return c.IndoorBorder, c.IndoorMargin, true
	}
	return 0, 0, false
}

// classify maps an average onto a region ignoring hysteresis.
func (c Config) classify(avg int32) Region {
	switch {
	case avg <= c.DarkBorder:
		return RegionDark
	case avg <= c.DimBorder:
		return RegionDim
	case avg <= c.IndoorBorder:
		return RegionIndoor
	default:
		return RegionOutdoor
	}
}

// next applies hysteresis to the current region.
func (c Config) next(cur Region, avg int32) Region {
	if cur == RegionUndefined {
		return c.classify(avg)
	}
	if border, margin, ok := c.upper(cur); ok && avg > border+margin {
		return c.classify(avg)
	}
	if border, margin, ok := c.upper(cur - 1); ok && avg < border-margin {
		return c.classify(avg)
	}
	return cur
}
