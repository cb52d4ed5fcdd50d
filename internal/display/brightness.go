package display

import (
	"time"

	"github.com/librescoot/display-service/internal/als"
)

const (
	MinimumOnBrightness = 1
	MaximumBrightness   = 100
)

// Settings is the display policy.
type Settings struct {
	DimTimeout          time.Duration `yaml:"dim_timeout"`
	OffTimeout          time.Duration `yaml:"off_timeout"`
	LockedOffTimeout    time.Duration `yaml:"locked_off_timeout"`
	DockExitTimeout     time.Duration `yaml:"dock_exit_timeout"`
	PowerKeyHoldTimeout time.Duration `yaml:"power_key_hold_timeout"`
	SliderDebounce      time.Duration `yaml:"slider_debounce"`
	AlertDismissTimeout time.Duration `yaml:"alert_dismiss_timeout"`

	MaxBrightness    int `yaml:"max_brightness"`
	DimBrightness    int `yaml:"dim_brightness"`
	KeypadBrightness int `yaml:"keypad_brightness"`

	// Region scale factors in percent of the derated maximum.
	OutdoorScale int `yaml:"outdoor_scale"`
	DimScale     int `yaml:"dim_scale"`
	DarkScale    int `yaml:"dark_scale"`

	HasSlider bool `yaml:"has_slider"`
	DemoMode  bool `yaml:"demo_mode"`
}

// DefaultSettings returns the stock policy.
func DefaultSettings() Settings {
	return Settings{
		DimTimeout:          60 * time.Second,
		OffTimeout:          10 * time.Second,
		LockedOffTimeout:    10 * time.Second,
		DockExitTimeout:     5 * time.Second,
		PowerKeyHoldTimeout: 1500 * time.Millisecond,
		SliderDebounce:      150 * time.Millisecond,
		AlertDismissTimeout: 30 * time.Second,
		MaxBrightness:       70,
		DimBrightness:       10,
		KeypadBrightness:    50,
		OutdoorScale:        150,
		DimScale:            60,
		DarkScale:           30,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComputeBrightness derives the backlight level from the brightness ceiling,
// the battery (derated only when unpowered) and the ambient light region.
func ComputeBrightness(max, battery int, powered bool, region als.Region, s Settings) int {
	level := max
	if !powered {
		if battery < 30 {
			level -= 5
		}
		if battery < 20 {
			level -= 5
		}
		if battery < 10 {
			level -= 10
		}
	}

	switch region {
	case als.RegionOutdoor:
		level = level * s.OutdoorScale / 100
	case als.RegionDim:
		level = level * s.DimScale / 100
	case als.RegionDark:
		level = level * s.DarkScale / 100
	}
	return clamp(level, MinimumOnBrightness, MaximumBrightness)
}

// KeypadLevel is the keypad backlight for a lit, slider-open device.
func KeypadLevel(region als.Region, s Settings) int {
	if region == als.RegionOutdoor {
		return 0
	}
	return clamp(s.KeypadBrightness, 0, MaximumBrightness)
}
