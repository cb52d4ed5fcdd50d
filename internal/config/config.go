package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/librescoot/display-service/internal/als"
	"github.com/librescoot/display-service/internal/display"
	"github.com/librescoot/display-service/internal/hardware"
)

type Config struct {
	RedisHost string `yaml:"redis_host"`
	RedisPort int    `yaml:"redis_port"`

	SocketPath string `yaml:"socket_path"`
	DryRun     bool   `yaml:"dry_run"`

	Display  display.Settings `yaml:"display"`
	ALS      als.Config       `yaml:"als"`
	Hardware hardware.Config  `yaml:"hardware"`
}

func New() *Config {
	return &Config{
		RedisHost:  "localhost",
		RedisPort:  6379,
		SocketPath: "/tmp/display_dnast",
		DryRun:     false,
		Display:    display.DefaultSettings(),
		ALS:        als.DefaultConfig(),
		Hardware:   hardware.DefaultConfig(),
	}
}

// RedisAddr is host:port for go-redis clients.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// BindFlags registers every option on fs, defaulting to the current values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis host")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")

	fs.StringVar(&c.SocketPath, "socket-path", c.SocketPath,
		"Path for the Unix domain socket for do-not-auto-sleep clients")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun,
		"Dry run (log hardware writes instead of performing them)")

	d := &c.Display
	fs.DurationVar(&d.DimTimeout, "dim-timeout", d.DimTimeout, "Inactivity before a lit display dims")
	fs.DurationVar(&d.OffTimeout, "off-timeout", d.OffTimeout, "Time a dimmed display stays dimmed before turning off")
	fs.DurationVar(&d.LockedOffTimeout, "locked-off-timeout", d.LockedOffTimeout,
		"Time the lock screen or a non-user wake stays lit")
	fs.DurationVar(&d.DockExitTimeout, "dock-exit-timeout", d.DockExitTimeout, "Dock mode exit check interval")
	fs.DurationVar(&d.PowerKeyHoldTimeout, "power-key-hold", d.PowerKeyHoldTimeout, "Power key hold threshold")
	fs.DurationVar(&d.SliderDebounce, "slider-debounce", d.SliderDebounce, "Slider debounce interval")
	fs.DurationVar(&d.AlertDismissTimeout, "alert-dismiss-timeout", d.AlertDismissTimeout,
		"Time an alert keeps the display lit without activity")
	fs.IntVar(&d.MaxBrightness, "max-brightness", d.MaxBrightness, "Default maximum brightness (1-100)")
	fs.IntVar(&d.DimBrightness, "dim-brightness", d.DimBrightness, "Brightness of a dimmed display (1-100)")
	fs.IntVar(&d.KeypadBrightness, "keypad-brightness", d.KeypadBrightness, "Keypad backlight level (0-100)")
	fs.IntVar(&d.OutdoorScale, "outdoor-scale", d.OutdoorScale, "Brightness scale outdoors, percent")
	fs.IntVar(&d.DimScale, "dim-scale", d.DimScale, "Brightness scale in dim light, percent")
	fs.IntVar(&d.DarkScale, "dark-scale", d.DarkScale, "Brightness scale in the dark, percent")
	fs.BoolVar(&d.HasSlider, "has-slider", d.HasSlider, "Device has a keyboard slider")
	fs.BoolVar(&d.DemoMode, "demo-mode", d.DemoMode, "Demo mode (longer timeouts, no dim stage)")

	a := &c.ALS
	fs.Int32Var(&a.DarkBorder, "als-dark-border", a.DarkBorder, "Upper light level of the dark region")
	fs.Int32Var(&a.DimBorder, "als-dim-border", a.DimBorder, "Upper light level of the dim region")
	fs.Int32Var(&a.IndoorBorder, "als-indoor-border", a.IndoorBorder, "Upper light level of the indoor region")
	fs.Int32Var(&a.DarkMargin, "als-dark-margin", a.DarkMargin, "Hysteresis around the dark border")
	fs.Int32Var(&a.DimMargin, "als-dim-margin", a.DimMargin, "Hysteresis around the dim border")
	fs.Int32Var(&a.IndoorMargin, "als-indoor-margin", a.IndoorMargin, "Hysteresis around the indoor border")
	fs.IntVar(&a.FastSamples, "als-fast-samples", a.FastSamples, "Samples needed for the first classification")
	fs.IntVar(&a.SteadySamples, "als-steady-samples", a.SteadySamples, "Samples between later classifications")
	fs.DurationVar(&a.MinInterval, "als-min-interval", a.MinInterval, "Minimum interval between accepted samples")

	h := &c.Hardware
	fs.StringVar(&h.BacklightPath, "backlight-path", h.BacklightPath, "Sysfs backlight device directory")
	fs.StringVar(&h.KeypadPath, "keypad-path", h.KeypadPath, "Sysfs keypad LED directory")
	fs.StringVar(&h.VSyncPath, "vsync-path", h.VSyncPath, "Sysfs vsync enable attribute")
	fs.StringVar(&h.LightSensorPath, "light-sensor-path", h.LightSensorPath, "Sysfs illuminance attribute")
	fs.DurationVar(&h.LightPollInterval, "light-poll-interval", h.LightPollInterval, "Light sensor poll interval")
	fs.StringVar(&h.GPIOChip, "gpio-chip", h.GPIOChip, "GPIO chip for touch panel and throbber")
	fs.IntVar(&h.TouchPanelLine, "touch-panel-line", h.TouchPanelLine, "GPIO offset of the touch panel enable line")
	fs.IntVar(&h.ThrobberLine, "throbber-line", h.ThrobberLine, "GPIO offset of the standby throbber LED")
}

// LoadFile overlays a YAML policy file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path and then re-applies every flag that was
// set explicitly on fs, so the command line wins over the file.
func (c *Config) Load(path string, fs *pflag.FlagSet) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := c.LoadFile(path); err != nil {
		return err
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to re-apply flag --%s: %w", name, err)
		}
	}
	return c.Validate()
}

// Validate rejects settings the display cannot run with.
func (c *Config) Validate() error {
	d := c.Display
	if d.MaxBrightness < display.MinimumOnBrightness || d.MaxBrightness > display.MaximumBrightness {
		return fmt.Errorf("max brightness %d out of range", d.MaxBrightness)
	}
	if d.DimTimeout <= 0 || d.OffTimeout <= 0 {
		return fmt.Errorf("dim and off timeouts must be positive")
	}
	a := c.ALS
	if a.DarkBorder >= a.DimBorder || a.DimBorder >= a.IndoorBorder {
		return fmt.Errorf("light region borders must be increasing")
	}
	if a.FastSamples <= 0 || a.SteadySamples <= 0 || a.SteadySamples > als.WindowSize {
		return fmt.Errorf("light sample counts must be within 1-%d", als.WindowSize)
	}
	if c.Hardware.LightPollInterval < time.Millisecond {
		return fmt.Errorf("light poll interval too short: %v", c.Hardware.LightPollInterval)
	}
	return nil
}
