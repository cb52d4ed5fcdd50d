package hardware

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LevelDevice is a sysfs brightness device (backlight class or LED class)
// driven in percent.
type LevelDevice struct {
	logger *log.Logger
	dryRun bool
	name   string
	dir    string
	max    int
	level  int
}

// NewLevelDevice opens the device directory and reads its max_brightness.
func NewLevelDevice(logger *log.Logger, name, dir string, dryRun bool) (*LevelDevice, error) {
	d := &LevelDevice{
		logger: logger,
		dryRun: dryRun,
		name:   name,
		dir:    dir,
		max:    100,
	}
	if dryRun {
		return d, nil
	}

	max, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s max brightness: %w", name, err)
	}
	if max <= 0 {
		return nil, fmt.Errorf("invalid %s max brightness: %d", name, max)
	}
	d.max = max
	return d, nil
}

// SetLevel writes percent (0-100) scaled to the device range. Non-zero
// levels never round down to 0.
func (d *LevelDevice) SetLevel(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("invalid %s level: %d", d.name, percent)
	}

	raw := percent * d.max / 100
	if percent > 0 && raw == 0 {
		raw = 1
	}

	if d.dryRun {
		d.logger.Printf("DRY RUN: Would set %s to %d%% (raw %d)", d.name, percent, raw)
		d.level = percent
		return nil
	}

	err := os.WriteFile(filepath.Join(d.dir, "brightness"), []byte(strconv.Itoa(raw)), 0644)
	if err != nil {
		return fmt.Errorf("failed to set %s to %d: %w", d.name, raw, err)
	}

	d.level = percent
	return nil
}

// Level returns the last level written.
func (d *LevelDevice) Level() int {
	return d.level
}

// Switch is a boolean sysfs attribute written as 1/0.
type Switch struct {
	logger *log.Logger
	dryRun bool
	name   string
	path   string
	on     bool
}

func NewSwitch(logger *log.Logger, name, path string, dryRun bool) *Switch {
	return &Switch{
		logger: logger,
		dryRun: dryRun,
		name:   name,
		path:   path,
	}
}

func (s *Switch) Set(on bool) error {
	value := "0"
	if on {
		value = "1"
	}

	if s.dryRun {
		s.logger.Printf("DRY RUN: Would set %s to %s", s.name, value)
		s.on = on
		return nil
	}

	if err := os.WriteFile(s.path, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to set %s to %s: %w", s.name, value, err)
	}

	s.on = on
	return nil
}

func (s *Switch) On() bool {
	return s.on
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
