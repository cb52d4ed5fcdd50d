package hardware

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

const (
	lineTouchPanel = "touch_panel"
	lineThrobber   = "throbber"
)

// GPIOManager handles the display's GPIO output lines
type GPIOManager struct {
	chip   *gpiocdev.Chip
	lines  map[string]*gpiocdev.Line
	logger *log.Logger
	dryRun bool
}

// NewGPIOManager opens the chip and requests the touch panel and throbber
// lines, both initially low.
func NewGPIOManager(logger *log.Logger, cfg Config, dryRun bool) (*GPIOManager, error) {
	gm := &GPIOManager{
		lines:  make(map[string]*gpiocdev.Line),
		logger: logger,
		dryRun: dryRun,
	}

	if !dryRun {
		chip, err := gpiocdev.NewChip(cfg.GPIOChip)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO chip: %w", err)
		}
		gm.chip = chip

		if err := gm.initializeLines(cfg); err != nil {
			chip.Close()
			return nil, fmt.Errorf("failed to initialize display GPIO lines: %w", err)
		}
	}

	return gm, nil
}

func (gm *GPIOManager) initializeLines(cfg Config) error {
	touch, err := gm.chip.RequestLine(cfg.TouchPanelLine, gpiocdev.AsOutput(0))
	if err != nil {
		return fmt.Errorf("failed to request touch panel GPIO: %w", err)
	}
	gm.lines[lineTouchPanel] = touch

	if cfg.ThrobberLine >= 0 {
		throbber, err := gm.chip.RequestLine(cfg.ThrobberLine, gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("failed to request throbber GPIO: %w", err)
		}
		gm.lines[lineThrobber] = throbber
	}

	gm.logger.Printf("Initialized display GPIO lines: touch_panel (%d), throbber (%d)",
		cfg.TouchPanelLine, cfg.ThrobberLine)
	return nil
}

func (gm *GPIOManager) set(name string, enabled bool) error {
	if gm.dryRun {
		gm.logger.Printf("DRY RUN: Would set %s to %v", name, enabled)
		return nil
	}

	line, exists := gm.lines[name]
	if !exists {
		return fmt.Errorf("%s GPIO line not initialized", name)
	}

	value := 0
	if enabled {
		value = 1
	}

	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set %s GPIO: %w", name, err)
	}
	return nil
}

// SetTouchPanel powers the touch controller
func (gm *GPIOManager) SetTouchPanel(enabled bool) error {
	return gm.set(lineTouchPanel, enabled)
}

// SetThrobber drives the standby LED
func (gm *GPIOManager) SetThrobber(enabled bool) error {
	return gm.set(lineThrobber, enabled)
}

// Close releases all GPIO resources
func (gm *GPIOManager) Close() error {
	if gm.dryRun {
		return nil
	}

	var lastErr error

	for name, line := range gm.lines {
		if err := line.Close(); err != nil {
			gm.logger.Printf("Failed to close GPIO line %s: %v", name, err)
			lastErr = err
		}
	}

	if gm.chip != nil {
		if err := gm.chip.Close(); err != nil {
			gm.logger.Printf("Failed to close GPIO chip: %v", err)
			lastErr = err
		}
	}

	gm.logger.Printf("Closed GPIO manager")
	return lastErr
}
