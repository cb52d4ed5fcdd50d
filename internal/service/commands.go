package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/librescoot/display-service/internal/display"
)

// applyCommand runs one display:command request of the form
// verb[:arg[:arg]] against the display.
func applyCommand(d *display.Manager, command string) error {
	parts := strings.Split(strings.TrimSpace(command), ":")
	verb, args := parts[0], parts[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("command %s takes %d argument(s), got %d", verb, n, len(args))
		}
		return nil
	}

	switch verb {
	case "on", "dim", "off", "dock", "undock", "lock", "unlock", "activity", "alert",
		"block-power-key", "unblock-power-key", "boot-finished":
		if err := want(0); err != nil {
			return err
		}
	}

	switch verb {
	case "on":
		d.On()
	case "dim":
		d.Dim()
	case "off":
		d.Off()
	case "dock":
		d.Dock()
	case "undock":
		d.Undock()
	case "lock":
		d.LockScreen()
	case "unlock":
		d.UnlockScreen()
	case "activity":
		d.UserActivity(true)
	case "alert":
		d.ShowAlert()
	case "block-power-key":
		d.BlockPowerKey()
	case "unblock-power-key":
		d.UnblockPowerKey()
	case "boot-finished":
		d.SetBootFinished(true)

	case "dnast-push", "dnast-pop":
		if err := want(1); err != nil {
			return err
		}
		holder := "command:" + args[0]
		if verb == "dnast-push" {
			d.PushDnast(holder)
		} else {
			d.PopDnast(holder)
		}

	case "max-brightness":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("command %s takes a level and an optional persist flag", verb)
		}
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid brightness %q: %w", args[0], err)
		}
		persist := len(args) == 2 && args[1] == "persist"
		if len(args) == 2 && !persist {
			return fmt.Errorf("unknown max-brightness option %q", args[1])
		}
		d.SetMaximumBrightness(level, persist)

	case "brick", "progress", "demo":
		if err := want(1); err != nil {
			return err
		}
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		switch verb {
		case "brick":
			d.SetBrickMode(on)
		case "progress":
			d.SetProgressRunning(on)
		case "demo":
			d.SetDemoMode(on)
		}

	case "emergency":
		if err := want(1); err != nil {
			return err
		}
		switch args[0] {
		case "enter":
			d.UpdateState(display.InputEmergencyEnter)
		case "exit":
			d.UpdateState(display.InputEmergencyExit)
		default:
			return fmt.Errorf("unknown emergency action %q", args[0])
		}

	case "led-add", "led-remove":
		if err := want(2); err != nil {
			return err
		}
		if verb == "led-add" {
			d.AddStandbyLedRequest(args[0], args[1])
		} else {
			d.RemoveStandbyLedRequest(args[0], args[1])
		}

	default:
		return fmt.Errorf("unknown command: %s", verb)
	}
	return nil
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}
