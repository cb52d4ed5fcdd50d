package service

import "github.com/librescoot/display-service/internal/display"

// Call states published in the telephony hash
const (
	callIdle     = "idle"
	callIncoming = "incoming"
	callActive   = "active"
)

// supplyInput maps a power-supply hash field to a charger input.
func supplyInput(field, value string) (display.Input, bool) {
	var connected bool
	switch value {
	case "connected":
		connected = true
	case "disconnected":
		connected = false
	default:
		return 0, false
	}

	switch field {
	case "usb":
		if connected {
			return display.InputUsbIn, true
		}
		return display.InputUsbOut, true
	case "inductive":
		if connected {
			return display.InputPuckIn, true
		}
		return display.InputPuckOut, true
	}
	return 0, false
}

func sliderInput(value string) (display.Input, bool) {
	switch value {
	case "open":
		return display.InputSliderOpen, true
	case "closed":
		return display.InputSliderClose, true
	}
	return 0, false
}

func proximityInput(value string) (display.Input, bool) {
	switch value {
	case "near":
		return display.InputProximityOn, true
	case "far":
		return display.InputProximityOff, true
	}
	return 0, false
}

func emergencyInput(value string) (display.Input, bool) {
	switch value {
	case "active":
		return display.InputEmergencyEnter, true
	case "inactive":
		return display.InputEmergencyExit, true
	}
	return 0, false
}

// callInputs returns the inputs for a call state change. An answered call
// ends the incoming phase before the call starts.
func callInputs(prev, next string) []display.Input {
	if prev == next {
		return nil
	}

	var inputs []display.Input
	switch prev {
	case callIncoming:
		inputs = append(inputs, display.InputIncomingCallDone)
	case callActive:
		inputs = append(inputs, display.InputCallEnd)
	}

	switch next {
	case callIncoming:
		inputs = append(inputs, display.InputIncomingCall)
	case callActive:
		inputs = append(inputs, display.InputCallStart)
	}
	return inputs
}
