package service

// EventType represents the type of event in the system
type EventType int

const (
	EventCall EventType = iota
	EventButton
	EventInput
	EventCallState
	EventCommand
	EventBattery
	EventMaxBrightness
	EventPasscode
	EventUnlocked
	EventActivity
	EventDnast
	EventPowerOnline
	EventSuspend
	EventResume
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Data interface{}
}

// ButtonData contains data for button events
type ButtonData struct {
	Button  string
	Pressed bool
}

// CommandData contains data for display:command requests
type CommandData struct {
	Command string
}

// DnastData reports a do-not-auto-sleep holder being acquired or released
type DnastData struct {
	Holder string
	Held   bool
}
