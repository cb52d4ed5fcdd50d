package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	redis_ipc "github.com/rescoot/redis-ipc"

	"github.com/librescoot/display-service/internal/als"
	"github.com/librescoot/display-service/internal/config"
	"github.com/librescoot/display-service/internal/display"
	"github.com/librescoot/display-service/internal/fsm"
	"github.com/librescoot/display-service/internal/hardware"
	"github.com/librescoot/display-service/internal/inhibitor"
	"github.com/librescoot/display-service/internal/leds"
	"github.com/librescoot/display-service/internal/power"
	"github.com/librescoot/display-service/internal/timer"
)

// CommandList is the request queue for display commands
const CommandList = "display:command"

// suspendTimeout bounds how long a PrepareForSleep waits for the display to
// go dark before the delay lock is released anyway.
const suspendTimeout = 2 * time.Second

type Service struct {
	config        *config.Config
	logger        *log.Logger
	redis         *redis_ipc.Client
	standardRedis *redis.Client

	scheduler        *timer.LoopScheduler
	display          *display.Manager
	hardware         *hardware.Manager
	hardwareListener *hardware.RedisListener
	lightSensor      *hardware.LightSensor
	leds             *leds.Registry
	lock             *lockPolicy
	inhibitors       *inhibitor.Manager
	dnastListener    *inhibitor.RedisListener
	power            *power.Monitor

	events chan Event

	callState string
}

func New(cfg *config.Config, logger *log.Logger) (*Service, error) {
	redisConfig := redis_ipc.Config{
		Address:       cfg.RedisHost,
		Port:          cfg.RedisPort,
		RetryInterval: 5 * time.Second,
		MaxRetries:    3,
	}

	redisClient, err := redis_ipc.New(redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	// Standard client for the hardware mirror, settings and dnast hash
	ctx := context.Background()
	standardRedisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
		DB:   0,
	})

	s := &Service{
		config:        cfg,
		logger:        logger,
		redis:         redisClient,
		standardRedis: standardRedisClient,
		events:        make(chan Event, 100),
		callState:     callIdle,
	}
	s.scheduler = timer.NewLoopScheduler(s.post)

	hw, err := hardware.NewManager(ctx, cfg.Hardware, standardRedisClient, logger, cfg.DryRun, s.post)
	if err != nil {
		return nil, fmt.Errorf("failed to create hardware manager: %w", err)
	}
	s.hardware = hw
	s.hardwareListener = hardware.NewRedisListener(ctx, standardRedisClient, hw, logger, s.post)

	s.lightSensor = hardware.NewLightSensor(logger, cfg.Hardware.LightSensorPath, cfg.Hardware.LightPollInterval,
		cfg.DryRun, s.post, func(intensity int32) { s.display.AlsSample(intensity) })
	classifier := als.NewClassifier(cfg.ALS, s.lightSensor, logger, nil)

	s.leds = leds.NewRegistry(logger, hw)
	s.lock = &lockPolicy{push: s.push, logger: logger}

	s.display = display.New(cfg.Display, display.Deps{
		Scheduler:   s.scheduler,
		Classifier:  classifier,
		Panel:       hw,
		Compositor:  &compositor{push: s.push, logger: logger},
		Leds:        s.leds,
		Lock:        s.lock,
		Orientation: &orientation{push: s.push},
		Publisher:   s,
		Store:       &settingsStore{ctx: ctx, client: standardRedisClient},
	}, logger)

	inhibitors, err := inhibitor.NewManager(logger, cfg.SocketPath, s.onDnastChange)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("failed to create inhibitor manager: %w", err)
	}
	s.inhibitors = inhibitors
	s.dnastListener = inhibitor.NewRedisListener(standardRedisClient, inhibitors, logger)

	s.power = power.NewMonitor(logger, powerHandler{s}, cfg.DryRun)

	return s, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.subscribe(); err != nil {
		return err
	}

	s.redis.HandleRequests(CommandList, s.onCommand)

	if err := s.hardware.InitializeRedisState(); err != nil {
		s.logger.Printf("Warning: %v", err)
	}
	if err := s.hardwareListener.Start(); err != nil {
		return fmt.Errorf("failed to start hardware listener: %w", err)
	}
	if err := s.dnastListener.Start(); err != nil {
		return fmt.Errorf("failed to start dnast listener: %w", err)
	}

	// Holds taken before logind is reachable are counted but not acted on
	s.display.SetPowerOnline(false)
	s.display.Start()
	s.readInitialStates()

	if err := s.power.Start(); err != nil {
		s.logger.Printf("Warning: power monitor unavailable, display sleep is not coordinated with suspend: %v", err)
		s.display.SetPowerOnline(true)
	}

	// Run event loop
	s.eventLoop(ctx)

	if err := s.power.Close(); err != nil {
		s.logger.Printf("Failed to close power monitor: %v", err)
	}
	s.dnastListener.Stop()
	s.hardwareListener.Stop()
	s.display.Stop()
	s.scheduler.Close()

	if err := s.inhibitors.Close(); err != nil {
		s.logger.Printf("Failed to close inhibitor manager: %v", err)
	}
	if err := s.hardware.Close(); err != nil {
		s.logger.Printf("Failed to close hardware manager: %v", err)
	}
	if err := s.standardRedis.Close(); err != nil {
		s.logger.Printf("Failed to close Redis client: %v", err)
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Printf("Failed to close Redis client: %v", err)
	}

	return nil
}

// subscribe registers handlers for every input hash
func (s *Service) subscribe() error {
	buttons := s.redis.Subscribe("buttons")
	if err := buttons.Handle("power", s.buttonHandler("power")); err != nil {
		return fmt.Errorf("failed to subscribe to power button: %w", err)
	}
	if err := buttons.Handle("home", s.buttonHandler("home")); err != nil {
		return fmt.Errorf("failed to subscribe to home button: %w", err)
	}

	supply := s.redis.Subscribe("power-supply")
	for _, field := range []string{"usb", "inductive"} {
		handler := s.inputHandler("power-supply", field, func(value string) (display.Input, bool) {
			return supplyInput(field, value)
		})
		if err := supply.Handle(field, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s supply: %w", field, err)
		}
	}

	if err := s.redis.Subscribe("slider").Handle("state", s.inputHandler("slider", "state", sliderInput)); err != nil {
		return fmt.Errorf("failed to subscribe to slider state: %w", err)
	}
	if err := s.redis.Subscribe("proximity").Handle("state", s.inputHandler("proximity", "state", proximityInput)); err != nil {
		return fmt.Errorf("failed to subscribe to proximity state: %w", err)
	}

	telephony := s.redis.Subscribe("telephony")
	if err := telephony.Handle("call", s.valueHandler("telephony", "call", EventCallState)); err != nil {
		return fmt.Errorf("failed to subscribe to call state: %w", err)
	}
	if err := telephony.Handle("emergency", s.inputHandler("telephony", "emergency", emergencyInput)); err != nil {
		return fmt.Errorf("failed to subscribe to emergency state: %w", err)
	}

	if err := s.redis.Subscribe("battery:0").Handle("charge", s.valueHandler("battery:0", "charge", EventBattery)); err != nil {
		return fmt.Errorf("failed to subscribe to battery charge: %w", err)
	}

	lockscreen := s.redis.Subscribe("lockscreen")
	if err := lockscreen.Handle("passcode", s.valueHandler("lockscreen", "passcode", EventPasscode)); err != nil {
		return fmt.Errorf("failed to subscribe to passcode setting: %w", err)
	}
	if err := lockscreen.Handle("state", s.valueHandler("lockscreen", "state", EventUnlocked)); err != nil {
		return fmt.Errorf("failed to subscribe to lock screen state: %w", err)
	}

	if err := s.redis.Subscribe("compositor").Handle("activity", s.valueHandler("compositor", "activity", EventActivity)); err != nil {
		return fmt.Errorf("failed to subscribe to compositor activity: %w", err)
	}

	if err := s.redis.Subscribe(SettingsKey).Handle(MaxBrightnessField,
		s.valueHandler(SettingsKey, MaxBrightnessField, EventMaxBrightness)); err != nil {
		return fmt.Errorf("failed to subscribe to brightness setting: %w", err)
	}

	return nil
}

// valueHandler reads hash.field on notification and posts it as a string
// event of type t.
func (s *Service) valueHandler(hash, field string, t EventType) func([]byte) error {
	return func(data []byte) error {
		value, err := s.redis.HGet(hash, field)
		if err != nil {
			return fmt.Errorf("failed to get %s %s: %w", hash, field, err)
		}
		s.send(Event{Type: t, Data: value})
		return nil
	}
}

func (s *Service) inputHandler(hash, field string, mapper func(string) (display.Input, bool)) func([]byte) error {
	return func(data []byte) error {
		value, err := s.redis.HGet(hash, field)
		if err != nil {
			return fmt.Errorf("failed to get %s %s: %w", hash, field, err)
		}
		in, ok := mapper(value)
		if !ok {
			s.logger.Printf("Ignoring unknown %s %s value: %s", hash, field, value)
			return nil
		}
		s.send(Event{Type: EventInput, Data: in})
		return nil
	}
}

func (s *Service) buttonHandler(button string) func([]byte) error {
	return func(data []byte) error {
		value, err := s.redis.HGet("buttons", button)
		if err != nil {
			return fmt.Errorf("failed to get %s button: %w", button, err)
		}
		switch value {
		case "pressed":
			s.send(Event{Type: EventButton, Data: ButtonData{Button: button, Pressed: true}})
		case "released":
			s.send(Event{Type: EventButton, Data: ButtonData{Button: button, Pressed: false}})
		default:
			s.logger.Printf("Ignoring unknown %s button state: %s", button, value)
		}
		return nil
	}
}

func (s *Service) onCommand(data []byte) error {
	s.send(Event{
		Type: EventCommand,
		Data: CommandData{Command: string(data)},
	})
	return nil
}

func (s *Service) onDnastChange(holder string, held bool) {
	s.send(Event{
		Type: EventDnast,
		Data: DnastData{Holder: holder, Held: held},
	})
}

// readInitialStates applies the current input hashes once at startup.
// Missing values leave the defaults in place.
func (s *Service) readInitialStates() {
	const maxRetries = 10
	const retryDelay = 500 * time.Millisecond

	s.logger.Printf("Reading initial input states from Redis...")

	var charge string
	var err error
	for i := range maxRetries {
		if charge, err = s.redis.HGet("battery:0", "charge"); err == nil {
			break
		}
		if i < maxRetries-1 {
			s.logger.Printf("Failed to read battery charge (attempt %d/%d): %v. Retrying in %v...",
				i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		s.logger.Printf("Warning: Failed to read initial states from Redis after %d attempts, using defaults", maxRetries)
		return
	}
	s.handleBattery(charge)

	for _, field := range []string{"usb", "inductive"} {
		if value, err := s.redis.HGet("power-supply", field); err == nil && value == "connected" {
			if in, ok := supplyInput(field, value); ok {
				s.display.UpdateState(in)
			}
		}
	}
	if value, err := s.redis.HGet("slider", "state"); err == nil {
		if in, ok := sliderInput(value); ok {
			s.display.UpdateState(in)
		}
	}
	if value, err := s.redis.HGet("lockscreen", "passcode"); err == nil {
		s.lock.passcode = value == "enabled"
	}
	if value, err := s.redis.HGet(SettingsKey, MaxBrightnessField); err == nil && value != "" {
		s.handleMaxBrightness(value)
	}
}

// eventLoop processes all events sequentially, owning all display state
func (s *Service) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.events:
			s.handleEvent(evt)
		}
	}
}

// handleEvent dispatches events to appropriate handlers
func (s *Service) handleEvent(evt Event) {
	switch evt.Type {
	case EventCall:
		evt.Data.(func())()

	case EventButton:
		data := evt.Data.(ButtonData)
		s.handleButton(data.Button, data.Pressed)

	case EventInput:
		s.display.UpdateState(evt.Data.(display.Input))

	case EventCallState:
		s.handleCallState(evt.Data.(string))

	case EventCommand:
		data := evt.Data.(CommandData)
		s.logger.Printf("Received display command: %s", data.Command)
		if err := applyCommand(s.display, data.Command); err != nil {
			s.logger.Printf("Invalid display command %q: %v", data.Command, err)
		}

	case EventBattery:
		s.handleBattery(evt.Data.(string))

	case EventMaxBrightness:
		s.handleMaxBrightness(evt.Data.(string))

	case EventPasscode:
		s.lock.passcode = evt.Data.(string) == "enabled"
		s.logger.Printf("Lock screen passcode required: %v", s.lock.passcode)

	case EventUnlocked:
		// A lock without passcode leaves the display in on-locked without
		// marking it locked.
		locked := s.display.Locked() || s.display.State() == fsm.StateOnLocked
		if evt.Data.(string) == "unlocked" && locked {
			s.display.UnlockScreen()
		}

	case EventActivity:
		switch value := evt.Data.(string); value {
		case "user":
			s.display.UserActivity(false)
		case "external":
			s.display.UserActivity(true)
		default:
			s.logger.Printf("Ignoring unknown compositor activity: %s", value)
		}

	case EventDnast:
		data := evt.Data.(DnastData)
		if data.Held {
			s.display.PushDnast(data.Holder)
		} else {
			s.display.PopDnast(data.Holder)
		}

	case EventPowerOnline:
		s.display.SetPowerOnline(evt.Data.(bool))

	case EventSuspend:
		s.display.Suspend()
		close(evt.Data.(chan struct{}))

	case EventResume:
		s.display.Resume()

	default:
		s.logger.Printf("Critical: unknown event type %d", evt.Type)
	}
}

func (s *Service) handleButton(button string, pressed bool) {
	switch {
	case button == "power" && pressed:
		s.display.PowerKeyDown()
	case button == "power":
		s.display.PowerKeyUp()
	case button == "home" && pressed:
		s.display.HomeKeyDown()
	case button == "home":
		s.display.HomeKeyUp()
	}
}

func (s *Service) handleCallState(state string) {
	switch state {
	case callIdle, callIncoming, callActive:
	default:
		s.logger.Printf("Ignoring unknown call state: %s", state)
		return
	}
	for _, in := range callInputs(s.callState, state) {
		s.display.UpdateState(in)
	}
	s.callState = state
}

func (s *Service) handleBattery(value string) {
	charge, err := strconv.Atoi(value)
	if err != nil {
		s.logger.Printf("Invalid battery charge %q: %v", value, err)
		return
	}
	s.display.SetBattery(charge)
}

func (s *Service) handleMaxBrightness(value string) {
	level, err := strconv.Atoi(value)
	if err != nil {
		s.logger.Printf("Invalid max brightness setting %q: %v", value, err)
		return
	}
	if level != s.display.MaximumBrightness() {
		s.display.SetMaximumBrightness(level, false)
	}
}

// send queues an event. When the queue is full the send moves to its own
// goroutine so callers on the event loop never block on themselves.
func (s *Service) send(evt Event) {
	select {
	case s.events <- evt:
	default:
		go func() { s.events <- evt }()
	}
}

// post runs fn on the event loop
func (s *Service) post(fn func()) {
	s.send(Event{Type: EventCall, Data: fn})
}

func (s *Service) push(list, value string) error {
	_, err := s.redis.LPush(list, value)
	return err
}

// Publish writes the status hash and announces it on the status channel
func (s *Service) Publish(st display.Status) {
	s.logger.Printf("Publishing display status: %s (%s, brightness %d)", st.State, st.DisplayState, st.Brightness)

	tx := s.redis.NewTxGroup("display-status")
	for _, kv := range statusFields(st) {
		tx.Add("HSET", StatusKey, kv[0], kv[1])
	}
	tx.Add("PUBLISH", StatusKey, "state")

	if _, err := tx.Exec(); err != nil {
		s.logger.Printf("Failed to publish display status: %v", err)
	}
}

// powerHandler forwards logind events onto the loop. Suspend waits until
// the display has gone dark so the delay lock is held until then.
type powerHandler struct {
	s *Service
}

func (h powerHandler) PowerOnline(online bool) {
	h.s.send(Event{Type: EventPowerOnline, Data: online})
}

func (h powerHandler) Suspend() {
	done := make(chan struct{})
	h.s.send(Event{Type: EventSuspend, Data: done})
	select {
	case <-done:
	case <-time.After(suspendTimeout):
		h.s.logger.Printf("Warning: display did not switch off within %v of suspend", suspendTimeout)
	}
}

func (h powerHandler) Resume() {
	h.s.send(Event{Type: EventResume})
}
