package hardware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// HardwareKey is the Redis hash mirroring the panel's physical state.
const HardwareKey = "display:hardware"

// Config locates the display hardware.
type Config struct {
	BacklightPath     string        `yaml:"backlight_path"`
	KeypadPath        string        `yaml:"keypad_path"`
	VSyncPath         string        `yaml:"vsync_path"`
	LightSensorPath   string        `yaml:"light_sensor_path"`
	LightPollInterval time.Duration `yaml:"light_poll_interval"`
	GPIOChip          string        `yaml:"gpio_chip"`
	TouchPanelLine    int           `yaml:"touch_panel_line"`
	ThrobberLine      int           `yaml:"throbber_line"`
}

func DefaultConfig() Config {
	return Config{
		BacklightPath:     "/sys/class/backlight/backlight",
		KeypadPath:        "/sys/class/leds/keypad",
		VSyncPath:         "/sys/class/graphics/fb0/vsync_enable",
		LightSensorPath:   "/sys/bus/iio/devices/iio:device0/in_illuminance_raw",
		LightPollInterval: 250 * time.Millisecond,
		GPIOChip:          "gpiochip0",
		TouchPanelLine:    50, // GPIO 1:18
		ThrobberLine:      81, // GPIO 2:17
	}
}

// Manager drives the panel hardware and mirrors its state to Redis
type Manager struct {
	gpio      *GPIOManager
	backlight *LevelDevice
	keypad    *LevelDevice
	vsync     *Switch
	redis     *redis.Client
	logger    *log.Logger
	ctx       context.Context
	post      func(func())
}

// NewManager creates a new hardware manager. post runs a function on the
// owner's event loop; backlight acknowledgments are delivered through it.
// redisClient may be nil.
func NewManager(ctx context.Context, cfg Config, redisClient *redis.Client, logger *log.Logger,
	dryRun bool, post func(func())) (*Manager, error) {
	gpio, err := NewGPIOManager(logger, cfg, dryRun)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPIO manager: %w", err)
	}

	backlight, err := NewLevelDevice(logger, "backlight", cfg.BacklightPath, dryRun)
	if err != nil {
		gpio.Close()
		return nil, fmt.Errorf("failed to open backlight: %w", err)
	}

	keypad, err := NewLevelDevice(logger, "keypad", cfg.KeypadPath, dryRun)
	if err != nil {
		logger.Printf("Warning: no keypad backlight: %v", err)
		keypad = nil
	}

	return &Manager{
		gpio:      gpio,
		backlight: backlight,
		keypad:    keypad,
		vsync:     NewSwitch(logger, "vsync", cfg.VSyncPath, dryRun),
		redis:     redisClient,
		logger:    logger,
		ctx:       ctx,
		post:      post,
	}, nil
}

// SetBacklight writes the level and delivers the result to done on the
// event loop.
func (m *Manager) SetBacklight(level int, done func(error)) {
	err := m.writeBacklight(level)
	if done != nil {
		m.post(func() { done(err) })
	} else if err != nil {
		m.logger.Printf("Warning: %v", err)
	}
}

func (m *Manager) writeBacklight(level int) error {
	if err := m.backlight.SetLevel(level); err != nil {
		return err
	}
	m.mirror("backlight", strconv.Itoa(level))
	return nil
}

func (m *Manager) SetTouchPanel(on bool) error {
	if err := m.gpio.SetTouchPanel(on); err != nil {
		return err
	}
	m.mirror("touch-panel", onOff(on))
	return nil
}

func (m *Manager) SetVSync(enabled bool) error {
	if err := m.vsync.Set(enabled); err != nil {
		return err
	}
	m.mirror("vsync", onOff(enabled))
	return nil
}

func (m *Manager) SetKeypadBrightness(level int) error {
	if m.keypad == nil {
		return nil
	}
	if err := m.keypad.SetLevel(level); err != nil {
		return err
	}
	m.mirror("keypad", strconv.Itoa(level))
	return nil
}

// SetThrobber drives the standby LED.
func (m *Manager) SetThrobber(on bool) error {
	if err := m.gpio.SetThrobber(on); err != nil {
		return err
	}
	m.mirror("throbber", onOff(on))
	return nil
}

func (m *Manager) mirror(field, value string) {
	if m.redis == nil {
		return
	}
	pipe := m.redis.Pipeline()
	pipe.HSet(m.ctx, HardwareKey, field, value)
	pipe.Publish(m.ctx, HardwareKey, field)
	if _, err := pipe.Exec(m.ctx); err != nil {
		m.logger.Printf("Warning: Failed to update %s state in Redis: %v", field, err)
	}
}

// InitializeRedisState records the panel as dark at startup.
func (m *Manager) InitializeRedisState() error {
	if m.redis == nil {
		return nil
	}
	pipe := m.redis.Pipeline()
	pipe.HSet(m.ctx, HardwareKey,
		"backlight", "0",
		"touch-panel", "off",
		"vsync", "off",
		"keypad", "0",
		"throbber", "off")
	pipe.Publish(m.ctx, HardwareKey, "initialized")
	if _, err := pipe.Exec(m.ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis display hardware state: %w", err)
	}

	m.logger.Printf("Initialized Redis display hardware state")
	return nil
}

// Close releases all hardware resources
func (m *Manager) Close() error {
	return m.gpio.Close()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
