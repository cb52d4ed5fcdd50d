package hardware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CommandList is the Redis list of direct hardware commands used for
// factory and bench testing.
const CommandList = "display:hardware:command"

// RedisListener handles Redis commands for direct hardware control
type RedisListener struct {
	redis   *redis.Client
	manager *Manager
	logger  *log.Logger
	post    func(func())
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRedisListener creates a listener whose commands run on the event loop
// through post.
func NewRedisListener(ctx context.Context, redisClient *redis.Client, manager *Manager, logger *log.Logger,
	post func(func())) *RedisListener {
	listenerCtx, cancel := context.WithCancel(ctx)
	return &RedisListener{
		redis:   redisClient,
		manager: manager,
		logger:  logger,
		post:    post,
		ctx:     listenerCtx,
		cancel:  cancel,
	}
}

// Start begins listening for Redis commands
func (rl *RedisListener) Start() error {
	go rl.listenForHardwareCommands()
	return nil
}

// Stop stops the Redis listener
func (rl *RedisListener) Stop() {
	rl.cancel()
}

func (rl *RedisListener) listenForHardwareCommands() {
	for {
		select {
		case <-rl.ctx.Done():
			return
		default:
			// Block for up to 1 second waiting for commands
			result, err := rl.redis.BRPop(rl.ctx, time.Second, CommandList).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if rl.ctx.Err() != nil {
					return
				}
				rl.logger.Printf("Error reading from %s: %v", CommandList, err)
				time.Sleep(time.Second)
				continue
			}

			if len(result) != 2 {
				continue
			}

			command := result[1]
			rl.post(func() {
				if err := rl.HandleCommand(command); err != nil {
					rl.logger.Printf("Failed to execute hardware command %s: %v", command, err)
				}
			})
		}
	}
}

// HandleCommand executes one "component:value" command.
func (rl *RedisListener) HandleCommand(command string) error {
	rl.logger.Printf("Received hardware command: %s", command)

	component, value, ok := strings.Cut(command, ":")
	if !ok {
		return fmt.Errorf("invalid hardware command format: %s", command)
	}

	switch component {
	case "backlight", "keypad":
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s level %q: %w", component, value, err)
		}
		if component == "keypad" {
			return rl.manager.SetKeypadBrightness(level)
		}
		return rl.manager.writeBacklight(level)
	case "touch", "vsync", "throbber":
		var on bool
		switch value {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("unknown %s action: %s", component, value)
		}
		switch component {
		case "touch":
			return rl.manager.SetTouchPanel(on)
		case "vsync":
			return rl.manager.SetVSync(on)
		default:
			return rl.manager.SetThrobber(on)
		}
	default:
		return fmt.Errorf("unknown hardware component: %s", component)
	}
}
