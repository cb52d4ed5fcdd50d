package hardware

import (
	"context"
	"fmt"
	"log"
	"time"
)

// LightSensor polls a sysfs illuminance attribute while subscribed and hands
// each reading to onSample through post.
type LightSensor struct {
	logger   *log.Logger
	path     string
	interval time.Duration
	dryRun   bool
	post     func(func())
	onSample func(int32)

	cancel context.CancelFunc
}

func NewLightSensor(logger *log.Logger, path string, interval time.Duration, dryRun bool,
	post func(func()), onSample func(int32)) *LightSensor {
	return &LightSensor{
		logger:   logger,
		path:     path,
		interval: interval,
		dryRun:   dryRun,
		post:     post,
		onSample: onSample,
	}
}

// Subscribe starts polling. It fails if the sensor cannot be read.
func (ls *LightSensor) Subscribe() error {
	if ls.cancel != nil {
		return nil
	}
	if ls.dryRun {
		ls.logger.Printf("DRY RUN: Would poll light sensor %s", ls.path)
		ls.cancel = func() {}
		return nil
	}
	if _, err := readInt(ls.path); err != nil {
		return fmt.Errorf("failed to read light sensor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ls.cancel = cancel
	go ls.poll(ctx)
	return nil
}

// Unsubscribe stops polling; readings already posted may still arrive.
func (ls *LightSensor) Unsubscribe() error {
	if ls.cancel == nil {
		return nil
	}
	ls.cancel()
	ls.cancel = nil
	return nil
}

func (ls *LightSensor) poll(ctx context.Context) {
	ticker := time.NewTicker(ls.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value, err := readInt(ls.path)
			if err != nil {
				ls.logger.Printf("Warning: failed to read light sensor: %v", err)
				continue
			}
			sample := int32(value)
			ls.post(func() { ls.onSample(sample) })
		}
	}
}
