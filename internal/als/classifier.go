package als

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Sensor is the light sensor subscription toggled by Start and Stop.
type Sensor interface {
	Subscribe() error
	Unsubscribe() error
}

// Classifier turns raw intensity samples into a Region using a moving
// average over the last WindowSize samples.
type Classifier struct {
	cfg    Config
	sensor Sensor
	logger *log.Logger
	now    func() time.Time

	running bool
	limiter *rate.Limiter

	samples [WindowSize]int32
	head    int
	count   int
	sum     int64

	sinceLast int
	needed    int
	region    Region
}

// NewClassifier creates a stopped classifier in RegionUndefined.
func NewClassifier(cfg Config, sensor Sensor, logger *log.Logger, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		cfg:    cfg,
		sensor: sensor,
		logger: logger,
		now:    now,
		needed: cfg.FastSamples,
	}
}

// Start subscribes to the sensor. The window restarts empty and the next
// classification needs only FastSamples readings; the last region is kept.
func (c *Classifier) Start() error {
	if c.running {
		return nil
	}
	if c.sensor != nil {
		if err := c.sensor.Subscribe(); err != nil {
			return fmt.Errorf("failed to subscribe to light sensor: %w", err)
		}
	}

	c.running = true
	c.head, c.count, c.sum = 0, 0, 0
	c.sinceLast = 0
	c.needed = c.cfg.FastSamples
	c.limiter = newLimiter(c.cfg.MinInterval)
	c.logger.Printf("Light sensor started (region %s)", c.region)
	return nil
}

// Stop unsubscribes from the sensor. The current region is retained.
func (c *Classifier) Stop() error {
	if !c.running {
		return nil
	}
	c.running = false
	if c.sensor != nil {
		if err := c.sensor.Unsubscribe(); err != nil {
			return fmt.Errorf("failed to unsubscribe from light sensor: %w", err)
		}
	}
	c.logger.Printf("Light sensor stopped (region %s)", c.region)
	return nil
}

func (c *Classifier) Running() bool {
	return c.running
}

// Update adds a sample and reports whether the region changed. Samples
// arriving faster than MinInterval are dropped.
func (c *Classifier) Update(intensity int32) bool {
	if !c.running {
		return false
	}
	if !c.limiter.AllowN(c.now(), 1) {
		return false
	}

	if c.count == WindowSize {
		c.sum -= int64(c.samples[c.head])
	} else {
		c.count++
	}
	c.samples[c.head] = intensity
	c.sum += int64(intensity)
	c.head = (c.head + 1) % WindowSize

	c.sinceLast++
	if c.sinceLast < c.needed {
		return false
	}
	c.sinceLast = 0
	c.needed = c.cfg.SteadySamples

	next := c.cfg.next(c.region, c.Average())
	if next == c.region {
		return false
	}
	c.logger.Printf("Light region %s -> %s (average %d)", c.region, next, c.Average())
	c.region = next
	return true
}

// Average is the mean of the samples currently in the window.
func (c *Classifier) Average() int32 {
	if c.count == 0 {
		return 0
	}
	return int32(c.sum / int64(c.count))
}

func (c *Classifier) CurrentRegion() Region {
	return c.region
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
