package als

import (
	"io"
	"log"
	"testing"
	"time"
)

type fakeSensor struct {
	subscribed   int
	unsubscribed int
}

func (f *fakeSensor) Subscribe() error   { f.subscribed++; return nil }
func (f *fakeSensor) Unsubscribe() error { f.unsubscribed++; return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestClassifier(t *testing.T) (*Classifier, *fakeClock, *fakeSensor) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sensor := &fakeSensor{}
	c := NewClassifier(DefaultConfig(), sensor, log.New(io.Discard, "", 0), clock.now)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return c, clock, sensor
}

// feed delivers samples a second apart and returns how many changed the region.
func feed(c *Classifier, clock *fakeClock, samples ...int32) int {
	changes := 0
	for _, s := range samples {
		clock.t = clock.t.Add(time.Second)
		if c.Update(s) {
			changes++
		}
	}
	return changes
}

func repeat(v int32, n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDarkLockOnAndMarginHolds(t *testing.T) {
	c, clock, _ := newTestClassifier(t)

	if c.CurrentRegion() != RegionUndefined {
		t.Fatalf("Expected undefined before samples, got %v", c.CurrentRegion())
	}
	if n := feed(c, clock, repeat(5, 10)...); n != 1 {
		t.Errorf("Expected exactly one region change, got %d", n)
	}
	if c.CurrentRegion() != RegionDark {
		t.Fatalf("Expected dark, got %v", c.CurrentRegion())
	}

	if feed(c, clock, 6) != 0 || c.CurrentRegion() != RegionDark {
		t.Errorf("Single sample within margin flipped region to %v", c.CurrentRegion())
	}
}

func TestFastInitialLockOn(t *testing.T) {
	c, clock, _ := newTestClassifier(t)

	feed(c, clock, repeat(500, DefaultConfig().FastSamples-1)...)
	if c.CurrentRegion() != RegionUndefined {
		t.Fatalf("Classified before enough samples: %v", c.CurrentRegion())
	}
	feed(c, clock, 500)
	if c.CurrentRegion() != RegionIndoor {
		t.Errorf("Expected indoor after fast lock-on, got %v", c.CurrentRegion())
	}
}

func TestNoFlappingInsideHysteresisBand(t *testing.T) {
	cfg := DefaultConfig()
	c, clock, _ := newTestClassifier(t)
	feed(c, clock, repeat(100, 10)...)
	if c.CurrentRegion() != RegionDim {
		t.Fatalf("Expected dim, got %v", c.CurrentRegion())
	}

	// oscillate between the two edges of dim's band around the dim border
	low := cfg.DarkBorder - cfg.DarkMargin
	high := cfg.DimBorder + cfg.DimMargin
	for i := 0; i < 200; i++ {
		v := low
		if i%2 == 0 {
			v = high
		}
		if c.Update(v) {
			t.Fatalf("Region changed to %v at sample %d", c.CurrentRegion(), i)
		}
		clock.t = clock.t.Add(time.Second)
	}
}

func TestMultiBorderJumpLandsDirectly(t *testing.T) {
	c, clock, _ := newTestClassifier(t)
	feed(c, clock, repeat(1, 10)...)

	if n := feed(c, clock, repeat(100000, 10)...); n != 1 {
		t.Errorf("Expected a single change for a multi-border jump, got %d", n)
	}
	if c.CurrentRegion() != RegionOutdoor {
		t.Errorf("Expected outdoor, got %v", c.CurrentRegion())
	}
}

func TestPartialWindowAverage(t *testing.T) {
	c, clock, _ := newTestClassifier(t)
	feed(c, clock, 10, 20, 30)
	if got := c.Average(); got != 20 {
		t.Errorf("Expected average 20 over three samples, got %d", got)
	}
}

func TestRateLimitDropsFastSamples(t *testing.T) {
	c, clock, _ := newTestClassifier(t)
	clock.t = clock.t.Add(time.Second)
	c.Update(5)
	// same instant: dropped
	c.Update(5000)
	c.Update(5000)
	if got := c.Average(); got != 5 {
		t.Errorf("Expected fast samples dropped, average %d", got)
	}
}

func TestStopRetainsRegion(t *testing.T) {
	c, clock, sensor := newTestClassifier(t)
	feed(c, clock, repeat(5, 10)...)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if sensor.unsubscribed != 1 {
		t.Errorf("Expected one unsubscribe, got %d", sensor.unsubscribed)
	}
	if c.Update(10000) {
		t.Errorf("Stopped classifier reported a change")
	}
	if c.CurrentRegion() != RegionDark {
		t.Errorf("Expected dark retained, got %v", c.CurrentRegion())
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.Start()
	if sensor.subscribed != 2 {
		t.Errorf("Expected two subscribes, got %d", sensor.subscribed)
	}
	if c.CurrentRegion() != RegionDark {
		t.Errorf("Restart reset region to %v", c.CurrentRegion())
	}
}

func TestNextHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		cur  Region
		avg  int32
		want Region
	}{
		{RegionDark, cfg.DarkBorder + cfg.DarkMargin, RegionDark},
		{RegionDark, cfg.DarkBorder + cfg.DarkMargin + 1, RegionDim},
		{RegionDim, cfg.DarkBorder - cfg.DarkMargin, RegionDim},
		{RegionDim, cfg.DarkBorder - cfg.DarkMargin - 1, RegionDark},
		{RegionIndoor, cfg.IndoorBorder + cfg.IndoorMargin + 1, RegionOutdoor},
		{RegionOutdoor, cfg.IndoorBorder, RegionOutdoor},
		{RegionOutdoor, cfg.IndoorBorder - cfg.IndoorMargin - 1, RegionIndoor},
		{RegionUndefined, cfg.DimBorder, RegionDim},
	}
	for _, tt := range tests {
		if got := cfg.next(tt.cur, tt.avg); got != tt.want {
			t.Errorf("next(%v, %d) = %v, want %v", tt.cur, tt.avg, got, tt.want)
		}
	}
}
