package viewport

import (
	"sync"
	"time"
)

// Transition durations.
const (
	FitDuration  = 250 * time.Millisecond
	ZoomDuration = 200 * time.Millisecond
	// FitDelay lets the layout partially settle before fitting.
	FitDelay = 150 * time.Millisecond
)

// Tween interpolates between two transforms with a cubic in-out ease.
type Tween struct {
	From     Transform
	To       Transform
	Duration time.Duration
}

// At returns the transform elapsed into the tween.
func (tw Tween) At(elapsed time.Duration) Transform {
	if tw.Duration <= 0 || elapsed >= tw.Duration {
		return tw.To
	}
	if elapsed <= 0 {
		return tw.From
	}
	e := easeCubicInOut(float64(elapsed) / float64(tw.Duration))
	return Transform{
		K: tw.From.K + (tw.To.K-tw.From.K)*e,
		X: tw.From.X + (tw.To.X-tw.From.X)*e,
		Y: tw.From.Y + (tw.To.Y-tw.From.Y)*e,
	}
}

// Done reports whether the tween has finished at elapsed.
func (tw Tween) Done(elapsed time.Duration) bool { return elapsed >= tw.Duration }

func easeCubicInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

// Debouncer runs fn once, delay after the last Trigger. Each Trigger
// restarts the timer, so bursts coalesce into a single call.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer for fn.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the delay.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Cancel drops a pending call. Later triggers still schedule.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels a pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
