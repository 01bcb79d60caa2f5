package viewport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func circle(x, y, r float64) Circle { return Circle{Center: r2.Vec{X: x, Y: y}, Radius: r} }

func TestFit_FramesCirclesWithPadding(t *testing.T) {
	circles := []Circle{circle(0, 0, 10), circle(200, 100, 10)}
	tr := DefaultFitter.Fit(circles, 800, 600)

	// Box is 220 × 120; width is the limiting side but the scale clamps to 2.
	assert.Equal(t, 2.0, tr.K)
	mid := tr.Apply(r2.Vec{X: 100, Y: 50})
	assert.InDelta(t, 400, mid.X, 1e-9)
	assert.InDelta(t, 300, mid.Y, 1e-9)

	wide := []Circle{circle(0, 0, 20), circle(1000, 300, 20)}
	tr = DefaultFitter.Fit(wide, 800, 600)
	assert.InDelta(t, (800.0-80)/1040, tr.K, 1e-9)
	left := tr.Apply(r2.Vec{X: -20, Y: 0})
	right := tr.Apply(r2.Vec{X: 1020, Y: 0})
	assert.InDelta(t, 40, left.X, 1e-9)
	assert.InDelta(t, 760, right.X, 1e-9)
}

func TestFit_ClampsMinimumScale(t *testing.T) {
	huge := []Circle{circle(0, 0, 10), circle(10000, 10000, 10)}
	assert.Equal(t, 0.5, DefaultFitter.Fit(huge, 800, 600).K)
}

func TestFit_DegenerateIsIdentity(t *testing.T) {
	tests := map[string][]Circle{
		"no circles":  nil,
		"single node": {circle(10, 10, 30)},
		"coincident":  {circle(5, 5, 10), circle(5, 5, 20)},
		"zero width":  {circle(5, 0, 10), circle(5, 100, 10)},
		"zero height": {circle(0, 7, 10), circle(100, 7, 10)},
	}
	for name, circles := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Identity, DefaultFitter.Fit(circles, 800, 600))
		})
	}
	assert.Equal(t, Identity, DefaultFitter.Fit([]Circle{circle(0, 0, 1), circle(9, 9, 1)}, 0, 600))
}

func TestFit_Idempotent(t *testing.T) {
	circles := []Circle{circle(-40, 12, 16), circle(130, -70, 42), circle(60, 90, 25)}
	first := DefaultFitter.Fit(circles, 1024, 768)
	assert.Equal(t, first, DefaultFitter.Fit(circles, 1024, 768))
}

func TestTransform_ApplyInvert(t *testing.T) {
	tr := Transform{K: 1.5, X: 20, Y: -10}
	p := r2.Vec{X: 33, Y: 44}
	back := tr.Invert(tr.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.Equal(t, p, Identity.Apply(p))
}

func TestScaleBy_AnchorsOnCenter(t *testing.T) {
	tr := Transform{K: 1, X: 30, Y: 40}
	center := r2.Vec{X: 400, Y: 300}
	anchor := tr.Invert(center)

	in := DefaultFitter.ScaleBy(tr, ZoomInFactor, 800, 600)
	assert.InDelta(t, 1.2, in.K, 1e-9)
	got := in.Apply(anchor)
	assert.InDelta(t, center.X, got.X, 1e-9)
	assert.InDelta(t, center.Y, got.Y, 1e-9)

	out := DefaultFitter.ScaleBy(Transform{K: 0.55}, ZoomOutFactor, 800, 600)
	assert.Equal(t, 0.5, out.K)
	assert.Equal(t, 2.0, DefaultFitter.ScaleBy(Transform{K: 1.9}, ZoomInFactor, 800, 600).K)
}

func TestTween(t *testing.T) {
	tw := Tween{From: Identity, To: Transform{K: 2, X: 100, Y: -50}, Duration: FitDuration}
	assert.Equal(t, tw.From, tw.At(0))
	assert.Equal(t, tw.To, tw.At(FitDuration))
	assert.Equal(t, tw.To, tw.At(time.Second))

	mid := tw.At(FitDuration / 2)
	assert.InDelta(t, 1.5, mid.K, 1e-9)
	assert.InDelta(t, 50, mid.X, 1e-9)

	early := tw.At(FitDuration / 10)
	assert.Less(t, early.K-1, 0.1*(2-1), "cubic ease starts slow")
	assert.True(t, tw.Done(FitDuration))
	assert.False(t, tw.Done(FitDuration-time.Millisecond))
	assert.Equal(t, tw.To, Tween{From: Identity, To: tw.To}.At(0))
}

func TestDebouncer_Coalesces(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDebouncer_CancelKeepsLaterTriggers(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())

	d.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
