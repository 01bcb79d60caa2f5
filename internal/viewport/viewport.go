// Package viewport computes the zoom transform that frames the visible
// keywords and animates transitions between transforms.
package viewport

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Zoom button factors and transition durations.
const (
	ZoomInFactor  = 1.2
	ZoomOutFactor = 0.8
)

// Circle is a rendered node: centre and radius in layout units.
type Circle struct {
	Center r2.Vec
	Radius float64
}

// Transform maps layout coordinates to screen coordinates: screen = K·p + (X, Y).
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the unzoomed, untranslated transform.
var Identity = Transform{K: 1}

// Apply maps a layout point to the screen.
func (t Transform) Apply(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(t.K, p), r2.Vec{X: t.X, Y: t.Y})
}

// Invert maps a screen point back to layout coordinates.
func (t Transform) Invert(p r2.Vec) r2.Vec {
	if t.K == 0 {
		return p
	}
	return r2.Scale(1/t.K, r2.Sub(p, r2.Vec{X: t.X, Y: t.Y}))
}

// Fitter frames circles inside a viewport.
type Fitter struct {
	Padding  float64
	MinScale float64
	MaxScale float64
}

// DefaultFitter pads by 40px and clamps scale to [0.5, 2].
var DefaultFitter = Fitter{Padding: 40, MinScale: 0.5, MaxScale: 2}

// Clamp limits k to the fitter's scale range.
func (f Fitter) Clamp(k float64) float64 {
	return math.Max(f.MinScale, math.Min(f.MaxScale, k))
}

// Fit returns the transform that centres every circle, radius included, in
// a width × height viewport with Padding on each side. It returns Identity
// when there is nothing to frame or the circle centres span zero width or
// zero height.
func (f Fitter) Fit(circles []Circle, width, height float64) Transform {
	if len(circles) == 0 || width <= 0 || height <= 0 {
		return Identity
	}
	centers := r2.Box{Min: circles[0].Center, Max: circles[0].Center}
	bounds := r2.Box{
		Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
		Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, c := range circles {
		centers = extend(centers, c.Center, 0)
		bounds = extend(bounds, c.Center, c.Radius)
	}
	if centers.Max.X-centers.Min.X == 0 || centers.Max.Y-centers.Min.Y == 0 {
		return Identity
	}

	bw, bh := bounds.Max.X-bounds.Min.X, bounds.Max.Y-bounds.Min.Y
	k := math.Min((width-2*f.Padding)/bw, (height-2*f.Padding)/bh)
	k = f.Clamp(k)
	mid := r2.Scale(0.5, r2.Add(bounds.Min, bounds.Max))
	return Transform{
		K: k,
		X: width/2 - k*mid.X,
		Y: height/2 - k*mid.Y,
	}
}

func extend(b r2.Box, p r2.Vec, r float64) r2.Box {
	b.Min.X = math.Min(b.Min.X, p.X-r)
	b.Min.Y = math.Min(b.Min.Y, p.Y-r)
	b.Max.X = math.Max(b.Max.X, p.X+r)
	b.Max.Y = math.Max(b.Max.Y, p.Y+r)
	return b
}

// ScaleBy zooms t by factor around the viewport centre, clamped to the
// fitter's scale range.
func (f Fitter) ScaleBy(t Transform, factor, width, height float64) Transform {
	center := r2.Vec{X: width / 2, Y: height / 2}
	anchor := t.Invert(center)
	k := f.Clamp(t.K * factor)
	return Transform{
		K: k,
		X: center.X - k*anchor.X,
		Y: center.Y - k*anchor.Y,
	}
}
