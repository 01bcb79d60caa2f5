package layout

import "math"

// Config tunes the simulation. Zero fields take the defaults below.
type Config struct {
	LinkDistance      float64 // default 100, clamped to [80, 120]
	LinkStrength      float64 // default 0.08
	Charge            float64 // default -200; negative repels
	ChargeDistanceMin float64 // default 1
	CenterStrength    float64 // default 0.05
	CollideMargin     float64 // default 4
	CollideIterations int     // default 1
	BoundFraction     float64 // default 0.45 of the half-diagonal
	BoundStrength     float64 // default 0.1; negative disables
	AlphaDecay        float64 // default 1 - 0.001^(1/300)
	AlphaMin          float64 // default 0.001
	VelocityDecay     float64 // default 0.4
	SeedRadius        float64 // default 30
}

// Link distance bounds.
const (
	MinLinkDistance = 80
	MaxLinkDistance = 120
)

func (c Config) withDefaults() Config {
	d := Config{
		LinkDistance:      100,
		LinkStrength:      0.08,
		Charge:            -200,
		ChargeDistanceMin: 1,
		CenterStrength:    0.05,
		CollideMargin:     4,
		CollideIterations: 1,
		BoundFraction:     0.45,
		BoundStrength:     0.1,
		AlphaDecay:        1 - math.Pow(0.001, 1.0/300),
		AlphaMin:          0.001,
		VelocityDecay:     0.4,
		SeedRadius:        30,
	}
	if c.LinkDistance != 0 {
		d.LinkDistance = math.Max(MinLinkDistance, math.Min(MaxLinkDistance, c.LinkDistance))
	}
	if c.LinkStrength != 0 {
		d.LinkStrength = c.LinkStrength
	}
	if c.Charge != 0 {
		d.Charge = c.Charge
	}
	if c.ChargeDistanceMin > 0 {
		d.ChargeDistanceMin = c.ChargeDistanceMin
	}
	if c.CenterStrength != 0 {
		d.CenterStrength = c.CenterStrength
	}
	if c.CollideMargin != 0 {
		d.CollideMargin = c.CollideMargin
	}
	if c.CollideIterations > 0 {
		d.CollideIterations = c.CollideIterations
	}
	if c.BoundFraction > 0 {
		d.BoundFraction = c.BoundFraction
	}
	if c.BoundStrength != 0 {
		d.BoundStrength = c.BoundStrength
	}
	if d.BoundStrength < 0 {
		d.BoundStrength = 0
	}
	if c.AlphaDecay > 0 {
		d.AlphaDecay = c.AlphaDecay
	}
	if c.AlphaMin > 0 {
		d.AlphaMin = c.AlphaMin
	}
	if c.VelocityDecay > 0 {
		d.VelocityDecay = c.VelocityDecay
	}
	if c.SeedRadius > 0 {
		d.SeedRadius = c.SeedRadius
	}
	return d
}

// RadiusScale maps keyword weight to a rendered radius with a square-root
// scale clamped to the output range.
type RadiusScale struct {
	DomainMin, DomainMax float64
	RangeMin, RangeMax   float64
}

// DefaultRadiusScale maps weights 10..90 to radii 16..90.
var DefaultRadiusScale = RadiusScale{DomainMin: 10, DomainMax: 90, RangeMin: 16, RangeMax: 90}

// Radius returns the radius for weight.
func (s RadiusScale) Radius(weight float64) float64 {
	lo, hi := math.Sqrt(math.Max(s.DomainMin, 0)), math.Sqrt(math.Max(s.DomainMax, 0))
	if hi == lo {
		return s.RangeMin
	}
	t := (math.Sqrt(math.Max(weight, 0)) - lo) / (hi - lo)
	r := s.RangeMin + t*(s.RangeMax-s.RangeMin)
	return math.Max(s.RangeMin, math.Min(s.RangeMax, r))
}
