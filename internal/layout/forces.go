package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// jiggle separates coincident bodies deterministically.
func jiggle(i, j int) r2.Vec {
	return r2.Vec{X: 1e-6 * float64(i-j), Y: 1e-6 * float64(j-i+1)}
}

// applyLinks pulls linked bodies toward LinkDistance. The correction is
// shared by degree so that hubs move less than their leaves.
func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, dst := &s.bodies[l.source], &s.bodies[l.target]
		d := r2.Sub(r2.Add(dst.Pos, dst.Vel), r2.Add(src.Pos, src.Vel))
		dist := r2.Norm(d)
		if dist == 0 {
			d = jiggle(l.source, l.target)
			dist = r2.Norm(d)
		}
		k := (dist - s.cfg.LinkDistance) / dist * s.alpha * s.cfg.LinkStrength
		d = r2.Scale(k, d)
		dst.Vel = r2.Sub(dst.Vel, r2.Scale(l.bias, d))
		src.Vel = r2.Add(src.Vel, r2.Scale(1-l.bias, d))
	}
}

// applyCharge is the exact pairwise many-body force.
func (s *Simulation) applyCharge() {
	minDist2 := s.cfg.ChargeDistanceMin * s.cfg.ChargeDistanceMin
	for i := range s.bodies {
		for j := i + 1; j < len(s.bodies); j++ {
			a, b := &s.bodies[i], &s.bodies[j]
			d := r2.Sub(b.Pos, a.Pos)
			l2 := r2.Norm2(d)
			if l2 == 0 {
				d = jiggle(i, j)
				l2 = r2.Norm2(d)
			}
			if l2 < minDist2 {
				l2 = math.Sqrt(minDist2 * l2)
			}
			w := s.cfg.Charge * s.alpha / l2
			a.Vel = r2.Add(a.Vel, r2.Scale(w, d))
			b.Vel = r2.Sub(b.Vel, r2.Scale(w, d))
		}
	}
}

func (s *Simulation) applyCenter() {
	c := s.Center()
	k := s.cfg.CenterStrength * s.alpha
	for i := range s.bodies {
		b := &s.bodies[i]
		b.Vel = r2.Add(b.Vel, r2.Scale(k, r2.Sub(c, b.Pos)))
	}
}

// applyBound pulls bodies that drift beyond BoundFraction of the viewport
// half-diagonal back toward the centre.
func (s *Simulation) applyBound() {
	if s.cfg.BoundStrength == 0 {
		return
	}
	c := s.Center()
	limit := s.cfg.BoundFraction * math.Hypot(s.width, s.height) / 2
	for i := range s.bodies {
		b := &s.bodies[i]
		off := r2.Sub(b.Pos, c)
		dist := r2.Norm(off)
		if dist <= limit || dist == 0 {
			continue
		}
		k := (dist - limit) / dist * s.cfg.BoundStrength * s.alpha
		b.Vel = r2.Sub(b.Vel, r2.Scale(k, off))
	}
}

// applyCollide pushes overlapping bodies apart until their separation is at
// least the sum of their radii plus CollideMargin. Larger bodies move less.
func (s *Simulation) applyCollide() {
	const strength = 0.7
	for i := range s.bodies {
		for j := i + 1; j < len(s.bodies); j++ {
			a, b := &s.bodies[i], &s.bodies[j]
			ra := a.Radius + s.cfg.CollideMargin/2
			rb := b.Radius + s.cfg.CollideMargin/2
			r := ra + rb
			d := r2.Sub(r2.Add(a.Pos, a.Vel), r2.Add(b.Pos, b.Vel))
			l := r2.Norm(d)
			if l >= r {
				continue
			}
			if l == 0 {
				d = jiggle(i, j)
				l = r2.Norm(d)
			}
			k := (r - l) / l * strength
			d = r2.Scale(k, d)
			share := rb * rb / (ra*ra + rb*rb)
			a.Vel = r2.Add(a.Vel, r2.Scale(share, d))
			b.Vel = r2.Sub(b.Vel, r2.Scale(1-share, d))
		}
	}
}
