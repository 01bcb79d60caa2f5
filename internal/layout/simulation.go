// Package layout positions visible keywords with a time-stepped force
// simulation: link springs, many-body repulsion, centering, collision and
// an optional soft bound, cooled by a decaying alpha.
package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

// goldenAngle spaces seeded bodies around the seed circle.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// NodeSpec describes a body to simulate.
type NodeSpec struct {
	ID     string
	Radius float64
}

// Body is a simulated node.
type Body struct {
	ID     string  `json:"id"`
	Pos    r2.Vec  `json:"pos"`
	Vel    r2.Vec  `json:"vel"`
	Radius float64 `json:"radius"`
}

type link struct {
	source, target int
	bias           float64
}

// Simulation is not safe for concurrent use; the engine serializes access.
type Simulation struct {
	cfg    Config
	bodies []Body
	index  map[string]int
	links  []link
	width  float64
	height float64
	alpha  float64
	seeded int
}

// New creates an empty simulation for a width × height viewport.
func New(cfg Config, width, height float64) *Simulation {
	return &Simulation{
		cfg:    cfg.withDefaults(),
		index:  map[string]int{},
		width:  width,
		height: height,
		alpha:  1,
	}
}

// Config returns the effective configuration.
func (s *Simulation) Config() Config { return s.cfg }

// Center is the viewport centre.
func (s *Simulation) Center() r2.Vec { return r2.Vec{X: s.width / 2, Y: s.height / 2} }

// SetGraph replaces the simulated set. Bodies that stay keep their position
// and velocity; new bodies start on the seed circle around the centre.
// Links with an endpoint outside nodes are dropped.
func (s *Simulation) SetGraph(nodes []NodeSpec, links []keyword.Relation) {
	prev := make(map[string]Body, len(s.bodies))
	for _, b := range s.bodies {
		prev[b.ID] = b
	}

	s.bodies = make([]Body, 0, len(nodes))
	s.index = make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, dup := s.index[n.ID]; dup {
			continue
		}
		b, ok := prev[n.ID]
		if !ok {
			b = Body{ID: n.ID, Pos: s.seedPosition()}
		}
		b.Radius = n.Radius
		s.index[n.ID] = len(s.bodies)
		s.bodies = append(s.bodies, b)
	}

	s.links = s.links[:0]
	count := make([]int, len(s.bodies))
	seen := make(map[[2]string]bool, len(links))
	for _, r := range links {
		si, okS := s.index[r.Source]
		ti, okT := s.index[r.Target]
		if !okS || !okT || si == ti || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		s.links = append(s.links, link{source: si, target: ti})
		count[si]++
		count[ti]++
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(count[l.source]) / float64(count[l.source]+count[l.target])
	}
}

func (s *Simulation) seedPosition() r2.Vec {
	angle := float64(s.seeded) * goldenAngle
	s.seeded++
	return r2.Add(s.Center(), r2.Vec{
		X: s.cfg.SeedRadius * math.Cos(angle),
		Y: s.cfg.SeedRadius * math.Sin(angle),
	})
}

// Resize changes the viewport. Bodies are not moved; forces pull them to
// the new centre once the simulation is restarted.
func (s *Simulation) Resize(width, height float64) {
	s.width, s.height = width, height
}

// Restart reheats the simulation to alpha. Velocities are kept.
func (s *Simulation) Restart(alpha float64) {
	if alpha <= 0 {
		alpha = 1
	}
	s.alpha = math.Min(alpha, 1)
}

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Settled reports whether the simulation has cooled to rest.
func (s *Simulation) Settled() bool { return s.alpha < s.cfg.AlphaMin }

// Len returns the number of bodies.
func (s *Simulation) Len() int { return len(s.bodies) }

// Tick advances one step. It reports false, doing nothing, when there are
// no bodies or the simulation is at rest.
func (s *Simulation) Tick() bool {
	if len(s.bodies) == 0 || s.Settled() {
		return false
	}
	s.alpha += (0 - s.alpha) * s.cfg.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyBound()
	for i := 0; i < s.cfg.CollideIterations; i++ {
		s.applyCollide()
	}

	keep := 1 - s.cfg.VelocityDecay
	for i := range s.bodies {
		b := &s.bodies[i]
		b.Vel = r2.Scale(keep, b.Vel)
		b.Pos = r2.Add(b.Pos, b.Vel)
	}
	return true
}

// Run ticks until rest or maxTicks and returns the number of ticks taken.
func (s *Simulation) Run(maxTicks int) int {
	n := 0
	for n < maxTicks && s.Tick() {
		n++
	}
	return n
}

// Bodies returns a copy of the simulated bodies in insertion order.
func (s *Simulation) Bodies() []Body {
	return append([]Body(nil), s.bodies...)
}

// Position returns the position of body id.
func (s *Simulation) Position(id string) (r2.Vec, bool) {
	i, ok := s.index[id]
	if !ok {
		return r2.Vec{}, false
	}
	return s.bodies[i].Pos, true
}
