package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

func specs(ids ...string) []NodeSpec {
	out := make([]NodeSpec, len(ids))
	for i, id := range ids {
		out[i] = NodeSpec{ID: id, Radius: 20}
	}
	return out
}

func distance(t *testing.T, s *Simulation, a, b string) float64 {
	t.Helper()
	pa, ok := s.Position(a)
	require.True(t, ok, a)
	pb, ok := s.Position(b)
	require.True(t, ok, b)
	return r2.Norm(r2.Sub(pa, pb))
}

func TestTick_EmptyDoesNothing(t *testing.T) {
	s := New(Config{}, 800, 600)
	assert.False(t, s.Tick())
	assert.Zero(t, s.Run(100))
}

func TestSingleNodeSettlesAtCenter(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A"), nil)

	p, _ := s.Position("A")
	assert.InDelta(t, 30, r2.Norm(r2.Sub(p, s.Center())), 1e-9, "seeded on the seed circle")

	ticks := s.Run(1000)
	assert.Greater(t, ticks, 0)
	assert.True(t, s.Settled())
	p, _ = s.Position("A")
	assert.Less(t, r2.Norm(r2.Sub(p, s.Center())), 5.0)
}

func TestCollisionKeepsBodiesApart(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A", "B", "C"), nil)
	s.Run(1000)

	for _, pair := range [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}} {
		assert.GreaterOrEqual(t, distance(t, s, pair[0], pair[1]), 0.95*(20+20+4), pair)
	}
}

func TestLinkedBodiesStayNearLinkDistance(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A", "B"), []keyword.Relation{{Source: "A", Target: "B"}})
	s.Run(1000)

	d := distance(t, s, "A", "B")
	assert.Greater(t, d, 60.0)
	assert.Less(t, d, 130.0)
}

func TestSetGraph_KeepsExistingPositions(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A", "B"), []keyword.Relation{{Source: "A", Target: "B"}})
	s.Run(50)
	before, _ := s.Position("A")

	s.SetGraph(specs("A", "C"), []keyword.Relation{
		{Source: "A", Target: "B"}, // B left the scene
		{Source: "A", Target: "C"},
	})
	after, _ := s.Position("A")
	assert.Equal(t, before, after)

	c, ok := s.Position("C")
	require.True(t, ok)
	assert.InDelta(t, s.Config().SeedRadius, r2.Norm(r2.Sub(c, s.Center())), 1e-9)

	_, ok = s.Position("B")
	assert.False(t, ok)
	assert.Len(t, s.links, 1)
}

func TestSetGraph_DropsUnusableLinks(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A", "B", "A"), []keyword.Relation{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "A"},
		{Source: "A", Target: "A"},
		{Source: "A", Target: "ghost"},
	})
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.links, 1)
}

func TestRestartKeepsVelocity(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A", "B", "C"), nil)
	s.Run(5)
	vel := s.Bodies()[0].Vel
	require.NotEqual(t, r2.Vec{}, vel)

	s.Restart(0.3)
	assert.Equal(t, 0.3, s.Alpha())
	assert.Equal(t, vel, s.Bodies()[0].Vel)

	s.Run(1000)
	require.True(t, s.Settled())
	assert.False(t, s.Tick())
	s.Restart(0)
	assert.Equal(t, 1.0, s.Alpha())
	assert.True(t, s.Tick())
}

func TestDeterministic(t *testing.T) {
	run := func() []Body {
		s := New(Config{}, 640, 480)
		g := keyword.Seed()
		var nodes []NodeSpec
		for _, k := range g.Keywords {
			nodes = append(nodes, NodeSpec{ID: k.ID, Radius: DefaultRadiusScale.Radius(k.Weight)})
		}
		s.SetGraph(nodes, g.Relations)
		s.Run(200)
		return s.Bodies()
	}
	assert.Equal(t, run(), run())
}

func TestBoundPullsStragglersIn(t *testing.T) {
	far := r2.Vec{X: 5000, Y: 5000}
	pull := func(cfg Config) float64 {
		s := New(cfg, 800, 600)
		s.SetGraph(specs("A"), nil)
		s.bodies[0].Pos = far
		s.Run(20)
		p, _ := s.Position("A")
		return r2.Norm(r2.Sub(p, s.Center()))
	}
	bounded := pull(Config{})
	unbounded := pull(Config{BoundStrength: -1})
	assert.Less(t, bounded, unbounded)
}

func TestResizeMovesCenter(t *testing.T) {
	s := New(Config{}, 800, 600)
	s.SetGraph(specs("A"), nil)
	s.Resize(400, 200)
	assert.Equal(t, r2.Vec{X: 200, Y: 100}, s.Center())

	p, _ := s.Position("A")
	start := r2.Norm(r2.Sub(p, s.Center()))
	s.Restart(1)
	s.Run(1000)
	p, _ = s.Position("A")
	assert.Less(t, r2.Norm(r2.Sub(p, s.Center())), start/4)
}

func TestConfigDefaults(t *testing.T) {
	tests := map[string]struct {
		in   Config
		want float64
	}{
		"default":     {Config{}, 100},
		"clamped up":  {Config{LinkDistance: 10}, MinLinkDistance},
		"clamped low": {Config{LinkDistance: 500}, MaxLinkDistance},
		"in range":    {Config{LinkDistance: 90}, 90},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.withDefaults().LinkDistance)
		})
	}
	d := Config{}.withDefaults()
	assert.InDelta(t, 0.0228, d.AlphaDecay, 1e-4)
	assert.Equal(t, 0.0, Config{BoundStrength: -1}.withDefaults().BoundStrength)
}

func TestRadiusScale(t *testing.T) {
	s := DefaultRadiusScale
	assert.Equal(t, 16.0, s.Radius(10))
	assert.Equal(t, 90.0, s.Radius(90))
	assert.Equal(t, 16.0, s.Radius(1), "clamped below")
	assert.Equal(t, 16.0, s.Radius(-5))
	assert.Equal(t, 90.0, s.Radius(400), "clamped above")

	mid := s.Radius(40)
	assert.Greater(t, mid, 16.0)
	assert.Less(t, mid, 90.0)
	want := 16 + (math.Sqrt(40)-math.Sqrt(10))/(math.Sqrt(90)-math.Sqrt(10))*74
	assert.InDelta(t, want, mid, 1e-9)

	assert.Equal(t, 5.0, RadiusScale{DomainMin: 4, DomainMax: 4, RangeMin: 5, RangeMax: 9}.Radius(100))
}
