// Package scene assembles the render projection of the engine state: node
// positions, colours, opacities and wrapped labels, plus edge visibility and
// the current viewport transform.
package scene

import (
	"strings"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/layout"
	"github.com/hurttlocker/kwgraph/internal/view"
	"github.com/hurttlocker/kwgraph/internal/viewport"
)

// Filter opacities for nodes and edges that do not match the text filter.
const (
	DimmedNodeOpacity = 0.3
	DimmedEdgeOpacity = 0.15
)

// Palette maps roles to fill colours.
type Palette map[keyword.Role]string

// DefaultPalette colours roles blue, purple, amber and green.
var DefaultPalette = Palette{
	keyword.RoleTopLevel:  "#6366F1",
	keyword.RoleConnected: "#5B21B6",
	keyword.RoleSecondary: "#F59E0B",
	keyword.RoleIsolated:  "#10B981",
}

// Color returns the fill for role.
func (p Palette) Color(role keyword.Role) string {
	if c, ok := p[role]; ok {
		return c
	}
	return "#9CA3AF"
}

// Node is a rendered keyword.
type Node struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Role        keyword.Role `json:"role"`
	RoleTitle   string       `json:"role_title"`
	RoleHint    keyword.Role `json:"role_hint,omitempty"`
	Degree      int          `json:"degree"`
	Weight      float64      `json:"weight"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Radius      float64      `json:"radius"`
	Color       string       `json:"color"`
	Opacity     float64      `json:"opacity"`
	Visible     bool         `json:"visible"`
	Interactive bool         `json:"interactive"`
	Label       Label        `json:"label"`
}

// Edge is a rendered relation.
type Edge struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// Scene is everything a front end needs to draw one frame.
type Scene struct {
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	State     view.State         `json:"state"`
	Filter    string             `json:"filter,omitempty"`
	Transform viewport.Transform `json:"transform"`
	Settled   bool               `json:"settled"`
	Counts    map[string]int     `json:"counts"`
	Nodes     []Node             `json:"nodes"`
	Edges     []Edge             `json:"edges"`
}

// Input is the engine state Build projects.
type Input struct {
	Snapshot   *view.Snapshot
	Visibility view.Visibility
	Bodies     []layout.Body
	Radius     layout.RadiusScale
	Transform  viewport.Transform
	Width      float64
	Height     float64
	Filter     string
	Settled    bool
	Palette    Palette
	Measurer   Measurer
}

// Build projects in into a Scene. Hidden nodes are included with zero
// opacity so front ends can keep their elements.
func Build(in Input) Scene {
	if in.Palette == nil {
		in.Palette = DefaultPalette
	}
	if in.Measurer == nil {
		in.Measurer = DefaultMeasurer
	}
	if in.Radius == (layout.RadiusScale{}) {
		in.Radius = layout.DefaultRadiusScale
	}
	positions := make(map[string]layout.Body, len(in.Bodies))
	for _, b := range in.Bodies {
		positions[b.ID] = b
	}
	filter := strings.ToLower(strings.TrimSpace(in.Filter))
	matches := func(name string) bool {
		return filter == "" || strings.Contains(strings.ToLower(name), filter)
	}

	sc := Scene{
		Width:     in.Width,
		Height:    in.Height,
		State:     in.Visibility.State,
		Filter:    in.Filter,
		Transform: in.Transform,
		Settled:   in.Settled,
		Counts:    map[string]int{},
		Nodes:     make([]Node, 0, len(in.Snapshot.Nodes)),
		Edges:     make([]Edge, 0, len(in.Visibility.Edges)),
	}
	names := make(map[string]string, len(in.Snapshot.Nodes))
	for _, n := range in.Snapshot.Nodes {
		names[n.ID] = n.Label()
		sc.Counts[n.Role.String()]++

		radius := in.Radius.Radius(n.Weight)
		node := Node{
			ID:        n.ID,
			Name:      n.Label(),
			Role:      n.Role,
			RoleTitle: n.Role.Title(),
			RoleHint:  n.RoleHint,
			Degree:    n.Degree,
			Weight:    n.Weight,
			Radius:    radius,
			Color:     in.Palette.Color(n.Role),
			Visible:   in.Visibility.Visible(n.ID),
			Label:     NewLabel(n.Label(), radius, in.Measurer),
		}
		if b, ok := positions[n.ID]; ok {
			node.X, node.Y = b.Pos.X, b.Pos.Y
		}
		switch {
		case !node.Visible:
			node.Opacity = 0
		case matches(node.Name):
			node.Opacity = 1
		default:
			node.Opacity = DimmedNodeOpacity
		}
		node.Interactive = node.Visible
		sc.Nodes = append(sc.Nodes, node)
	}

	for _, e := range in.Visibility.Edges {
		edge := Edge{Source: e.Source, Target: e.Target, Visible: e.Visible, Opacity: e.Opacity}
		if e.Visible && !matches(names[e.Source]) && !matches(names[e.Target]) {
			edge.Opacity = DimmedEdgeOpacity
		}
		sc.Edges = append(sc.Edges, edge)
	}
	return sc
}

// Find returns the scene node with the given id.
func (s Scene) Find(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
