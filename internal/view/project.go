package view

import "github.com/hurttlocker/kwgraph/internal/keyword"

// EdgeVisibility is the render state of one relation.
type EdgeVisibility struct {
	keyword.Relation
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// Visibility is the projection of a State onto a Snapshot.
type Visibility struct {
	State State            `json:"state"`
	Nodes map[string]bool  `json:"nodes"`
	Edges []EdgeVisibility `json:"edges"`
}

// Visible reports whether the node id is shown.
func (v Visibility) Visible(id string) bool { return v.Nodes[id] }

// VisibleIDs returns the shown node ids in snapshot order.
func (v Visibility) VisibleIDs(snap *Snapshot) []string {
	ids := make([]string, 0, len(v.Nodes))
	for _, n := range snap.Nodes {
		if v.Nodes[n.ID] {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// VisibleEdges returns the relations whose endpoints are both shown.
func (v Visibility) VisibleEdges() []keyword.Relation {
	var out []keyword.Relation
	for _, e := range v.Edges {
		if e.Visible {
			out = append(out, e.Relation)
		}
	}
	return out
}

// Project computes the visible node set and per-edge visibility for s. An
// edge is visible iff both endpoints are visible; relations with unknown
// endpoints, self-loops and duplicates are left out entirely.
func Project(s State, snap *Snapshot) Visibility {
	nodes := visibleNodes(s, snap)
	v := Visibility{State: s, Nodes: nodes, Edges: make([]EdgeVisibility, 0, len(snap.Relations))}

	seen := make(map[[2]string]bool, len(snap.Relations))
	for _, r := range snap.Relations {
		_, okS := snap.index[r.Source]
		_, okT := snap.index[r.Target]
		if !okS || !okT || r.SelfLoop() || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		e := EdgeVisibility{Relation: r, Opacity: HiddenEdgeOpacity}
		if nodes[r.Source] && nodes[r.Target] {
			e.Visible = true
			e.Opacity = VisibleEdgeOpacity
		}
		v.Edges = append(v.Edges, e)
	}
	return v
}

func visibleNodes(s State, snap *Snapshot) map[string]bool {
	out := make(map[string]bool, len(snap.Nodes))
	switch s.Mode {
	case ModeExpanded:
		if _, ok := snap.Node(s.Selected); ok {
			out[s.Selected] = true
			for _, id := range snap.Neighbors(s.Selected) {
				out[id] = true
			}
			return out
		}
		// A stale selection shows the default set until reconciled.
		return visibleNodes(Default(), snap)
	case ModeFiltered:
		for _, n := range snap.Nodes {
			if s.Mask.Enabled(n.Role) {
				out[n.ID] = true
			}
		}
	case ModeAll:
		for _, n := range snap.Nodes {
			out[n.ID] = true
		}
	default:
		for _, n := range snap.Nodes {
			if n.Role == keyword.RoleTopLevel || n.Role == keyword.RoleIsolated {
				out[n.ID] = true
			}
		}
	}
	return out
}
