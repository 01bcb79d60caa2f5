// Package view implements the visibility state machine that decides which
// classified keywords and relations are shown.
//
// State is a plain value and Transition is pure: the interaction layer keeps
// the current State, feeds it events, and re-projects visibility from the
// result.
package view

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

// Edge opacities. Hidden edges stay in the scene, nearly transparent, so the
// layout keeps its links between visibility changes.
const (
	VisibleEdgeOpacity = 1.0
	HiddenEdgeOpacity  = 0.03
)

// Mode tags the active variant of State.
type Mode int

const (
	ModeDefault Mode = iota
	ModeExpanded
	ModeFiltered
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeExpanded:
		return "expanded"
	case ModeFiltered:
		return "filtered"
	case ModeAll:
		return "all"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	for _, v := range []Mode{ModeDefault, ModeExpanded, ModeFiltered, ModeAll} {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown view mode %q", b)
}

// LevelMask enables roles independently in filtered mode.
type LevelMask struct {
	TopLevel  bool `json:"top_level"`
	Connected bool `json:"connected"`
	Secondary bool `json:"secondary"`
	Isolated  bool `json:"isolated"`
}

// AllLevels enables every role.
func AllLevels() LevelMask {
	return LevelMask{TopLevel: true, Connected: true, Secondary: true, Isolated: true}
}

// Enabled reports whether role passes the mask.
func (m LevelMask) Enabled(role keyword.Role) bool {
	switch role {
	case keyword.RoleTopLevel:
		return m.TopLevel
	case keyword.RoleConnected:
		return m.Connected
	case keyword.RoleSecondary:
		return m.Secondary
	case keyword.RoleIsolated:
		return m.Isolated
	}
	return false
}

// ParseLevels builds a mask from a comma-separated list of role names, as
// accepted by keyword.ParseRole. An empty list enables nothing.
func ParseLevels(s string) (LevelMask, error) {
	var m LevelMask
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, err := keyword.ParseRole(part)
		if err != nil {
			return LevelMask{}, err
		}
		switch role {
		case keyword.RoleTopLevel:
			m.TopLevel = true
		case keyword.RoleConnected:
			m.Connected = true
		case keyword.RoleSecondary:
			m.Secondary = true
		case keyword.RoleIsolated:
			m.Isolated = true
		}
	}
	return m, nil
}

// State is the visibility state. Selected is meaningful only in
// ModeExpanded and Mask only in ModeFiltered.
type State struct {
	Mode     Mode      `json:"mode"`
	Selected string    `json:"selected,omitempty"`
	Mask     LevelMask `json:"mask"`
}

// Default is the initial state.
func Default() State { return State{Mode: ModeDefault} }

// Expanded focuses id and its neighbours.
func Expanded(id string) State { return State{Mode: ModeExpanded, Selected: id} }

// Filtered shows the roles enabled in mask.
func Filtered(mask LevelMask) State { return State{Mode: ModeFiltered, Mask: mask} }

// All shows every node.
func All() State { return State{Mode: ModeAll} }

// Snapshot is a classified graph with the lookups the state machine needs.
type Snapshot struct {
	Nodes     []keyword.Node
	Relations []keyword.Relation

	index     map[string]int
	neighbors map[string][]string
}

// NewSnapshot indexes nodes and relations. Relations to unknown ids are
// ignored by every lookup.
func NewSnapshot(nodes []keyword.Node, relations []keyword.Relation) *Snapshot {
	g := keyword.Graph{Keywords: make([]keyword.Keyword, len(nodes)), Relations: relations}
	for i, n := range nodes {
		g.Keywords[i] = n.Keyword
	}
	return &Snapshot{
		Nodes:     nodes,
		Relations: relations,
		index:     g.Index(),
		neighbors: keyword.Neighbors(g),
	}
}

// Node returns the classified node with the given id.
func (s *Snapshot) Node(id string) (keyword.Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return keyword.Node{}, false
	}
	return s.Nodes[i], true
}

// Neighbors returns the distinct neighbour ids of id.
func (s *Snapshot) Neighbors(id string) []string { return s.neighbors[id] }
