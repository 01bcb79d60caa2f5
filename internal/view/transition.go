package view

import "github.com/hurttlocker/kwgraph/internal/keyword"

// Event is an input to Transition.
type Event interface {
	event()
}

// ClickNode is a pointer click on a node.
type ClickNode struct{ ID string }

// Reset returns to the default view.
type Reset struct{}

// ApplyLevels applies the level filter dialog.
type ApplyLevels struct{ Mask LevelMask }

// ShowAll shows every node.
type ShowAll struct{}

func (ClickNode) event()   {}
func (Reset) event()       {}
func (ApplyLevels) event() {}
func (ShowAll) event()     {}

// Transition returns the state that follows s after ev. Clicks on nodes that
// are not interactive, clicks on nodes that are not top-level, and clicks in
// filtered or all mode leave the state unchanged.
func Transition(s State, ev Event, snap *Snapshot) State {
	switch e := ev.(type) {
	case Reset:
		return Default()
	case ApplyLevels:
		return Filtered(e.Mask)
	case ShowAll:
		return All()
	case ClickNode:
		if s.Mode != ModeDefault && s.Mode != ModeExpanded {
			return s
		}
		if !Interactive(s, snap, e.ID) {
			return s
		}
		n, _ := snap.Node(e.ID)
		if n.Role != keyword.RoleTopLevel {
			return s
		}
		if s.Mode == ModeExpanded && s.Selected == e.ID {
			return Default()
		}
		return Expanded(e.ID)
	}
	return s
}

// Reconcile adjusts s after the graph was rebuilt. An expanded selection
// that no longer exists or is no longer top-level falls back to default.
func Reconcile(s State, snap *Snapshot) State {
	if s.Mode != ModeExpanded {
		return s
	}
	n, ok := snap.Node(s.Selected)
	if !ok || n.Role != keyword.RoleTopLevel {
		return Default()
	}
	return s
}

// Interactive reports whether the node reacts to pointer input in s. Only
// visible nodes are interactive.
func Interactive(s State, snap *Snapshot, id string) bool {
	if _, ok := snap.Node(id); !ok {
		return false
	}
	return visibleNodes(s, snap)[id]
}
