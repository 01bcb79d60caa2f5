package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/view"
	"github.com/hurttlocker/kwgraph/internal/viewport"
)

// Details describes one keyword for a details panel.
type Details struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Role      keyword.Role `json:"role"`
	RoleTitle string       `json:"role_title"`
	RoleHint  keyword.Role `json:"role_hint,omitempty"`
	Degree    int          `json:"degree"`
	Weight    float64      `json:"weight"`
	Uses      int          `json:"uses"`
	Neighbors []string     `json:"neighbors"`
}

// ClickResult reports the outcome of a click.
type ClickResult struct {
	State   view.State `json:"state"`
	Changed bool       `json:"changed"`
	// Details is set when the click did not change the view but landed on
	// an interactive node.
	Details *Details `json:"details,omitempty"`
}

// Click handles a pointer click on node id.
func (s *Session) Click(id string) ClickResult {
	s.metrics.Gesture("click")
	s.mu.Lock()
	prev := s.state
	next := view.Transition(prev, view.ClickNode{ID: id}, s.snap)
	res := ClickResult{State: next, Changed: next != prev}
	if res.Changed {
		s.state = next
		s.reproject()
	} else if view.Interactive(prev, s.snap, id) {
		d := s.details(id)
		res.Details = &d
	}
	s.mu.Unlock()
	if res.Changed {
		s.notify()
	}
	return res
}

// Reset returns to the default view, clears the text filter and zooms back
// to the identity transform.
func (s *Session) Reset() {
	s.metrics.Gesture("reset")
	s.mu.Lock()
	s.state = view.Transition(s.state, view.Reset{}, s.snap)
	s.filter = ""
	s.reproject()
	s.animateTo(viewport.Identity, viewport.FitDuration)
	s.mu.Unlock()
	s.notify()
}

// ApplyLevels shows the roles enabled in mask.
func (s *Session) ApplyLevels(mask view.LevelMask) {
	s.metrics.Gesture("apply_levels")
	s.transition(view.ApplyLevels{Mask: mask})
}

// ShowAll shows every keyword.
func (s *Session) ShowAll() {
	s.metrics.Gesture("show_all")
	s.transition(view.ShowAll{})
}

func (s *Session) transition(ev view.Event) {
	s.mu.Lock()
	s.state = view.Transition(s.state, ev, s.snap)
	s.reproject()
	s.mu.Unlock()
	s.notify()
}

// Filter dims keywords whose name does not contain text. The visible set
// and the layout are unchanged.
func (s *Session) Filter(text string) {
	s.metrics.Gesture("filter")
	s.mu.Lock()
	s.filter = text
	s.mu.Unlock()
	s.notify()
}

// ZoomIn scales the view up by viewport.ZoomInFactor around its centre.
func (s *Session) ZoomIn() { s.zoom("zoom_in", viewport.ZoomInFactor) }

// ZoomOut scales the view down by viewport.ZoomOutFactor around its centre.
func (s *Session) ZoomOut() { s.zoom("zoom_out", viewport.ZoomOutFactor) }

func (s *Session) zoom(name string, factor float64) {
	s.metrics.Gesture(name)
	s.mu.Lock()
	// Zoom from where the current animation is heading.
	from := s.currentTransform()
	if s.tween != nil {
		from = s.tween.To
	}
	to := s.cfg.Fitter.ScaleBy(from, factor, s.cfg.Width, s.cfg.Height)
	s.animateTo(to, viewport.ZoomDuration)
	s.mu.Unlock()
	s.notify()
}

// Fit frames the visible keywords now.
func (s *Session) Fit() {
	s.metrics.Gesture("fit")
	s.fitNow()
}

// Resize changes the viewport size, reheats the layout and schedules a fit.
func (s *Session) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.metrics.Gesture("resize")
	s.mu.Lock()
	s.cfg.Width, s.cfg.Height = width, height
	s.sim.Resize(width, height)
	s.sim.Restart(1)
	s.fit.Trigger()
	s.mu.Unlock()
	s.notify()
}

// Connect relates source to the keyword named target. An empty or unknown
// target is rejected with ErrTargetMissing before the store is touched.
func (s *Session) Connect(ctx context.Context, source, target string) (bool, error) {
	s.metrics.Gesture("connect")
	target = strings.TrimSpace(target)
	s.mu.Lock()
	src, okS := s.graph.Resolve(source)
	dst, okT := s.graph.Resolve(target)
	s.mu.Unlock()

	if !okS {
		return false, fmt.Errorf("%w: %q", store.ErrKeywordNotFound, source)
	}
	if target == "" || !okT {
		return false, fmt.Errorf("%w: %q", ErrTargetMissing, target)
	}
	// The store notifies this session, which rebuilds itself.
	return s.store.AddRelation(ctx, src.ID, dst.ID)
}

// Details describes the keyword id or name.
func (s *Session) Details(ref string) (Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.graph.Resolve(ref)
	if !ok {
		return Details{}, fmt.Errorf("%w: %q", store.ErrKeywordNotFound, ref)
	}
	return s.details(k.ID), nil
}

// details builds the panel for a known id. Callers hold mu.
func (s *Session) details(id string) Details {
	n, _ := s.snap.Node(id)
	d := Details{
		ID:        n.ID,
		Name:      n.Label(),
		Role:      n.Role,
		RoleTitle: n.Role.Title(),
		RoleHint:  n.RoleHint,
		Degree:    n.Degree,
		Weight:    n.Weight,
		Uses:      n.Uses,
		Neighbors: []string{},
	}
	for _, other := range s.snap.Neighbors(id) {
		if m, ok := s.snap.Node(other); ok {
			d.Neighbors = append(d.Neighbors, m.Label())
		}
	}
	return d
}
