// Package engine is the interaction surface: it owns one viewer's state,
// turns gestures into visibility transitions and layout restarts, and keeps
// the projection in sync with the keyword store.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hurttlocker/kwgraph/internal/bus"
	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/layout"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/scene"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/view"
	"github.com/hurttlocker/kwgraph/internal/viewport"
)

// ErrTargetMissing rejects a connection to a keyword that does not exist.
var ErrTargetMissing = errors.New("target keyword must exist")

// Defaults for Config.
const (
	DefaultWidth         = 960
	DefaultHeight        = 640
	DefaultFrameInterval = 16 * time.Millisecond
)

// Config holds configuration for New.
type Config struct {
	Store         *store.KeywordStore
	Layout        layout.Config
	Fitter        viewport.Fitter
	Radius        layout.RadiusScale
	Measurer      scene.Measurer
	Width         float64
	Height        float64
	FitDelay      time.Duration
	FrameInterval time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Session is one viewer's engine state. Gestures are serialized: each runs
// to completion, including re-projection and layout restart, before the
// next one starts.
type Session struct {
	cfg     Config
	store   *store.KeywordStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	graph     keyword.Graph
	snap      *view.Snapshot
	state     view.State
	vis       view.Visibility
	filter    string
	sim       *layout.Simulation
	transform viewport.Transform
	tween     *viewport.Tween
	tweenAt   time.Time
	fit       *viewport.Debouncer
	now       func() time.Time

	// What the layout was last seeded with.
	laidNodes []layout.NodeSpec
	laidEdges []keyword.Relation

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]func()

	unsubs []func()
}

// New creates a session, loads the current graph from the store and
// subscribes to its changes.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Fitter == (viewport.Fitter{}) {
		cfg.Fitter = viewport.DefaultFitter
	}
	if cfg.Radius == (layout.RadiusScale{}) {
		cfg.Radius = layout.DefaultRadiusScale
	}
	if cfg.Measurer == nil {
		cfg.Measurer = scene.DefaultMeasurer
	}
	if cfg.FitDelay <= 0 {
		cfg.FitDelay = viewport.FitDelay
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		cfg:       cfg,
		store:     cfg.Store,
		logger:    cfg.Logger.With("component", "engine"),
		metrics:   cfg.Metrics,
		state:     view.Default(),
		sim:       layout.New(cfg.Layout, cfg.Width, cfg.Height),
		transform: viewport.Identity,
		now:       time.Now,
		observers: map[int]func(){},
	}
	s.fit = viewport.NewDebouncer(cfg.FitDelay, s.fitNow)

	s.mu.Lock()
	s.rebuild(s.store.Graph(ctx))
	s.mu.Unlock()

	refresh := func(ev bus.Event) {
		s.logger.Debug("store changed", "topic", ev.Topic, "remote", ev.Remote)
		s.Refresh(context.Background())
	}
	s.unsubs = append(s.unsubs,
		s.store.Subscribe(bus.TopicKeywords, refresh),
		s.store.Subscribe(bus.TopicConnections, refresh),
	)
	return s, nil
}

// Close detaches the session from the store and cancels a pending fit.
func (s *Session) Close() {
	for _, u := range s.unsubs {
		u()
	}
	s.fit.Stop()
}

// OnChange registers fn to run after every change to the scene. It returns
// a function that removes fn.
func (s *Session) OnChange(fn func()) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify() {
	s.obsMu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Refresh re-reads the graph from the store and rebuilds the projection.
func (s *Session) Refresh(ctx context.Context) {
	g := s.store.Graph(ctx)
	s.mu.Lock()
	s.rebuild(g)
	s.mu.Unlock()
	s.notify()
}

// rebuild reclassifies g and re-projects the current state. Callers hold mu.
func (s *Session) rebuild(g keyword.Graph) {
	s.graph = g
	nodes := keyword.Classify(g)
	s.snap = view.NewSnapshot(nodes, g.Relations)
	s.state = view.Reconcile(s.state, s.snap)

	tally := keyword.Counts(nodes)
	counts := make(map[string]int, len(keyword.Roles))
	for _, role := range keyword.Roles {
		counts[role.String()] = tally[role]
	}
	s.metrics.Roles(counts)
	s.reproject()
}

// reproject recomputes visibility. When the visible nodes, their radii or
// the visible edges changed it reseeds the layout, reheats it and schedules
// a fit. Callers hold mu.
func (s *Session) reproject() {
	s.vis = view.Project(s.state, s.snap)
	ids := s.vis.VisibleIDs(s.snap)
	specs := make([]layout.NodeSpec, 0, len(ids))
	for _, id := range ids {
		n, _ := s.snap.Node(id)
		specs = append(specs, layout.NodeSpec{ID: id, Radius: s.cfg.Radius.Radius(n.Weight)})
	}
	edges := s.vis.VisibleEdges()
	s.metrics.Visible(len(ids))
	if slices.Equal(specs, s.laidNodes) && slices.Equal(edges, s.laidEdges) {
		return
	}
	s.laidNodes, s.laidEdges = specs, edges
	s.sim.SetGraph(specs, edges)
	s.sim.Restart(1)
	s.fit.Trigger()
}

// State returns the current visibility state.
func (s *Session) State() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Graph returns the graph the session is showing.
func (s *Session) Graph() keyword.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Scene returns the current render projection.
func (s *Session) Scene() scene.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scene.Build(scene.Input{
		Snapshot:   s.snap,
		Visibility: s.vis,
		Bodies:     s.sim.Bodies(),
		Radius:     s.cfg.Radius,
		Transform:  s.currentTransform(),
		Width:      s.cfg.Width,
		Height:     s.cfg.Height,
		Filter:     s.filter,
		Settled:    s.sim.Settled(),
		Measurer:   s.cfg.Measurer,
	})
}

// currentTransform advances the active tween. Callers hold mu.
func (s *Session) currentTransform() viewport.Transform {
	if s.tween == nil {
		return s.transform
	}
	elapsed := s.now().Sub(s.tweenAt)
	t := s.tween.At(elapsed)
	if s.tween.Done(elapsed) {
		s.tween = nil
	}
	s.transform = t
	return t
}

// animateTo starts a tween from the current transform. Callers hold mu.
func (s *Session) animateTo(to viewport.Transform, d time.Duration) {
	from := s.currentTransform()
	s.tween = &viewport.Tween{From: from, To: to, Duration: d}
	s.tweenAt = s.now()
	s.transform = from
}

// fitNow frames the visible bodies. It runs on the debounce timer.
func (s *Session) fitNow() {
	s.mu.Lock()
	s.animateTo(s.fitTransform(), viewport.FitDuration)
	s.mu.Unlock()
	s.metrics.Fit()
	s.notify()
}

func (s *Session) fitTransform() viewport.Transform {
	bodies := s.sim.Bodies()
	circles := make([]viewport.Circle, len(bodies))
	for i, b := range bodies {
		circles[i] = viewport.Circle{Center: b.Pos, Radius: b.Radius}
	}
	return s.cfg.Fitter.Fit(circles, s.cfg.Width, s.cfg.Height)
}

// Tick advances the layout by one frame. It reports whether anything moved.
func (s *Session) Tick() bool {
	s.mu.Lock()
	moved := s.sim.Tick()
	if moved {
		s.metrics.Tick(s.sim.Alpha())
		if s.sim.Settled() {
			// Final fit once the layout has come to rest.
			s.fit.Trigger()
		}
	}
	s.mu.Unlock()
	return moved
}

// Run ticks the layout every frame until ctx is done, notifying observers
// after each frame that moved something.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.Tick() {
				s.notify()
			}
		}
	}
}

// Settle ticks the layout to rest, up to maxTicks, and fits immediately.
// Headless callers use it instead of Run.
func (s *Session) Settle(maxTicks int) {
	s.mu.Lock()
	s.sim.Run(maxTicks)
	s.fit.Cancel()
	s.transform = s.fitTransform()
	s.tween = nil
	s.mu.Unlock()
	s.notify()
}
