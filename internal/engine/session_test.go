package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/view"
	"github.com/hurttlocker/kwgraph/internal/viewport"
)

func newTestStore(t *testing.T, m store.Medium) *store.KeywordStore {
	t.Helper()
	if m == nil {
		m = store.NewMemoryMedium(nil)
	}
	st, err := store.New(store.Config{Medium: m, Namespace: "test"})
	require.NoError(t, err)
	_, err = st.Load(context.Background())
	require.NoError(t, err)
	return st
}

func newTestSession(t *testing.T, st *store.KeywordStore) *Session {
	t.Helper()
	if st == nil {
		st = newTestStore(t, nil)
	}
	s, err := New(context.Background(), Config{
		Store:    st,
		Width:    800,
		Height:   600,
		FitDelay: time.Hour,
		Metrics:  metrics.New(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func visibleIDs(s *Session) []string {
	var ids []string
	for _, n := range s.Scene().Nodes {
		if n.Visible {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew_StartsInDefaultView(t *testing.T) {
	s := newTestSession(t, nil)

	sc := s.Scene()
	assert.Equal(t, view.ModeDefault, sc.State.Mode)
	assert.Len(t, sc.Nodes, 10)
	assert.ElementsMatch(t,
		[]string{"yayoi-kusama", "louis-vuitton", "moma", "feifei-sun", "central-park"},
		visibleIDs(s))
	assert.Equal(t, 2, sc.Counts["top-level"])
}

func TestClick_ExpandsAndCollapsesTopLevel(t *testing.T) {
	s := newTestSession(t, nil)

	res := s.Click("yayoi-kusama")
	assert.True(t, res.Changed)
	assert.Nil(t, res.Details)
	assert.Equal(t, view.Expanded("yayoi-kusama"), s.State())
	assert.ElementsMatch(t,
		[]string{"yayoi-kusama", "louis-vuitton", "infinity-mirrors", "painted-dots", "pumpkins"},
		visibleIDs(s))

	res = s.Click("yayoi-kusama")
	assert.True(t, res.Changed)
	assert.Equal(t, view.Default(), s.State())
}

func TestClick_NonTopLevelShowsDetails(t *testing.T) {
	s := newTestSession(t, nil)

	res := s.Click("moma")
	assert.False(t, res.Changed)
	require.NotNil(t, res.Details)
	assert.Equal(t, "MoMa", res.Details.Name)
	assert.Equal(t, keyword.RoleIsolated, res.Details.Role)
	assert.Empty(t, res.Details.Neighbors)

	// Hidden nodes are not interactive.
	res = s.Click("pumpkins")
	assert.False(t, res.Changed)
	assert.Nil(t, res.Details)
}

func TestLevelsShowAllAndReset(t *testing.T) {
	s := newTestSession(t, nil)

	s.ApplyLevels(view.LevelMask{Connected: true})
	assert.Len(t, visibleIDs(s), 5)

	// Clicks do nothing while filtered.
	res := s.Click("yayoi-kusama")
	assert.False(t, res.Changed)

	s.ShowAll()
	assert.Len(t, visibleIDs(s), 10)

	s.Filter("kusama")
	s.Reset()
	sc := s.Scene()
	assert.Equal(t, view.ModeDefault, sc.State.Mode)
	assert.Empty(t, sc.Filter)
}

func TestFilter_DimsWithoutChangingVisibility(t *testing.T) {
	s := newTestSession(t, nil)
	before := visibleIDs(s)

	s.Filter("kusama")
	sc := s.Scene()
	assert.Equal(t, before, visibleIDs(s))

	yk, _ := sc.Find("yayoi-kusama")
	lv, _ := sc.Find("louis-vuitton")
	assert.Equal(t, 1.0, yk.Opacity)
	assert.Less(t, lv.Opacity, 1.0)
}

func TestConnect(t *testing.T) {
	st := newTestStore(t, nil)
	s := newTestSession(t, st)
	ctx := context.Background()

	_, err := s.Connect(ctx, "moma", "")
	assert.ErrorIs(t, err, ErrTargetMissing)
	_, err = s.Connect(ctx, "moma", "Nowhere")
	assert.ErrorIs(t, err, ErrTargetMissing)
	_, err = s.Connect(ctx, "nowhere", "MoMa")
	assert.ErrorIs(t, err, store.ErrKeywordNotFound)
	assert.Len(t, st.Relations(ctx), 6)

	added, err := s.Connect(ctx, "moma", "central park")
	require.NoError(t, err)
	assert.True(t, added)

	// The session rebuilt from the store notification.
	assert.True(t, s.Graph().HasRelation("moma", "central-park"))
	d, err := s.Details("MoMa")
	require.NoError(t, err)
	assert.Equal(t, []string{"Central Park"}, d.Neighbors)

	added, err = s.Connect(ctx, "central-park", "MoMa")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestRefresh_ReconcilesStaleSelection(t *testing.T) {
	st := newTestStore(t, nil)
	s := newTestSession(t, st)
	ctx := context.Background()

	s.Click("louis-vuitton")
	require.Equal(t, view.ModeExpanded, s.State().Mode)

	_, err := st.RemoveKeyword(ctx, "louis-vuitton")
	require.NoError(t, err)
	assert.Equal(t, view.Default(), s.State())
	_, ok := s.Scene().Find("louis-vuitton")
	assert.False(t, ok)
}

func TestOnChange(t *testing.T) {
	s := newTestSession(t, nil)
	var calls atomic.Int32
	off := s.OnChange(func() { calls.Add(1) })

	s.Filter("x")
	s.ShowAll()
	assert.Equal(t, int32(2), calls.Load())

	off()
	s.Filter("")
	assert.Equal(t, int32(2), calls.Load())
}

func TestZoom_AnimatesToScaledTransform(t *testing.T) {
	s := newTestSession(t, nil)
	clock := time.Unix(0, 0)
	s.now = func() time.Time { return clock }

	s.ZoomIn()
	assert.Equal(t, 1.0, s.Scene().Transform.K)

	clock = clock.Add(viewport.ZoomDuration)
	assert.InDelta(t, 1.2, s.Scene().Transform.K, 1e-9)

	// A second zoom starts from where the first one ends.
	s.ZoomIn()
	s.ZoomOut()
	clock = clock.Add(viewport.ZoomDuration)
	assert.InDelta(t, 1.2*1.2*0.8, s.Scene().Transform.K, 1e-9)
}

func TestSettle_FitsVisibleNodesInViewport(t *testing.T) {
	s := newTestSession(t, nil)
	s.ShowAll()
	s.Settle(2000)

	sc := s.Scene()
	assert.True(t, sc.Settled)
	for _, n := range sc.Nodes {
		x := sc.Transform.K*n.X + sc.Transform.X
		y := sc.Transform.K*n.Y + sc.Transform.Y
		assert.GreaterOrEqual(t, x, 0.0, n.ID)
		assert.LessOrEqual(t, x, sc.Width, n.ID)
		assert.GreaterOrEqual(t, y, 0.0, n.ID)
		assert.LessOrEqual(t, y, sc.Height, n.ID)
	}
}

func TestResize(t *testing.T) {
	s := newTestSession(t, nil)
	s.Settle(2000)
	s.Resize(400, 300)
	sc := s.Scene()
	assert.Equal(t, 400.0, sc.Width)
	assert.False(t, sc.Settled)

	s.Resize(0, 300)
	assert.Equal(t, 400.0, s.Scene().Width)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	s := newTestSession(t, nil)
	var frames atomic.Int32
	s.OnChange(func() { frames.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return frames.Load() > 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSession_FollowsRemoteChanges(t *testing.T) {
	shared := store.NewMemoryMedium(nil)
	writer := newTestStore(t, shared)
	reader := newTestStore(t, shared)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, reader.Start(ctx))
	s := newTestSession(t, reader)

	_, err := writer.AddKeyword(ctx, "Zendaya", 30)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := s.Graph().FindByName("Zendaya")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefresh_UseCountBumpKeepsLayoutAtRest(t *testing.T) {
	st := newTestStore(t, nil)
	s := newTestSession(t, st)
	ctx := context.Background()
	s.Settle(2000)
	before := s.Scene()
	require.True(t, before.Settled)

	_, err := st.UpdateKeyword(ctx, "moma", func(k *keyword.Keyword) error {
		k.Uses++
		return nil
	})
	require.NoError(t, err)
	s.Refresh(ctx)

	after := s.Scene()
	assert.True(t, after.Settled, "a use-count bump should not reheat the layout")
	assert.Equal(t, before.Transform, after.Transform)

	// A new radius is a layout change.
	_, err = st.SetWeight(ctx, "moma", 90)
	require.NoError(t, err)
	s.Refresh(ctx)
	assert.False(t, s.Scene().Settled)
}
