package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/scene"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/usage"
	"github.com/hurttlocker/kwgraph/internal/view"
)

type testEnv struct {
	store   *store.KeywordStore
	session *engine.Session
	hub     *Hub
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("registering metrics: %v", err)
	}

	st, err := store.New(store.Config{Medium: store.NewMemoryMedium(nil), Namespace: "test", Metrics: m})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if _, err := st.Load(ctx); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	engineCfg := engine.Config{Store: st, Width: 800, Height: 600, FitDelay: time.Hour, Metrics: m}
	sess, err := engine.New(ctx, engineCfg)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	t.Cleanup(sess.Close)

	handler, hub := NewHandler(ServerConfig{
		Session:  sess,
		Engine:   engineCfg,
		Store:    st,
		Usage:    usage.NewTracker(st, nil),
		Metrics:  m,
		Gatherer: reg,
	})
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &testEnv{store: st, session: sess, hub: hub, server: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestViewerHTML(t *testing.T) {
	data, err := viewerFS.ReadFile("viewer.html")
	if err != nil {
		t.Fatalf("viewer.html not embedded: %v", err)
	}
	if !strings.HasPrefix(string(data), "<!DOCTYPE html>") {
		t.Fatal("viewer.html doesn't start with DOCTYPE")
	}
	html := string(data)
	for _, want := range []string{"/ws", `type: "click"`, `"levels"`, "/api/keywords"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected viewer to reference %s", want)
		}
	}
}

func TestViewerServedAtRoot(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/nope", nil), http.StatusNotFound)
}

func TestSceneAPI(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/scene", nil)
	expectStatus(t, resp, http.StatusOK)

	var sc struct {
		State  struct{ Mode string } `json:"state"`
		Nodes  []scene.Node          `json:"nodes"`
		Counts map[string]int        `json:"counts"`
	}
	decode(t, resp, &sc)
	if sc.State.Mode != "default" {
		t.Fatalf("expected default mode, got %q", sc.State.Mode)
	}
	if len(sc.Nodes) != 10 {
		t.Fatalf("expected 10 nodes, got %d", len(sc.Nodes))
	}
	if sc.Counts["top-level"] != 2 || sc.Counts["isolated"] != 3 {
		t.Fatalf("unexpected counts: %v", sc.Counts)
	}
}

func TestGestureAPI(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/gesture", Gesture{Type: GestureClick, ID: "yayoi-kusama"})
	expectStatus(t, resp, http.StatusOK)
	var got struct {
		Result engine.ClickResult `json:"result"`
	}
	decode(t, resp, &got)
	if !got.Result.Changed {
		t.Fatal("expected click on top-level keyword to change the view")
	}
	if env.session.State() != view.Expanded("yayoi-kusama") {
		t.Fatalf("unexpected state %+v", env.session.State())
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/gesture", Gesture{Type: GestureLevels, Mask: &view.LevelMask{Isolated: true}}), http.StatusOK)
	if env.session.State().Mode != view.ModeFiltered {
		t.Fatalf("expected filtered mode, got %v", env.session.State().Mode)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/gesture", Gesture{Type: "spin"}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/gesture", Gesture{Type: GestureConnect, Source: "MoMa", Target: "Atlantis"}), http.StatusBadRequest)

	resp = env.do(t, http.MethodPost, "/api/gesture", "not an object")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDetailsAPI(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodGet, "/api/details", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/details?ref=ghost", nil), http.StatusNotFound)

	resp := env.do(t, http.MethodGet, "/api/details?ref=Louis%20Vuitton", nil)
	expectStatus(t, resp, http.StatusOK)
	var d engine.Details
	decode(t, resp, &d)
	if d.Degree != 3 || len(d.Neighbors) != 3 {
		t.Fatalf("unexpected details %+v", d)
	}
}

func TestKeywordsAPI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp := env.do(t, http.MethodPost, "/api/keywords", KeywordRequest{Name: "Zendaya", Weight: 30})
	expectStatus(t, resp, http.StatusCreated)
	var k keyword.Keyword
	decode(t, resp, &k)
	if k.ID == "" || k.Name != "Zendaya" {
		t.Fatalf("unexpected keyword %+v", k)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/keywords", KeywordRequest{Name: "zendaya"}), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/api/keywords", KeywordRequest{Name: " "}), http.StatusBadRequest)

	role := "top-level"
	resp = env.do(t, http.MethodPatch, "/api/keywords", KeywordRequest{Ref: k.ID, Name: "Zendaya Coleman", Role: &role})
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &k)
	if k.Name != "Zendaya Coleman" || k.RoleHint != keyword.RoleTopLevel {
		t.Fatalf("unexpected update %+v", k)
	}
	bad := "boss"
	expectStatus(t, env.do(t, http.MethodPatch, "/api/keywords", KeywordRequest{Ref: k.ID, Role: &bad}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPatch, "/api/keywords", KeywordRequest{Ref: "ghost", Weight: 5}), http.StatusNotFound)

	resp = env.do(t, http.MethodGet, "/api/keywords", nil)
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Keywords []keyword.Node `json:"keywords"`
		Total    int            `json:"total"`
	}
	decode(t, resp, &list)
	if list.Total != 11 {
		t.Fatalf("expected 11 keywords, got %d", list.Total)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/keywords?ref=yayoi-kusama", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/keywords?ref=yayoi-kusama", nil), http.StatusNotFound)
	for _, r := range env.store.Relations(ctx) {
		if r.Touches("yayoi-kusama") {
			t.Fatalf("relation %+v survived removal", r)
		}
	}
}

func TestRelationsAPI(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/relations", RelationRequest{Source: "moma", Target: "Central Park"})
	expectStatus(t, resp, http.StatusCreated)
	expectStatus(t, env.do(t, http.MethodPost, "/api/relations", RelationRequest{Source: "central-park", Target: "moma"}), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/relations", RelationRequest{Source: "moma", Target: ""}), http.StatusBadRequest)

	resp = env.do(t, http.MethodGet, "/api/relations", nil)
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Total int `json:"total"`
	}
	decode(t, resp, &list)
	if list.Total != 7 {
		t.Fatalf("expected 7 relations, got %d", list.Total)
	}

	resp = env.do(t, http.MethodDelete, "/api/relations?source=moma&target=central-park", nil)
	expectStatus(t, resp, http.StatusOK)
	var removed map[string]bool
	decode(t, resp, &removed)
	if !removed["removed"] {
		t.Fatal("expected relation to be removed")
	}
	if env.session.Graph().HasRelation("moma", "central-park") {
		t.Fatal("session still shows removed relation")
	}
}

func TestClearAPI(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/api/clear", nil), http.StatusOK)
	if n := len(env.session.Scene().Nodes); n != 0 {
		t.Fatalf("expected empty scene after clear, got %d nodes", n)
	}
}

func TestUsageAPI(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodPost, "/api/usage", TrackRequest{}), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/usage", TrackRequest{Keyword: "ghost"}), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodPost, "/api/usage", TrackRequest{Keyword: "MoMa"}), http.StatusOK)

	resp := env.do(t, http.MethodPost, "/api/usage", TrackRequest{Text: "pumpkins at moma"})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodGet, "/api/usage", nil)
	expectStatus(t, resp, http.StatusOK)
	var a usage.Analytics
	decode(t, resp, &a)
	if a.TotalUses != 3 {
		t.Fatalf("expected 3 uses, got %d", a.TotalUses)
	}
	if len(a.TopKeywords) == 0 || a.TopKeywords[0].Name != "MoMa" {
		t.Fatalf("expected MoMa on top, got %+v", a.TopKeywords)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/gesture", Gesture{Type: GestureShowAll})

	resp := env.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `kwgraph_engine_gestures_total{gesture="show_all"} 1`) {
		t.Fatalf("expected gesture counter in metrics output:\n%s", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[error]int{
		store.ErrKeywordNotFound:  http.StatusNotFound,
		store.ErrDuplicateKeyword: http.StatusConflict,
		store.ErrSelfRelation:     http.StatusBadRequest,
		engine.ErrTargetMissing:   http.StatusBadRequest,
		ErrUnknownGesture:         http.StatusBadRequest,
		ErrUnknownSession:         http.StatusNotFound,
		io.ErrUnexpectedEOF:       http.StatusInternalServerError,
	}
	for err, want := range tests {
		if got := statusFor(err); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
