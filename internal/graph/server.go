// Package graph serves the keyword graph viewer. It embeds a self-contained
// HTML front end, exposes the engine and the keyword store as a JSON API, and
// streams scenes to connected viewers over a WebSocket.
package graph

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/usage"
)

//go:embed viewer.html
var viewerFS embed.FS

// DefaultPort is the viewer's default listen port.
const DefaultPort = 8090

// ErrUnknownSession rejects a request naming a viewer session that is not
// connected.
var ErrUnknownSession = errors.New("unknown viewer session")

// ServerConfig holds settings for the viewer server.
type ServerConfig struct {
	// Session serves HTTP callers that do not name a viewer session.
	Session *engine.Session
	// Engine is the template for each WebSocket viewer's own session.
	// Store, Logger and Metrics default to the server's.
	Engine  engine.Config
	Store   *store.KeywordStore
	Usage   *usage.Tracker
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Host     string
	Port     int
	Logger   *slog.Logger
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Usage == nil && c.Store != nil {
		c.Usage = usage.NewTracker(c.Store, c.Logger)
	}
	if c.Engine.Store == nil {
		c.Engine.Store = c.Store
	}
	if c.Engine.Logger == nil {
		c.Engine.Logger = c.Logger
	}
	if c.Engine.Metrics == nil {
		c.Engine.Metrics = c.Metrics
	}
	return c
}

func (c ServerConfig) newSession(ctx context.Context) (*engine.Session, error) {
	return engine.New(ctx, c.Engine)
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewHandler builds the viewer's HTTP routes. The returned hub must be run
// for WebSocket clients to receive scenes.
func NewHandler(cfg ServerConfig) (http.Handler, *Hub) {
	cfg = cfg.withDefaults()
	hub := NewHub(cfg.newSession, cfg.Logger, cfg.Metrics)
	api := &api{cfg: cfg, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleViewer)
	mux.HandleFunc("GET /api/scene", api.handleScene)
	mux.HandleFunc("POST /api/gesture", api.handleGesture)
	mux.HandleFunc("GET /api/details", api.handleDetails)
	mux.HandleFunc("GET /api/keywords", api.handleListKeywords)
	mux.HandleFunc("POST /api/keywords", api.handleAddKeyword)
	mux.HandleFunc("PATCH /api/keywords", api.handleUpdateKeyword)
	mux.HandleFunc("DELETE /api/keywords", api.handleRemoveKeyword)
	mux.HandleFunc("GET /api/relations", api.handleListRelations)
	mux.HandleFunc("POST /api/relations", api.handleAddRelation)
	mux.HandleFunc("DELETE /api/relations", api.handleRemoveRelation)
	mux.HandleFunc("POST /api/clear", api.handleClear)
	mux.HandleFunc("GET /api/usage", api.handleAnalytics)
	mux.HandleFunc("POST /api/usage", api.handleTrack)
	mux.Handle("GET /ws", hub)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux, hub
}

// Serve runs the viewer until ctx is done.
func Serve(ctx context.Context, cfg ServerConfig) error {
	cfg = cfg.withDefaults()
	handler, hub := NewHandler(cfg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	cfg.Logger.Info("viewer listening", "url", "http://"+displayAddr(cfg))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving viewer: %w", err)
	}
	return nil
}

func displayAddr(cfg ServerConfig) string {
	if cfg.Host == "" {
		return net.JoinHostPort("localhost", strconv.Itoa(cfg.Port))
	}
	return cfg.Addr()
}

func handleViewer(w http.ResponseWriter, _ *http.Request) {
	data, err := viewerFS.ReadFile("viewer.html")
	if err != nil {
		http.Error(w, "viewer not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

type api struct {
	cfg ServerConfig
	hub *Hub
}

// session picks the viewer session named by ?session=, or the server's own
// session when none is named.
func (a *api) session(r *http.Request) (*engine.Session, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return a.cfg.Session, nil
	}
	s, ok := a.hub.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s, nil
}

func (a *api) handleScene(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Scene())
}

func (a *api) handleGesture(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var g Gesture
	if !decodeBody(w, r, &g) {
		return
	}
	result, err := Apply(r.Context(), s, g)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GestureResponse{Result: result, Scene: s.Scene()})
}

func (a *api) handleDetails(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ref parameter required"})
		return
	}
	d, err := a.cfg.Session.Details(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *api) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	g := a.cfg.Store.Graph(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"keywords": keyword.Classify(g),
		"total":    len(g.Keywords),
	})
}

// KeywordRequest is the body of keyword create and update calls.
type KeywordRequest struct {
	Ref    string  `json:"ref,omitempty"`
	Name   string  `json:"name,omitempty"`
	Weight float64 `json:"weight,omitempty"`
	Role   *string `json:"role,omitempty"`
}

func (a *api) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var req KeywordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	k, err := a.cfg.Store.AddKeyword(r.Context(), req.Name, req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (a *api) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var req KeywordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ref required"})
		return
	}
	ctx := r.Context()
	var (
		k   keyword.Keyword
		err error
	)
	ref := req.Ref
	if req.Name != "" {
		if k, err = a.cfg.Store.RelabelKeyword(ctx, ref, req.Name); err != nil {
			writeError(w, err)
			return
		}
		ref = k.ID
	}
	if req.Weight > 0 {
		if k, err = a.cfg.Store.SetWeight(ctx, ref, req.Weight); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Role != nil {
		role, perr := keyword.ParseRole(*req.Role)
		if perr != nil {
			writeError(w, fmt.Errorf("%w: %v", store.ErrInvalidKeyword, perr))
			return
		}
		if k, err = a.cfg.Store.SetRoleHint(ctx, ref, role); err != nil {
			writeError(w, err)
			return
		}
	}
	if k.ID == "" {
		found, ok := a.cfg.Store.Graph(ctx).Resolve(ref)
		if !ok {
			writeError(w, fmt.Errorf("%w: %q", store.ErrKeywordNotFound, ref))
			return
		}
		k = found
	}
	writeJSON(w, http.StatusOK, k)
}

func (a *api) handleRemoveKeyword(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ref parameter required"})
		return
	}
	k, err := a.cfg.Store.RemoveKeyword(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (a *api) handleListRelations(w http.ResponseWriter, r *http.Request) {
	rels := a.cfg.Store.Graph(r.Context()).Relations
	writeJSON(w, http.StatusOK, map[string]any{"relations": rels, "total": len(rels)})
}

// RelationRequest names two keywords by id or name.
type RelationRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (a *api) handleAddRelation(w http.ResponseWriter, r *http.Request) {
	var req RelationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	added, err := a.cfg.Session.Connect(r.Context(), req.Source, req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]bool{"added": added})
}

func (a *api) handleRemoveRelation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	removed, err := a.cfg.Store.RemoveRelation(r.Context(), q.Get("source"), q.Get("target"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (a *api) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.cfg.Store.Clear(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (a *api) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg.Usage.Analytics(r.Context()))
}

// TrackRequest records a keyword use, or every keyword mentioned in Text.
type TrackRequest struct {
	Keyword string `json:"keyword,omitempty"`
	Text    string `json:"text,omitempty"`
	Context string `json:"context,omitempty"`
}

func (a *api) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	switch {
	case req.Keyword != "":
		k, err := a.cfg.Usage.Track(ctx, req.Keyword, req.Context)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tracked": []string{k.Label()}})
	case req.Text != "":
		found, err := a.cfg.Usage.TrackText(ctx, req.Text, req.Context)
		if err != nil {
			writeError(w, err)
			return
		}
		if found == nil {
			found = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tracked": found})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword or text required"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrKeywordNotFound),
		errors.Is(err, ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateKeyword):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidKeyword),
		errors.Is(err, store.ErrSelfRelation),
		errors.Is(err, engine.ErrTargetMissing),
		errors.Is(err, ErrUnknownGesture):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
