// Package mcp provides a Model Context Protocol server for kwgraph.
//
// It exposes keyword management (add, remove, relabel, role hints, weights),
// relation editing, classification, visibility projection and usage tracking
// as MCP tools, and the current graph and usage analytics as MCP resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/usage"
	"github.com/hurttlocker/kwgraph/internal/view"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   *store.KeywordStore
	Usage   *usage.Tracker // defaults to a tracker over Store
	Version string         // version string for MCP server info
}

// toolMu serializes tool calls. mcp-go dispatches handlers concurrently and
// usage tracking spans several store writes that must not interleave.
var toolMu sync.Mutex

// NewServer creates a configured MCP server with all kwgraph tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	tracker := cfg.Usage
	if tracker == nil {
		tracker = usage.NewTracker(cfg.Store, nil)
	}

	s := server.NewMCPServer(
		"kwgraph",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerKeywordListTool(s, cfg.Store)
	registerKeywordAddTool(s, cfg.Store)
	registerKeywordRemoveTool(s, cfg.Store)
	registerKeywordRelabelTool(s, cfg.Store)
	registerKeywordSetRoleTool(s, cfg.Store)
	registerKeywordSetWeightTool(s, cfg.Store)
	registerRelationAddTool(s, cfg.Store)
	registerRelationRemoveTool(s, cfg.Store)
	registerGraphClearTool(s, cfg.Store)
	registerGraphClassifyTool(s, cfg.Store)
	registerGraphViewTool(s, cfg.Store)
	registerUsageTrackTool(s, tracker)
	registerUsageAnalyticsTool(s, tracker)

	registerGraphResource(s, cfg.Store)
	registerAnalyticsResource(s, tracker)

	return s
}

// ServeStdio serves s over in and out until ctx is done or in closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

// --- Keyword tools ---

func registerKeywordListTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_list",
		mcp.WithDescription("List every keyword with its derived role, connection count, weight and use count."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("role",
			mcp.Description("Only list keywords with this role"),
			mcp.Enum("top-level", "connected", "secondary", "isolated"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		var want keyword.Role
		if r := req.GetString("role", ""); r != "" {
			role, err := keyword.ParseRole(r)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			want = role
		}
		nodes := keyword.Classify(st.Graph(ctx))
		out := make([]keyword.Node, 0, len(nodes))
		for _, n := range nodes {
			if want == keyword.RoleNone || n.Role == want {
				out = append(out, n)
			}
		}
		return jsonResult(map[string]any{"keywords": out, "count": len(out)})
	})
}

func registerKeywordAddTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_add",
		mcp.WithDescription("Add a keyword. Names are unique regardless of case."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Display name of the keyword"),
		),
		mcp.WithNumber("weight",
			mcp.Description(fmt.Sprintf("Importance weight, larger draws a bigger node (default: %d)", keyword.DefaultWeight)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError("name is required"), nil
		}
		k, err := st.AddKeyword(ctx, name, req.GetFloat("weight", 0))
		if err != nil {
			return toolError("adding keyword", err), nil
		}
		return jsonResult(k)
	})
}

func registerKeywordRemoveTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_remove",
		mcp.WithDescription("Remove a keyword and every relation that touches it."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		ref, err := req.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		k, err := st.RemoveKeyword(ctx, ref)
		if err != nil {
			return toolError("removing keyword", err), nil
		}
		return jsonResult(map[string]any{"removed": k})
	})
}

func registerKeywordRelabelTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_relabel",
		mcp.WithDescription("Rename a keyword. Its relations are kept."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword id or current name"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("New display name"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		ref, err := req.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError("name is required"), nil
		}
		k, err := st.RelabelKeyword(ctx, ref, name)
		if err != nil {
			return toolError("relabelling keyword", err), nil
		}
		return jsonResult(k)
	})
}

func registerKeywordSetRoleTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_set_role",
		mcp.WithDescription("Record a role hint for a keyword. Hints are shown in details panels; the displayed role is always derived from the graph structure."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Role hint, or empty to clear it"),
			mcp.Enum("", "top-level", "connected", "secondary", "isolated"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		ref, err := req.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		role, err := keyword.ParseRole(req.GetString("role", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		k, err := st.SetRoleHint(ctx, ref, role)
		if err != nil {
			return toolError("setting role hint", err), nil
		}
		return jsonResult(k)
	})
}

func registerKeywordSetWeightTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("keyword_set_weight",
		mcp.WithDescription("Change a keyword's importance weight."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
		mcp.WithNumber("weight",
			mcp.Required(),
			mcp.Description("New weight, greater than zero"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		ref, err := req.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		weight, err := req.RequireFloat("weight")
		if err != nil {
			return mcp.NewToolResultError("weight is required"), nil
		}
		k, err := st.SetWeight(ctx, ref, weight)
		if err != nil {
			return toolError("setting weight", err), nil
		}
		return jsonResult(k)
	})
}

// --- Relation tools ---

func registerRelationAddTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("relation_add",
		mcp.WithDescription("Relate two existing keywords. Relations are undirected; adding one that exists in either direction is a no-op."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Keyword id or name; must already exist"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		source, err := req.RequireString("source")
		if err != nil {
			return mcp.NewToolResultError("source is required"), nil
		}
		target, err := req.RequireString("target")
		if err != nil || strings.TrimSpace(target) == "" {
			return mcp.NewToolResultError("target keyword must exist"), nil
		}
		added, err := st.AddRelation(ctx, source, target)
		if err != nil {
			return toolError("adding relation", err), nil
		}
		return jsonResult(map[string]bool{"added": added})
	})
}

func registerRelationRemoveTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("relation_remove",
		mcp.WithDescription("Remove the relation between two keywords, in whichever direction it was stored."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Keyword id or name"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		source, err := req.RequireString("source")
		if err != nil {
			return mcp.NewToolResultError("source is required"), nil
		}
		target, err := req.RequireString("target")
		if err != nil {
			return mcp.NewToolResultError("target is required"), nil
		}
		removed, err := st.RemoveRelation(ctx, source, target)
		if err != nil {
			return toolError("removing relation", err), nil
		}
		return jsonResult(map[string]bool{"removed": removed})
	})
}

// --- Graph tools ---

func registerGraphClearTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("graph_clear",
		mcp.WithDescription("Delete every keyword and relation. The empty graph is kept; defaults are not reloaded."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		if !req.GetBool("confirm", false) {
			return mcp.NewToolResultError("confirm must be true to clear the graph"), nil
		}
		if err := st.Clear(ctx); err != nil {
			return toolError("clearing graph", err), nil
		}
		return mcp.NewToolResultText("graph cleared"), nil
	})
}

// ClassifyResult is the payload of graph_classify.
type ClassifyResult struct {
	MaxDegree int                 `json:"max_degree"`
	Threshold int                 `json:"threshold"`
	Counts    map[string]int      `json:"counts"`
	Roles     map[string][]string `json:"roles"`
}

func registerGraphClassifyTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("graph_classify",
		mcp.WithDescription("Classify the keyword graph: top-level keywords are the most connected, connected keywords touch one, secondary keywords are linked elsewhere, isolated keywords have no relations."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		return jsonResult(classify(st.Graph(ctx)))
	})
}

func classify(g keyword.Graph) ClassifyResult {
	nodes := keyword.Classify(g)
	res := ClassifyResult{Counts: map[string]int{}, Roles: map[string][]string{}}
	for _, role := range keyword.Roles {
		res.Counts[role.String()] = 0
		res.Roles[role.String()] = []string{}
	}
	for _, n := range nodes {
		if n.Degree > res.MaxDegree {
			res.MaxDegree = n.Degree
		}
		res.Counts[n.Role.String()]++
		res.Roles[n.Role.String()] = append(res.Roles[n.Role.String()], n.Label())
	}
	res.Threshold = keyword.Threshold(res.MaxDegree)
	return res
}

// ViewResult is the payload of graph_view.
type ViewResult struct {
	State   view.State  `json:"state"`
	Visible []string    `json:"visible"`
	Hidden  []string    `json:"hidden"`
	Edges   [][2]string `json:"edges"`
}

func registerGraphViewTool(s *server.MCPServer, st *store.KeywordStore) {
	tool := mcp.NewTool("graph_view",
		mcp.WithDescription("Show which keywords and relations a viewer would see in a given mode. The default mode shows top-level and isolated keywords; expanded shows one top-level keyword and its neighbours; filtered shows the listed roles; all shows everything."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("mode",
			mcp.Description("View mode (default: default)"),
			mcp.Enum("default", "expanded", "filtered", "all"),
		),
		mcp.WithString("keyword",
			mcp.Description("Top-level keyword to expand, for expanded mode"),
		),
		mcp.WithString("levels",
			mcp.Description("Comma-separated roles to show, for filtered mode"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		g := st.Graph(ctx)
		snap := view.NewSnapshot(keyword.Classify(g), g.Relations)
		state, err := viewState(g, snap, req.GetString("mode", "default"), req.GetString("keyword", ""), req.GetString("levels", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(project(state, snap))
	})
}

func viewState(g keyword.Graph, snap *view.Snapshot, mode, ref, levels string) (view.State, error) {
	switch mode {
	case "", "default":
		return view.Default(), nil
	case "all":
		return view.All(), nil
	case "expanded":
		k, ok := g.Resolve(ref)
		if !ok {
			return view.State{}, fmt.Errorf("keyword %q not found", ref)
		}
		next := view.Transition(view.Default(), view.ClickNode{ID: k.ID}, snap)
		if next.Mode != view.ModeExpanded {
			return view.State{}, fmt.Errorf("keyword %q is not top-level", k.Label())
		}
		return next, nil
	case "filtered":
		mask, err := view.ParseLevels(levels)
		if err != nil {
			return view.State{}, err
		}
		return view.Filtered(mask), nil
	}
	return view.State{}, fmt.Errorf("unknown mode %q", mode)
}

func project(state view.State, snap *view.Snapshot) ViewResult {
	vis := view.Project(state, snap)
	res := ViewResult{State: state, Visible: []string{}, Hidden: []string{}, Edges: [][2]string{}}
	names := make(map[string]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		names[n.ID] = n.Label()
		if vis.Visible(n.ID) {
			res.Visible = append(res.Visible, n.Label())
		} else {
			res.Hidden = append(res.Hidden, n.Label())
		}
	}
	for _, r := range vis.VisibleEdges() {
		res.Edges = append(res.Edges, [2]string{names[r.Source], names[r.Target]})
	}
	return res
}

// --- Usage tools ---

func registerUsageTrackTool(s *server.MCPServer, tr *usage.Tracker) {
	tool := mcp.NewTool("usage_track",
		mcp.WithDescription("Record that a keyword was used, or record every keyword mentioned in a piece of text."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("keyword",
			mcp.Description("Keyword id or name"),
		),
		mcp.WithString("text",
			mcp.Description("Text to scan for keyword mentions"),
		),
		mcp.WithString("context",
			mcp.Description(fmt.Sprintf("Where the keyword was used (default: %s)", usage.DefaultContext)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		label := req.GetString("context", "")
		if ref := req.GetString("keyword", ""); ref != "" {
			k, err := tr.Track(ctx, ref, label)
			if err != nil {
				return toolError("tracking usage", err), nil
			}
			return jsonResult(map[string]any{"tracked": []string{k.Label()}})
		}
		if text := req.GetString("text", ""); text != "" {
			found, err := tr.TrackText(ctx, text, label)
			if err != nil {
				return toolError("tracking usage", err), nil
			}
			if found == nil {
				found = []string{}
			}
			return jsonResult(map[string]any{"tracked": found})
		}
		return mcp.NewToolResultError("keyword or text is required"), nil
	})
}

func registerUsageAnalyticsTool(s *server.MCPServer, tr *usage.Tracker) {
	tool := mcp.NewTool("usage_analytics",
		mcp.WithDescription("Usage totals, estimated cost and the most used keywords."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		return jsonResult(tr.Analytics(ctx))
	})
}

// --- Resources ---

func registerGraphResource(s *server.MCPServer, st *store.KeywordStore) {
	resource := mcp.NewResource(
		"kwgraph://graph",
		"Keyword Graph",
		mcp.WithResourceDescription("Every keyword with its derived role, and every relation."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		g := st.Graph(ctx)
		payload := map[string]any{
			"keywords":  keyword.Classify(g),
			"relations": g.Relations,
		}
		return jsonResource(req.Params.URI, payload)
	})
}

func registerAnalyticsResource(s *server.MCPServer, tr *usage.Tracker) {
	resource := mcp.NewResource(
		"kwgraph://analytics",
		"Usage Analytics",
		mcp.WithResourceDescription("Usage totals and the most used keywords."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		toolMu.Lock()
		defer toolMu.Unlock()

		return jsonResource(req.Params.URI, tr.Analytics(ctx))
	})
}

// --- Helpers ---

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}

// toolError turns a store error into a tool-level error result. Missing
// relation targets get the wording viewers show.
func toolError(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrKeywordNotFound) && strings.HasPrefix(action, "adding relation") {
		return mcp.NewToolResultError("target keyword must exist: " + err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
}
