// Package keyword holds the keyword graph model and the hierarchy classifier.
//
// A Graph is a plain value: a list of keywords and a list of undirected
// relations between them. Roles and degrees are derived by Classify and are
// never stored, so every structural change is followed by a full recompute.
package keyword

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultWeight is assigned to keywords created without a positive weight.
const DefaultWeight = 50

// Keyword is a tracked term with an importance weight.
type Keyword struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Weight    float64    `json:"weight"`
	RoleHint  Role       `json:"role_hint,omitempty"`
	Uses      int        `json:"uses,omitempty"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// New creates a keyword with a fresh opaque id.
func New(name string, weight float64) Keyword {
	if weight <= 0 {
		weight = DefaultWeight
	}
	return Keyword{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Weight:    weight,
		CreatedAt: time.Now().UTC(),
	}
}

// Label returns the display name, falling back to the id for legacy records.
func (k Keyword) Label() string {
	if k.Name != "" {
		return k.Name
	}
	return k.ID
}

// Relation is an undirected association between two keyword ids.
type Relation struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Key returns the direction-independent identity of the relation.
func (r Relation) Key() [2]string {
	if r.Source > r.Target {
		return [2]string{r.Target, r.Source}
	}
	return [2]string{r.Source, r.Target}
}

// SelfLoop reports whether both endpoints are the same keyword.
func (r Relation) SelfLoop() bool { return r.Source == r.Target }

// Touches reports whether id is one of the relation's endpoints.
func (r Relation) Touches(id string) bool { return r.Source == id || r.Target == id }

// Other returns the endpoint opposite id.
func (r Relation) Other(id string) string {
	if r.Source == id {
		return r.Target
	}
	return r.Source
}

// Graph is the owned (keywords, relations) value passed between stages.
type Graph struct {
	Keywords  []Keyword  `json:"keywords"`
	Relations []Relation `json:"relations"`
}

// Index maps keyword ids to their position in Keywords.
func (g Graph) Index() map[string]int {
	idx := make(map[string]int, len(g.Keywords))
	for i, k := range g.Keywords {
		idx[k.ID] = i
	}
	return idx
}

// Find returns the keyword with the given id.
func (g Graph) Find(id string) (Keyword, bool) {
	for _, k := range g.Keywords {
		if k.ID == id {
			return k, true
		}
	}
	return Keyword{}, false
}

// FindByName looks a keyword up by display name, case-insensitively.
func (g Graph) FindByName(name string) (Keyword, bool) {
	name = strings.TrimSpace(name)
	for _, k := range g.Keywords {
		if strings.EqualFold(k.Label(), name) {
			return k, true
		}
	}
	return Keyword{}, false
}

// Resolve finds a keyword by id first, then by name.
func (g Graph) Resolve(ref string) (Keyword, bool) {
	if k, ok := g.Find(ref); ok {
		return k, true
	}
	return g.FindByName(ref)
}

// HasRelation reports whether a and b are related in either direction.
func (g Graph) HasRelation(a, b string) bool {
	want := Relation{Source: a, Target: b}.Key()
	for _, r := range g.Relations {
		if r.Key() == want {
			return true
		}
	}
	return false
}

// Clean returns a copy without self-relations, duplicate relations, or
// relations whose endpoints are missing. The number of dropped relations is
// returned so callers can log it.
func (g Graph) Clean() (Graph, int) {
	idx := g.Index()
	seen := make(map[[2]string]bool, len(g.Relations))
	out := Graph{
		Keywords:  append([]Keyword(nil), g.Keywords...),
		Relations: make([]Relation, 0, len(g.Relations)),
	}
	dropped := 0
	for _, r := range g.Relations {
		_, okS := idx[r.Source]
		_, okT := idx[r.Target]
		if r.SelfLoop() || !okS || !okT || seen[r.Key()] {
			dropped++
			continue
		}
		seen[r.Key()] = true
		out.Relations = append(out.Relations, r)
	}
	return out, dropped
}

// Without returns a copy of g with the keyword id and every relation touching
// it removed.
func (g Graph) Without(id string) Graph {
	out := Graph{
		Keywords:  make([]Keyword, 0, len(g.Keywords)),
		Relations: make([]Relation, 0, len(g.Relations)),
	}
	for _, k := range g.Keywords {
		if k.ID != id {
			out.Keywords = append(out.Keywords, k)
		}
	}
	for _, r := range g.Relations {
		if !r.Touches(id) {
			out.Relations = append(out.Relations, r)
		}
	}
	return out
}

// Neighbors returns the distinct neighbour ids of every known keyword.
// Unknown endpoints and self-loops are ignored.
func Neighbors(g Graph) map[string][]string {
	idx := g.Index()
	sets := make(map[string]map[string]bool, len(g.Keywords))
	for _, k := range g.Keywords {
		sets[k.ID] = map[string]bool{}
	}
	for _, r := range g.Relations {
		if r.SelfLoop() {
			continue
		}
		_, okS := idx[r.Source]
		_, okT := idx[r.Target]
		if !okS || !okT {
			continue
		}
		sets[r.Source][r.Target] = true
		sets[r.Target][r.Source] = true
	}
	out := make(map[string][]string, len(sets))
	for _, k := range g.Keywords {
		ids := make([]string, 0, len(sets[k.ID]))
		// Keep neighbour order stable by walking keywords, not the map.
		for _, other := range g.Keywords {
			if sets[k.ID][other.ID] {
				ids = append(ids, other.ID)
			}
		}
		out[k.ID] = ids
	}
	return out
}
