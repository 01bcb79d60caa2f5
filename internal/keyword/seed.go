package keyword

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed seed.toml
var seedTOML string

type graphFile struct {
	Keywords  []fileKeyword  `toml:"keyword"`
	Relations []fileRelation `toml:"relation"`
}

type fileKeyword struct {
	ID     string  `toml:"id"`
	Name   string  `toml:"name"`
	Weight float64 `toml:"weight"`
	Role   string  `toml:"role,omitempty"`
}

type fileRelation struct {
	Source string `toml:"source"`
	Target string `toml:"target"`
}

// Seed returns the built-in default graph.
func Seed() Graph {
	g, err := DecodeTOML(strings.NewReader(seedTOML))
	if err != nil {
		panic(fmt.Sprintf("keyword: embedded seed graph: %v", err))
	}
	return g
}

// DecodeTOML reads a graph from TOML with [[keyword]] and [[relation]]
// tables. Keywords without an id get a fresh one; relations may reference
// keywords by id or by name.
func DecodeTOML(r io.Reader) (Graph, error) {
	var f graphFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return Graph{}, fmt.Errorf("decoding graph toml: %w", err)
	}

	var g Graph
	for _, kw := range f.Keywords {
		if strings.TrimSpace(kw.Name) == "" && strings.TrimSpace(kw.ID) == "" {
			return Graph{}, fmt.Errorf("keyword entry without id or name")
		}
		k := New(kw.Name, kw.Weight)
		if kw.ID != "" {
			k.ID = kw.ID
		}
		if k.Name == "" {
			k.Name = k.ID
		}
		role, err := ParseRole(kw.Role)
		if err != nil {
			return Graph{}, fmt.Errorf("keyword %q: %w", k.Name, err)
		}
		k.RoleHint = role
		g.Keywords = append(g.Keywords, k)
	}

	for _, rel := range f.Relations {
		s, okS := g.Resolve(rel.Source)
		t, okT := g.Resolve(rel.Target)
		if !okS || !okT {
			return Graph{}, fmt.Errorf("relation %s-%s references an unknown keyword", rel.Source, rel.Target)
		}
		g.Relations = append(g.Relations, Relation{Source: s.ID, Target: t.ID})
	}

	g, _ = g.Clean()
	return g, nil
}

// EncodeTOML writes g in the format DecodeTOML reads.
func EncodeTOML(w io.Writer, g Graph) error {
	var f graphFile
	for _, k := range g.Keywords {
		f.Keywords = append(f.Keywords, fileKeyword{ID: k.ID, Name: k.Name, Weight: k.Weight, Role: k.RoleHint.String()})
	}
	for _, r := range g.Relations {
		f.Relations = append(f.Relations, fileRelation{Source: r.Source, Target: r.Target})
	}
	return toml.NewEncoder(w).Encode(f)
}
