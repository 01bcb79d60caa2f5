package keyword

import (
	"math"

	"gonum.org/v1/gonum/graph/simple"
)

// TopLevelRatio is the fraction of the maximum degree a keyword must reach
// to be classified as top-level.
const TopLevelRatio = 0.7

// Node is a keyword annotated with its derived role and degree.
type Node struct {
	Keyword
	Role   Role `json:"role"`
	Degree int  `json:"degree"`
}

// Threshold returns the minimum degree for a top-level keyword given the
// graph's maximum degree. It never drops below 1.
func Threshold(maxDegree int) int {
	t := int(math.Ceil(float64(maxDegree) * TopLevelRatio))
	if t < 1 {
		return 1
	}
	return t
}

// Classify tags every keyword with its degree and structural role. The
// output preserves the input keyword order. Relations that are self-loops,
// duplicates, or reference unknown keywords do not contribute to degrees.
func Classify(g Graph) []Node {
	ug := adjacency(g)

	degrees := make([]int, len(g.Keywords))
	maxDegree := 0
	for i := range g.Keywords {
		degrees[i] = ug.From(int64(i)).Len()
		if degrees[i] > maxDegree {
			maxDegree = degrees[i]
		}
	}
	threshold := Threshold(maxDegree)

	top := make([]bool, len(g.Keywords))
	for i, d := range degrees {
		top[i] = d > 0 && d >= threshold
	}

	nodes := make([]Node, len(g.Keywords))
	for i, k := range g.Keywords {
		n := Node{Keyword: k, Degree: degrees[i]}
		switch {
		case top[i]:
			n.Role = RoleTopLevel
		case degrees[i] == 0:
			n.Role = RoleIsolated
		case touchesTop(ug, i, top):
			n.Role = RoleConnected
		default:
			n.Role = RoleSecondary
		}
		nodes[i] = n
	}
	return nodes
}

func touchesTop(ug *simple.UndirectedGraph, i int, top []bool) bool {
	it := ug.From(int64(i))
	for it.Next() {
		if top[it.Node().ID()] {
			return true
		}
	}
	return false
}

// adjacency builds a simple undirected graph whose node ids are keyword
// positions. simple.UndirectedGraph collapses parallel edges; self loops are
// skipped because SetEdge panics on them. A duplicated keyword id resolves to
// its first position.
func adjacency(g Graph) *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	ids := make(map[string]int64, len(g.Keywords))
	for i, k := range g.Keywords {
		ug.AddNode(simple.Node(int64(i)))
		if _, dup := ids[k.ID]; !dup {
			ids[k.ID] = int64(i)
		}
	}
	for _, r := range g.Relations {
		s, okS := ids[r.Source]
		t, okT := ids[r.Target]
		if !okS || !okT || s == t {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(s), T: simple.Node(t)})
	}
	return ug
}

// Counts tallies classified nodes per role.
func Counts(nodes []Node) map[Role]int {
	out := make(map[Role]int, len(Roles))
	for _, n := range nodes {
		out[n.Role]++
	}
	return out
}
