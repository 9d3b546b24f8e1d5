// Package callgraph implements the CS call graph: nodes
// are reachable CSMethods, edges are CallEdges, added once and
// idempotently. It also implements the context-insensitive
// projection that collapses contexts. Grounded on gopta/go/pointer's
// GraphWCtx/Node/Edge (callgraph.go).
package callgraph

import (
	"sync"

	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/ir"
)

// Edge is a CallEdge: (csCallSite, csMethod, kind)
type Edge struct {
	Site   *csmodel.CSCallSite
	Callee *csmodel.CSMethod
	Kind   ir.InvokeKind
}

type edgeKey struct {
	site   *csmodel.CSCallSite
	callee *csmodel.CSMethod
}

// Graph is the on-the-fly, incrementally-built CS call graph.
type Graph struct {
	mu sync.Mutex

	reachable   map[*csmodel.CSMethod]bool
	reachOrder  []*csmodel.CSMethod
	edgeSet     map[edgeKey]*Edge
	edges       []*Edge
	outBySite   map[*csmodel.CSCallSite][]*Edge
	outByMethod map[*csmodel.CSMethod][]*Edge
	inByMethod  map[*csmodel.CSMethod][]*Edge
}

// NewGraph constructs an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		reachable:   make(map[*csmodel.CSMethod]bool),
		edgeSet:     make(map[edgeKey]*Edge),
		outBySite:   make(map[*csmodel.CSCallSite][]*Edge),
		outByMethod: make(map[*csmodel.CSMethod][]*Edge),
		inByMethod:  make(map[*csmodel.CSMethod][]*Edge),
	}
}

// AddReachable marks m reachable, returning true iff it was not already.
func (g *Graph) AddReachable(m *csmodel.CSMethod) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reachable[m] {
		return false
	}
	g.reachable[m] = true
	g.reachOrder = append(g.reachOrder, m)
	return true
}

// IsReachable reports whether m has been marked reachable.
func (g *Graph) IsReachable(m *csmodel.CSMethod) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachable[m]
}

// AddEdge adds a CallEdge if it is not already present, returning it and
// true; returns the existing edge and false if it was a duplicate.
func (g *Graph) AddEdge(site *csmodel.CSCallSite, callee *csmodel.CSMethod, kind ir.InvokeKind) (*Edge, bool) {
	key := edgeKey{site, callee}
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, exists := g.edgeSet[key]; exists {
		return e, false
	}
	e := &Edge{Site: site, Callee: callee, Kind: kind}
	g.edgeSet[key] = e
	g.edges = append(g.edges, e)
	g.outBySite[site] = append(g.outBySite[site], e)
	g.outByMethod[site.Caller] = append(g.outByMethod[site.Caller], e)
	g.inByMethod[callee] = append(g.inByMethod[callee], e)
	return e, true
}

// ReachableMethods returns every reachable CSMethod, in discovery order.
func (g *Graph) ReachableMethods() []*csmodel.CSMethod {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*csmodel.CSMethod, len(g.reachOrder))
	copy(out, g.reachOrder)
	return out
}

// Edges returns every CallEdge, in insertion order.
func (g *Graph) Edges() []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgesAt returns the edges recorded for a specific CSCallSite.
func (g *Graph) EdgesAt(site *csmodel.CSCallSite) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.outBySite[site]...)
}

// OutEdges returns m's outgoing call edges.
func (g *Graph) OutEdges(m *csmodel.CSMethod) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.outByMethod[m]...)
}

// InEdges returns m's incoming call edges.
func (g *Graph) InEdges(m *csmodel.CSMethod) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.inByMethod[m]...)
}

// CIEdge is one edge of the context-insensitive projection: source
// (non-CS) methods with contexts collapsed.
type CIEdge struct {
	Caller *ir.Method
	Callee *ir.Method
	Kind   ir.InvokeKind
}

// ProjectContextInsensitive collapses every CS call edge onto its
// underlying ir.Method pair, deduplicating.
func (g *Graph) ProjectContextInsensitive() []CIEdge {
	g.mu.Lock()
	edges := append([]*Edge(nil), g.edges...)
	g.mu.Unlock()

	seen := make(map[CIEdge]bool)
	var out []CIEdge
	for _, e := range edges {
		ci := CIEdge{Caller: e.Site.Caller.Method, Callee: e.Callee.Method, Kind: e.Kind}
		if seen[ci] {
			continue
		}
		seen[ci] = true
		out = append(out, ci)
	}
	return out
}
