// Package pfg implements the pointer-flow graph: a
// directed graph of Pointer nodes carrying typed PFGEdges that propagate
// points-to sets. It is grounded on gopta/go/pointer's node/solverState
// pair (analysis.go: "node.solve.copyTo" is exactly a LOCAL_ASSIGN edge
// list), with incremental add-and-dedup construction in the same style as
// callgraph.Graph.
package pfg

import (
	"fmt"

	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pts"
)

// EdgeKind is one of the ten propagation-edge kinds
type EdgeKind int

const (
	LocalAssign EdgeKind = iota
	Cast
	StaticLoad
	StaticStore
	InstanceLoad
	InstanceStore
	ArrayLoad
	ArrayStore
	Parameter
	Return
)

func (k EdgeKind) String() string {
	return [...]string{
		"LOCAL_ASSIGN", "CAST", "STATIC_LOAD", "STATIC_STORE",
		"INSTANCE_LOAD", "INSTANCE_STORE", "ARRAY_LOAD", "ARRAY_STORE",
		"PARAMETER", "RETURN",
	}[k]
}

// PointerKind discriminates the four Pointer variants
type PointerKind int

const (
	KindVar PointerKind = iota
	KindStaticField
	KindInstanceField
	KindArrayIndex
)

// Pointer is the discriminated union CSVar(ctx,var) | StaticField(field) |
// InstanceField(CSObj,field) | ArrayIndex(CSObj), plus its
// mutable points-to set and outgoing edge list.
type Pointer struct {
	id   int
	Kind PointerKind

	Var    *csmodel.CSVar
	Static *csmodel.StaticField
	Field  *csmodel.InstanceField
	Array  *csmodel.ArrayIndex

	PointsTo *pts.Set
	Out      []*Edge
}

func (p *Pointer) Index() int { return p.id }

func (p *Pointer) String() string {
	switch p.Kind {
	case KindVar:
		return p.Var.String()
	case KindStaticField:
		return p.Static.String()
	case KindInstanceField:
		return p.Field.String()
	case KindArrayIndex:
		return p.Array.String()
	default:
		return "?"
	}
}

// DeclaredType returns the pointer's static type; for a variable this is
// the type the solver filters LOCAL_ASSIGN edges into it by.
func (p *Pointer) DeclaredType() *ir.Type {
	switch p.Kind {
	case KindVar:
		return p.Var.Var.Type
	case KindStaticField:
		return p.Static.Field.Type
	case KindInstanceField:
		return p.Field.Field.Type
	case KindArrayIndex:
		if et := p.Array.Base.Obj.Type; et != nil {
			return et.Elem
		}
		return nil
	default:
		return nil
	}
}

// Edge is a directed, optionally type-filtered PFG edge. A nil Filter propagates unconditionally.
type Edge struct {
	Src, Dst *Pointer
	Kind     EdgeKind
	Filter   *ir.Type
}

func (e *Edge) String() string {
	if e.Filter == nil {
		return fmt.Sprintf("%s --%s--> %s", e.Src, e.Kind, e.Dst)
	}
	return fmt.Sprintf("%s --%s[%s]--> %s", e.Src, e.Kind, e.Filter, e.Dst)
}

type edgeKey struct {
	src, dst *Pointer
	kind     EdgeKind
	filter   *ir.Type
}

// TypeAssignable reports whether an object of type ot may flow through a
// filter of type ft. It is supplied by the embedder (normally
// hierarchy.Hierarchy.IsSubtype) so this package does not need to import
// package hierarchy.
type TypeAssignable func(ot, ft *ir.Type) bool

// Graph is the pointer-flow graph: it owns every Pointer node (one per
// interned CSVar/StaticField/InstanceField/ArrayIndex) and every Edge
// between them.
type Graph struct {
	objResolver interface {
		ObjByID(id int) *csmodel.CSObj
	}
	assignable TypeAssignable

	varPtrs    map[*csmodel.CSVar]*Pointer
	staticPtrs map[*csmodel.StaticField]*Pointer
	fieldPtrs  map[*csmodel.InstanceField]*Pointer
	arrPtrs    map[*csmodel.ArrayIndex]*Pointer

	nextID int

	edges map[edgeKey]*Edge
}

// objResolver is satisfied by *csmodel.Manager.
type objResolver interface {
	ObjByID(id int) *csmodel.CSObj
}

// NewGraph constructs an empty Graph. mgr resolves dense object ids back
// to CSObj (pts.Set's requirement); assignable implements the type-filter
// rule above.
func NewGraph(mgr objResolver, assignable TypeAssignable) *Graph {
	return &Graph{
		objResolver: mgr,
		assignable:  assignable,
		varPtrs:     make(map[*csmodel.CSVar]*Pointer),
		staticPtrs:  make(map[*csmodel.StaticField]*Pointer),
		fieldPtrs:   make(map[*csmodel.InstanceField]*Pointer),
		arrPtrs:     make(map[*csmodel.ArrayIndex]*Pointer),
		edges:       make(map[edgeKey]*Edge),
	}
}

func (g *Graph) newPointer(kind PointerKind) *Pointer {
	p := &Pointer{id: g.nextID, Kind: kind, PointsTo: pts.New(g.objResolver)}
	g.nextID++
	return p
}

// VarPointer returns the (get-or-create) Pointer for v.
func (g *Graph) VarPointer(v *csmodel.CSVar) *Pointer {
	if p, ok := g.varPtrs[v]; ok {
		return p
	}
	p := g.newPointer(KindVar)
	p.Var = v
	g.varPtrs[v] = p
	return p
}

// StaticFieldPointer returns the (get-or-create) Pointer for f.
func (g *Graph) StaticFieldPointer(f *csmodel.StaticField) *Pointer {
	if p, ok := g.staticPtrs[f]; ok {
		return p
	}
	p := g.newPointer(KindStaticField)
	p.Static = f
	g.staticPtrs[f] = p
	return p
}

// InstanceFieldPointer returns the (get-or-create) Pointer for f.
func (g *Graph) InstanceFieldPointer(f *csmodel.InstanceField) *Pointer {
	if p, ok := g.fieldPtrs[f]; ok {
		return p
	}
	p := g.newPointer(KindInstanceField)
	p.Field = f
	g.fieldPtrs[f] = p
	return p
}

// ArrayIndexPointer returns the (get-or-create) Pointer for a. Because a
// is keyed only by its owning CSObj, this is well defined even for a
// zero-length array allocation: the pointer exists
// and is queryable regardless of the allocation's runtime length.
func (g *Graph) ArrayIndexPointer(a *csmodel.ArrayIndex) *Pointer {
	if p, ok := g.arrPtrs[a]; ok {
		return p
	}
	p := g.newPointer(KindArrayIndex)
	p.Array = a
	g.arrPtrs[a] = p
	return p
}

func (g *Graph) filtered(set *pts.Set, filter *ir.Type) *pts.Set {
	if filter == nil {
		return set
	}
	out := pts.New(g.objResolver)
	set.Iterate(func(o *csmodel.CSObj) {
		if g.assignable(o.Obj.Type, filter) {
			out.Add(o)
		}
	})
	return out
}

// AddEdge adds a PFG edge src --kind[filter]--> dst. Duplicate edges
// (same src, dst, kind, filter) are rejected and return ok == false.
// Otherwise it retroactively propagates src's current points-to set
// (filtered) into dst, and returns the newly-added
// difference so the caller (the solver) can enqueue it — nil if src had
// no matching objects yet.
func (g *Graph) AddEdge(src, dst *Pointer, kind EdgeKind, filter *ir.Type) (edge *Edge, diff *pts.Set, ok bool) {
	key := edgeKey{src, dst, kind, filter}
	if _, exists := g.edges[key]; exists {
		return nil, nil, false
	}
	e := &Edge{Src: src, Dst: dst, Kind: kind, Filter: filter}
	g.edges[key] = e
	src.Out = append(src.Out, e)

	if src.PointsTo.IsEmpty() {
		return e, nil, true
	}
	diff = dst.PointsTo.AddAllDiff(g.filtered(src.PointsTo, filter))
	return e, diff, true
}

// Propagate pushes delta (already added to src) along a single edge,
// applying the edge's type filter, and returns the newly-added portion at
// dst (nil if none) — the per-edge step of the solver's main loop.
func (g *Graph) Propagate(e *Edge, delta *pts.Set) *pts.Set {
	return e.Dst.PointsTo.AddAllDiff(g.filtered(delta, e.Filter))
}

// AllPointers returns every interned Pointer, unordered — callers that
// need a stable order (e.g. result.Dump) sort by String().
func (g *Graph) AllPointers() []*Pointer {
	out := make([]*Pointer, 0, len(g.varPtrs)+len(g.staticPtrs)+len(g.fieldPtrs)+len(g.arrPtrs))
	for _, p := range g.varPtrs {
		out = append(out, p)
	}
	for _, p := range g.staticPtrs {
		out = append(out, p)
	}
	for _, p := range g.fieldPtrs {
		out = append(out, p)
	}
	for _, p := range g.arrPtrs {
		out = append(out, p)
	}
	return out
}

// Vars, StaticFields, InstanceFields, ArrayIndexes expose each pointer
// family independently, for per-section dump rendering.
func (g *Graph) Vars() []*Pointer {
	out := make([]*Pointer, 0, len(g.varPtrs))
	for _, p := range g.varPtrs {
		out = append(out, p)
	}
	return out
}

func (g *Graph) StaticFields() []*Pointer {
	out := make([]*Pointer, 0, len(g.staticPtrs))
	for _, p := range g.staticPtrs {
		out = append(out, p)
	}
	return out
}

func (g *Graph) InstanceFields() []*Pointer {
	out := make([]*Pointer, 0, len(g.fieldPtrs))
	for _, p := range g.fieldPtrs {
		out = append(out, p)
	}
	return out
}

func (g *Graph) ArrayIndexes() []*Pointer {
	out := make([]*Pointer, 0, len(g.arrPtrs))
	for _, p := range g.arrPtrs {
		out = append(out, p)
	}
	return out
}
