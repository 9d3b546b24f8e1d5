package plugin

import (
	"strings"

	"github.com/o2lab/gopta2/callgraph"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/solver"
)

// Reflection models two of the reflective patterns spec implementations
// commonly special-case: Class.forName(String) — folding known string
// constants into the named ClassLiteral — and Class.newInstance() called
// on a variable whose points-to set already contains ClassLiterals,
// allocating an object of the named type into the call's result.
type Reflection struct {
	solver.NoopPlugin
}

func NewReflection() *Reflection { return &Reflection{} }

func (p *Reflection) Name() string { return "Reflection" }

func (p *Reflection) HandleNewCallEdge(e *callgraph.Edge) {
	sig := e.Callee.Method.Signature
	switch {
	case strings.Contains(sig, "Class.forName"):
		p.handleForName(e)
	case strings.Contains(sig, "Class.newInstance"):
		p.handleNewInstance(e)
	}
}

func (p *Reflection) handleForName(e *callgraph.Edge) {
	invoke := e.Site.Site
	caller := e.Site.Caller
	if invoke.LHS == nil || len(invoke.Args) == 0 {
		return
	}
	s := p.Solver()
	argPtr := s.VarPointer(caller.Ctx, invoke.Args[0])
	resultPtr := s.VarPointer(caller.Ctx, invoke.LHS)
	argPtr.PointsTo.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind != heap.KindString {
			return
		}
		cls, ok := s.Hier.ClassByName(o.Obj.StringValue)
		if !ok {
			return
		}
		lit := s.Heap.ClassLiteral(cls)
		s.AddObj(resultPtr, s.Mgr.GetCSObj(s.Sel.Empty(), lit))
	})
}

func (p *Reflection) handleNewInstance(e *callgraph.Edge) {
	invoke := e.Site.Site
	caller := e.Site.Caller
	if invoke.LHS == nil || invoke.Base == nil {
		return
	}
	s := p.Solver()
	basePtr := s.VarPointer(caller.Ctx, invoke.Base)
	resultPtr := s.VarPointer(caller.Ctx, invoke.LHS)
	basePtr.PointsTo.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind != heap.KindClassLiteral {
			return
		}
		heapCtx := s.Sel.SelectHeapContext(caller.Ctx, "reflect:"+o.Obj.LiteralType.String())
		obj := s.Heap.Allocation(invoke, o.Obj.LiteralType)
		s.AddObj(resultPtr, s.Mgr.GetCSObj(heapCtx, obj))
	})
}
