package plugin

import (
	"strings"

	"github.com/o2lab/gopta2/callgraph"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/solver"
)

// MethodType folds MethodType.methodType(...) factory calls into a single
// MethodType constant object when every argument points to a resolved
// ClassLiteral or MethodType constant, emitting the result into the
// call's result variable. It recognizes the two overloads this engine's
// IR exposes: methodType(returnClass) and methodType(returnClass, param)
// where param is either a class literal or an existing MethodType whose
// parameter list is spliced in whole.
type MethodType struct {
	solver.NoopPlugin
}

func NewMethodType() *MethodType { return &MethodType{} }

func (p *MethodType) Name() string { return "MethodType" }

func (p *MethodType) HandleNewCallEdge(e *callgraph.Edge) {
	sig := e.Callee.Method.Signature
	if !strings.Contains(sig, "MethodType.methodType") {
		return
	}
	invoke := e.Site.Site
	caller := e.Site.Caller
	if invoke.LHS == nil || len(invoke.Args) == 0 {
		return
	}

	s := p.Solver()
	resultPtr := s.VarPointer(caller.Ctx, invoke.LHS)
	returnClasses := classLiterals(s.VarPointer(caller.Ctx, invoke.Args[0]))

	switch len(invoke.Args) {
	case 1:
		for _, ret := range returnClasses {
			mt := s.Heap.MethodType(ret, nil)
			s.AddObj(resultPtr, s.Mgr.GetCSObj(s.Sel.Empty(), mt))
		}
	case 2:
		second := s.VarPointer(caller.Ctx, invoke.Args[1])
		for _, ret := range returnClasses {
			for _, param := range classLiterals(second) {
				mt := s.Heap.MethodType(ret, []*ir.Type{param})
				s.AddObj(resultPtr, s.Mgr.GetCSObj(s.Sel.Empty(), mt))
			}
			for _, params := range methodTypeParamLists(second) {
				mt := s.Heap.MethodType(ret, params)
				s.AddObj(resultPtr, s.Mgr.GetCSObj(s.Sel.Empty(), mt))
			}
		}
	}
}

func classLiterals(ptr *pfg.Pointer) []*ir.Type {
	var out []*ir.Type
	ptr.PointsTo.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind == heap.KindClassLiteral {
			out = append(out, o.Obj.LiteralType)
		}
	})
	return out
}

func methodTypeParamLists(ptr *pfg.Pointer) [][]*ir.Type {
	var out [][]*ir.Type
	ptr.PointsTo.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind == heap.KindMethodType {
			out = append(out, o.Obj.Params)
		}
	})
	return out
}
