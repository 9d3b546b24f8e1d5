package solver_test

import (
	"context"
	"testing"

	cscontext "github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/hierarchy"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/solver"
)

// harness wires the minimum collaborator set a solver.Solver needs, the
// same way engine.Analyze does, but exposed directly so tests can build
// fixtures by hand and inspect PFG/call-graph state after Run.
type harness struct {
	hier *hierarchy.InMemory
	sel  *cscontext.Selector
	mgr  *csmodel.Manager
	pfg  *pfg.Graph
	s    *solver.Solver
}

func newHarness() *harness {
	hier := hierarchy.NewInMemory()
	sel := cscontext.New(cscontext.Config{Policy: cscontext.ContextInsensitive})
	mgr := csmodel.NewManager()
	g := pfg.NewGraph(mgr, hier.IsSubtype)
	heapModel := heap.NewModel(heap.Policy{}, hier)
	s := solver.New(hier, heapModel, sel, mgr, g, solver.Options{}, nil)
	return &harness{hier: hier, sel: sel, mgr: mgr, pfg: g, s: s}
}

func (h *harness) run(t *testing.T, entries ...*ir.Method) {
	t.Helper()
	if err := h.s.Run(context.Background(), entries); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// TestZeroDimensionArrayAliasesStoredElement realizes seed test S1: a
// zero-dimension array allocation must still yield exactly one ArrayIndex
// pointer, and a value stored through it must be visible to a subsequent
// load through the same variable.
func TestZeroDimensionArrayAliasesStoredElement(t *testing.T) {
	h := newHarness()

	widgetType := &ir.Type{Name: "Widget"}
	arrType := &ir.Type{Name: "Widget[]", Elem: widgetType}

	arr := &ir.Var{Name: "arr", Type: arrType}
	elem := &ir.Var{Name: "e", Type: widgetType}
	loaded := &ir.Var{Name: "loaded", Type: widgetType}

	m := &ir.Method{
		Signature: "Main.run()V",
		HasCFG:    true,
		Body: []ir.Stmt{
			&ir.NewArray{LHS: arr, Elem: widgetType, Dims: 0},
			&ir.New{LHS: elem, Type: widgetType},
			&ir.StoreArray{Base: arr, RHS: elem},
			&ir.LoadArray{LHS: loaded, Base: arr},
		},
	}
	m.AssignSites()

	h.run(t, m)

	elemPtr := h.s.VarPointer(h.sel.Empty(), elem)
	loadedPtr := h.s.VarPointer(h.sel.Empty(), loaded)

	if elemPtr.PointsTo.Len() != 1 {
		t.Fatalf("elem points-to size = %d, want 1", elemPtr.PointsTo.Len())
	}
	if loadedPtr.PointsTo.Len() != 1 {
		t.Fatalf("loaded points-to size = %d, want 1 — a zero-dim array must still alias a stored element back through a load", loadedPtr.PointsTo.Len())
	}

	var stored, got *csmodel.CSObj
	elemPtr.PointsTo.Iterate(func(o *csmodel.CSObj) { stored = o })
	loadedPtr.PointsTo.Iterate(func(o *csmodel.CSObj) { got = o })
	if got != stored {
		t.Fatalf("loaded object %s does not alias the stored element %s", got, stored)
	}
}

// TestVirtualDispatchResolvesToMostDerivedOverride realizes seed test S3:
// a call to Collection.add on a receiver allocated as ArrayList must
// dispatch to ArrayList.add, not to an unrelated sibling override
// (LinkedList.add) or to any declared-type-based resolution.
func TestVirtualDispatchResolvesToMostDerivedOverride(t *testing.T) {
	h := newHarness()

	collectionType := h.hier.AddClass("Collection", nil)
	arrayListType := h.hier.AddClass("ArrayList", collectionType)
	linkedListType := h.hier.AddClass("LinkedList", collectionType)
	objectType := &ir.Type{Name: "Object"}

	const addSig = "add(Object)V"
	arrayListAdd := &ir.Method{
		Signature:    "ArrayList.add(Object)V",
		DeclClass:    arrayListType,
		Subsignature: addSig,
		Params:       []*ir.Var{{Name: "x", Type: objectType}},
		HasCFG:       true,
	}
	linkedListAdd := &ir.Method{
		Signature:    "LinkedList.add(Object)V",
		DeclClass:    linkedListType,
		Subsignature: addSig,
		Params:       []*ir.Var{{Name: "x", Type: objectType}},
		HasCFG:       true,
	}
	h.hier.AddMethod(arrayListType, arrayListAdd)
	h.hier.AddMethod(linkedListType, linkedListAdd)

	list := &ir.Var{Name: "list", Type: arrayListType}
	arg := &ir.Var{Name: "x", Type: objectType}
	invoke := &ir.Invoke{
		Base:   list,
		Callee: &ir.MethodRef{DeclType: collectionType, Subsignature: addSig},
		Args:   []*ir.Var{arg},
		Kind:   ir.InvokeVirtual,
	}

	main := &ir.Method{
		Signature: "Main.run()V",
		HasCFG:    true,
		Body: []ir.Stmt{
			&ir.New{LHS: list, Type: arrayListType},
			invoke,
		},
	}
	main.AssignSites()

	h.run(t, main)

	edges := h.s.CG.Edges()
	if len(edges) != 1 {
		t.Fatalf("call graph has %d edges, want 1", len(edges))
	}
	if edges[0].Callee.Method != arrayListAdd {
		t.Fatalf("dispatched to %s, want ArrayList.add — virtual dispatch must resolve by the receiver's allocated type, not the declared Collection type", edges[0].Callee.Method.Signature)
	}
}

// TestStaticFieldFlowsAcrossDeclaringAndInheritingMethods realizes seed
// test S4: a static field is a single shared pointer regardless of which
// class's method accesses it — a value stored by one method (as if from
// the declaring class's initializer) is visible to a load in an unrelated
// method (as if reached through a subclass), because ir.Field carries no
// separate identity per accessing class.
func TestStaticFieldFlowsAcrossDeclaringAndInheritingMethods(t *testing.T) {
	h := newHarness()

	baseType := &ir.Type{Name: "Base"}
	configType := &ir.Type{Name: "Config"}
	field := &ir.Field{Name: "F", DeclClass: baseType, Type: configType, Static: true}

	cfg := &ir.Var{Name: "c", Type: configType}
	storeMethod := &ir.Method{
		Signature: "Base.<clinit>()V",
		HasCFG:    true,
		Body: []ir.Stmt{
			&ir.New{LHS: cfg, Type: configType},
			&ir.StoreField{Field: field, RHS: cfg},
		},
	}
	storeMethod.AssignSites()

	loaded := &ir.Var{Name: "loaded", Type: configType}
	loadMethod := &ir.Method{
		Signature: "Derived.run()V",
		HasCFG:    true,
		Body: []ir.Stmt{
			&ir.LoadField{LHS: loaded, Field: field},
		},
	}
	loadMethod.AssignSites()

	h.run(t, storeMethod, loadMethod)

	loadedPtr := h.s.VarPointer(h.sel.Empty(), loaded)
	if loadedPtr.PointsTo.Len() != 1 {
		t.Fatalf("loaded points-to size = %d, want 1 — a static field's value must reach every accessor regardless of which class's method reads it", loadedPtr.PointsTo.Len())
	}
}

// TestParameterAndReturnEdgesFilterByDeclaredType covers the declared-type
// filter that PARAMETER and RETURN edges share, through its PARAMETER side:
// an argument whose allocated type is not assignable to the declared
// parameter type must not flow into the callee's parameter. The RETURN
// side is not exercised here.
func TestParameterAndReturnEdgesFilterByDeclaredType(t *testing.T) {
	h := newHarness()

	stringType := h.hier.AddClass("String", nil)
	widgetType := h.hier.AddClass("Widget", nil)

	const takeSig = "take(String)V"
	param := &ir.Var{Name: "p", Type: stringType}
	callee := &ir.Method{
		Signature:    "Widget.take(String)V",
		DeclClass:    widgetType,
		Subsignature: takeSig,
		Static:       true,
		HasCFG:       true,
		Params:       []*ir.Var{param},
	}
	h.hier.AddMethod(widgetType, callee)

	arg := &ir.Var{Name: "arg", Type: widgetType}
	invoke := &ir.Invoke{
		Callee: &ir.MethodRef{DeclType: widgetType, Subsignature: takeSig},
		Args:   []*ir.Var{arg},
		Kind:   ir.InvokeStatic,
	}

	main := &ir.Method{
		Signature: "Main.run()V",
		HasCFG:    true,
		Body: []ir.Stmt{
			&ir.New{LHS: arg, Type: widgetType},
			invoke,
		},
	}
	main.AssignSites()

	h.run(t, main)

	paramPtr := h.s.VarPointer(h.sel.Empty(), param)
	if paramPtr.PointsTo.Len() != 0 {
		t.Fatalf("param points-to size = %d, want 0 — a Widget argument must not flow into a String-typed parameter", paramPtr.PointsTo.Len())
	}
}
