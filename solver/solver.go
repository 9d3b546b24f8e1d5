// Package solver implements the worklist fixed-point pointer-analysis
// engine: it translates reachable methods into pointer-flow-graph edges,
// propagates points-to deltas to a fixed point, resolves dispatch for
// virtual/interface/special/static calls, and drives the plug-in
// callbacks. Grounded on gopta/go/pointer's solveDefault difference-
// propagation loop (solve.go) and its instruction-dispatch table
// (analysis.go), adapted from ssa.Value/ssa.Instruction to this engine's
// own ir.Var/ir.Stmt abstractions.
package solver

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/o2lab/gopta2/callgraph"
	cscontext "github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/hierarchy"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/pts"
)

// Plugin implements any subset of the solver callbacks by embedding
// NoopPlugin and overriding only the methods it needs.
type Plugin interface {
	Name() string
	SetSolver(s *Solver)
	OnStart()
	OnFinish()
	HandleNewMethod(m *csmodel.CSMethod)
	HandleNewPointsToSet(v *csmodel.CSVar, delta *pts.Set)
	HandleNewCallEdge(e *callgraph.Edge)
}

// NoopPlugin is embedded by concrete plug-ins so they only need to
// override the callbacks they actually use.
type NoopPlugin struct{ solver *Solver }

func (p *NoopPlugin) SetSolver(s *Solver)                                    { p.solver = s }
func (p *NoopPlugin) Solver() *Solver                                        { return p.solver }
func (p *NoopPlugin) OnStart()                                               {}
func (p *NoopPlugin) OnFinish()                                              {}
func (p *NoopPlugin) HandleNewMethod(m *csmodel.CSMethod)                    {}
func (p *NoopPlugin) HandleNewPointsToSet(v *csmodel.CSVar, delta *pts.Set)  {}
func (p *NoopPlugin) HandleNewCallEdge(e *callgraph.Edge)                    {}

// Options configures solver behavior beyond the core algorithm.
type Options struct {
	// OnlyApp, when non-nil, restricts statement translation (and thus
	// further exploration) to methods for which it returns true; other
	// methods are marked reachable but treated as if they had no body.
	OnlyApp func(m *ir.Method) bool
	// TimeLimit bounds wall-clock solving time; zero means unlimited. On
	// expiry the run stops with a partial, sound-under-incompleteness
	// result rather than an error.
	TimeLimit time.Duration
}

type workItem struct {
	ptr   *pfg.Pointer
	delta *pts.Set
}

type instanceCallSite struct {
	invoke *ir.Invoke
	caller *csmodel.CSMethod
}

// Solver owns every data structure of one pointer-analysis run: the
// pointer-flow graph, CS element manager, heap model, context selector,
// class hierarchy, and CS call graph. It is single-threaded and not safe
// for concurrent use once Run has started.
type Solver struct {
	Hier hierarchy.Hierarchy
	Heap *heap.Model
	Sel  *cscontext.Selector
	Mgr  *csmodel.Manager
	PFG  *pfg.Graph
	CG   *callgraph.Graph

	opts    Options
	plugins []Plugin

	worklist []workItem

	instLoads     map[*csmodel.CSVar][]*ir.LoadField
	instStores    map[*csmodel.CSVar][]*ir.StoreField
	arrLoads      map[*csmodel.CSVar][]*ir.LoadArray
	arrStores     map[*csmodel.CSVar][]*ir.StoreArray
	instanceCalls map[*csmodel.CSVar][]instanceCallSite

	// timedOut records whether the run stopped early because of TimeLimit,
	// surfaced by the result package as a partial-analysis flag.
	timedOut bool

	log *logrus.Logger
}

// New constructs a Solver over the given collaborators. log may be nil, in
// which case a default logrus.Logger (text formatter, Info level) is used.
func New(hier hierarchy.Hierarchy, heapModel *heap.Model, sel *cscontext.Selector, mgr *csmodel.Manager, pfgGraph *pfg.Graph, opts Options, log *logrus.Logger) *Solver {
	if log == nil {
		log = logrus.New()
	}
	return &Solver{
		Hier:          hier,
		Heap:          heapModel,
		Sel:           sel,
		Mgr:           mgr,
		PFG:           pfgGraph,
		CG:            callgraph.NewGraph(),
		opts:          opts,
		instLoads:     make(map[*csmodel.CSVar][]*ir.LoadField),
		instStores:    make(map[*csmodel.CSVar][]*ir.StoreField),
		arrLoads:      make(map[*csmodel.CSVar][]*ir.LoadArray),
		arrStores:     make(map[*csmodel.CSVar][]*ir.StoreArray),
		instanceCalls: make(map[*csmodel.CSVar][]instanceCallSite),
		log:           log,
	}
}

// RegisterPlugin appends p to the plug-in chain, in the order plug-ins
// will be invoked.
func (s *Solver) RegisterPlugin(p Plugin) {
	p.SetSolver(s)
	s.plugins = append(s.plugins, p)
}

// TimedOut reports whether the run above stopped early due to Options.TimeLimit.
func (s *Solver) TimedOut() bool { return s.timedOut }

func (s *Solver) push(p *pfg.Pointer, delta *pts.Set) {
	if delta == nil || delta.IsEmpty() {
		return
	}
	s.worklist = append(s.worklist, workItem{ptr: p, delta: delta})
}

// AddObj injects o into ptr's points-to set through the worklist
// discipline, for plug-ins that synthesize facts (constant-folded
// objects, reflective allocations) outside normal statement translation.
// Returns true iff the set changed.
func (s *Solver) AddObj(ptr *pfg.Pointer, o *csmodel.CSObj) bool {
	if ptr.PointsTo.Add(o) {
		s.push(ptr, singleton(o))
		return true
	}
	return false
}

// VarPointer returns the Pointer for v under ctx, for plug-ins that need
// to read or extend a variable's points-to set.
func (s *Solver) VarPointer(ctx *cscontext.Context, v *ir.Var) *pfg.Pointer {
	return s.PFG.VarPointer(s.Mgr.GetCSVar(ctx, v))
}

// MarkReachable exposes markReachable to plug-ins that discover new
// reachable methods outside normal call resolution (reflection, indy).
func (s *Solver) MarkReachable(m *csmodel.CSMethod) { s.markReachable(m) }

// LinkCall exposes link to plug-ins that synthesize call edges outside
// normal dispatch (invokedynamic/lambda targets, reflective invocation).
func (s *Solver) LinkCall(caller *csmodel.CSMethod, invoke *ir.Invoke, callee *ir.Method, calleeCtx *cscontext.Context, receiver *csmodel.CSObj) {
	s.link(caller, invoke, callee, calleeCtx, receiver)
}

// Run marks every entry method reachable under the empty context and
// drives the worklist to a fixed point, honoring ctx cancellation and
// Options.TimeLimit.
func (s *Solver) Run(ctx stdcontext.Context, entries []*ir.Method) error {
	for _, p := range s.plugins {
		p.OnStart()
	}

	var cancel stdcontext.CancelFunc
	if s.opts.TimeLimit > 0 {
		ctx, cancel = stdcontext.WithTimeout(ctx, s.opts.TimeLimit)
		defer cancel()
	}

	for _, m := range entries {
		s.markReachable(s.Mgr.GetCSMethod(s.Sel.Empty(), m))
	}

	for len(s.worklist) > 0 {
		select {
		case <-ctx.Done():
			s.timedOut = true
			s.log.WithField("remaining", len(s.worklist)).Warn("pointer analysis stopped: time limit reached")
			for _, p := range s.plugins {
				p.OnFinish()
			}
			return nil
		default:
		}

		item := s.worklist[0]
		s.worklist = s.worklist[1:]

		// item.delta was already merged into item.ptr.PointsTo by whoever
		// pushed it (allocateInto, AddObj, pfg.Graph.AddEdge's retroactive
		// propagation) — the worklist only carries the delta so it can be
		// propagated onward, not re-added here.
		for _, e := range item.ptr.Out {
			if d := s.PFG.Propagate(e, item.delta); d != nil {
				s.push(e.Dst, d)
			}
		}

		if item.ptr.Kind == pfg.KindVar {
			s.handleVarGrowth(item.ptr.Var, item.delta)
		}
	}

	for _, p := range s.plugins {
		p.OnFinish()
	}
	return nil
}

func (s *Solver) handleVarGrowth(v *csmodel.CSVar, actual *pts.Set) {
	for _, ld := range s.instLoads[v] {
		s.resolveInstanceLoad(v, ld, actual)
	}
	for _, st := range s.instStores[v] {
		s.resolveInstanceStore(v, st, actual)
	}
	for _, ld := range s.arrLoads[v] {
		s.resolveArrayLoad(v, ld, actual)
	}
	for _, st := range s.arrStores[v] {
		s.resolveArrayStore(v, st, actual)
	}
	for _, site := range s.instanceCalls[v] {
		s.resolveInstanceCall(v, site, actual)
	}

	for _, p := range s.plugins {
		p.HandleNewPointsToSet(v, actual)
	}
}

func (s *Solver) resolveInstanceLoad(base *csmodel.CSVar, ld *ir.LoadField, actual *pts.Set) {
	x := s.PFG.VarPointer(s.Mgr.GetCSVar(base.Ctx, ld.LHS))
	actual.Iterate(func(o *csmodel.CSObj) {
		fp := s.PFG.InstanceFieldPointer(s.Mgr.GetInstanceField(o, ld.Field))
		_, diff, _ := s.PFG.AddEdge(fp, x, pfg.InstanceLoad, nil)
		s.push(x, diff)
	})
}

func (s *Solver) resolveInstanceStore(base *csmodel.CSVar, st *ir.StoreField, actual *pts.Set) {
	rhs := s.PFG.VarPointer(s.Mgr.GetCSVar(base.Ctx, st.RHS))
	actual.Iterate(func(o *csmodel.CSObj) {
		fp := s.PFG.InstanceFieldPointer(s.Mgr.GetInstanceField(o, st.Field))
		_, diff, _ := s.PFG.AddEdge(rhs, fp, pfg.InstanceStore, nil)
		s.push(fp, diff)
	})
}

func (s *Solver) resolveArrayLoad(base *csmodel.CSVar, ld *ir.LoadArray, actual *pts.Set) {
	x := s.PFG.VarPointer(s.Mgr.GetCSVar(base.Ctx, ld.LHS))
	actual.Iterate(func(o *csmodel.CSObj) {
		ap := s.PFG.ArrayIndexPointer(s.Mgr.GetArrayIndex(o))
		_, diff, _ := s.PFG.AddEdge(ap, x, pfg.ArrayLoad, nil)
		s.push(x, diff)
	})
}

func (s *Solver) resolveArrayStore(base *csmodel.CSVar, st *ir.StoreArray, actual *pts.Set) {
	rhs := s.PFG.VarPointer(s.Mgr.GetCSVar(base.Ctx, st.RHS))
	actual.Iterate(func(o *csmodel.CSObj) {
		ap := s.PFG.ArrayIndexPointer(s.Mgr.GetArrayIndex(o))
		_, diff, _ := s.PFG.AddEdge(rhs, ap, pfg.ArrayStore, nil)
		s.push(ap, diff)
	})
}

func (s *Solver) resolveInstanceCall(base *csmodel.CSVar, site instanceCallSite, actual *pts.Set) {
	invoke := site.invoke
	actual.Iterate(func(o *csmodel.CSObj) {
		var callee *ir.Method
		switch invoke.Kind {
		case ir.InvokeSpecial:
			callee, _ = s.Hier.Resolve(invoke.Callee.DeclType, invoke.Callee.Subsignature)
		default: // InvokeVirtual, InvokeInterface, InvokeOther
			callee, _ = s.Hier.Resolve(o.Obj.Type, invoke.Callee.Subsignature)
		}
		if callee == nil {
			s.log.WithFields(logrus.Fields{
				"receiverType": o.Obj.Type,
				"signature":    invoke.Callee.Subsignature,
			}).Debug("dispatch failure: no implementation found")
			return
		}
		calleeCtx := s.Sel.SelectCallContext(cscontext.CallInfo{
			CallerContext:        base.Ctx,
			CallSiteID:           siteID(invoke),
			ReceiverObjID:        fmt.Sprintf("#%d", o.Index()),
			ReceiverObjContext:   o.Ctx,
			ReceiverType:         o.Obj.Type.String(),
			CalleeIsCtorOrStatic: callee.Constructor,
		})
		s.link(site.caller, invoke, callee, calleeCtx, o)
	})
}

// markReachable adds m to the call graph's reachable set (a no-op if it
// already was) and, on first addition, translates its body into PFG edges
// and initial facts, then notifies handleNewMethod plug-ins.
func (s *Solver) markReachable(m *csmodel.CSMethod) {
	if !s.CG.AddReachable(m) {
		return
	}

	if !m.Method.HasCFG {
		s.log.WithField("method", m.Method.Signature).Warn("reachable method has no IR; treated as an empty body")
	} else if s.opts.OnlyApp != nil && !s.opts.OnlyApp(m.Method) {
		s.log.WithField("method", m.Method.Signature).Debug("method outside application scope; skipping body translation")
	} else {
		for _, stmt := range m.Method.Body {
			s.translate(m, stmt)
		}
	}

	for _, p := range s.plugins {
		p.HandleNewMethod(m)
	}
}

func (s *Solver) translate(m *csmodel.CSMethod, stmt ir.Stmt) {
	switch st := stmt.(type) {
	case *ir.New:
		obj := s.Heap.Allocation(st, st.Type)
		s.allocateInto(m, st.LHS, obj, st)

	case *ir.NewArray:
		s.translateNewArray(m, st)

	case *ir.LoadConst:
		s.translateLoadConst(m, st)

	case *ir.Assign:
		s.addVarEdge(m.Ctx, st.RHS, m.Ctx, st.LHS, pfg.LocalAssign, st.LHS.Type)

	case *ir.Cast:
		s.addVarEdge(m.Ctx, st.RHS, m.Ctx, st.LHS, pfg.Cast, st.Type)

	case *ir.LoadField:
		if st.Base == nil {
			sf := s.PFG.StaticFieldPointer(s.Mgr.GetStaticField(st.Field))
			x := s.PFG.VarPointer(s.Mgr.GetCSVar(m.Ctx, st.LHS))
			_, diff, _ := s.PFG.AddEdge(sf, x, pfg.StaticLoad, nil)
			s.push(x, diff)
			return
		}
		baseVar := s.Mgr.GetCSVar(m.Ctx, st.Base)
		s.instLoads[baseVar] = append(s.instLoads[baseVar], st)

	case *ir.StoreField:
		if st.Base == nil {
			sf := s.PFG.StaticFieldPointer(s.Mgr.GetStaticField(st.Field))
			x := s.PFG.VarPointer(s.Mgr.GetCSVar(m.Ctx, st.RHS))
			_, diff, _ := s.PFG.AddEdge(x, sf, pfg.StaticStore, nil)
			s.push(sf, diff)
			return
		}
		baseVar := s.Mgr.GetCSVar(m.Ctx, st.Base)
		s.instStores[baseVar] = append(s.instStores[baseVar], st)

	case *ir.LoadArray:
		baseVar := s.Mgr.GetCSVar(m.Ctx, st.Base)
		s.arrLoads[baseVar] = append(s.arrLoads[baseVar], st)

	case *ir.StoreArray:
		baseVar := s.Mgr.GetCSVar(m.Ctx, st.Base)
		s.arrStores[baseVar] = append(s.arrStores[baseVar], st)

	case *ir.Invoke:
		s.translateInvoke(m, st)

	case *ir.MakeClosure:
		obj := s.Heap.Allocation(st, st.Type)
		s.allocateInto(m, st.LHS, obj, st)
		// Resolving Target and wiring captures into its parameters is the
		// Lambda plug-in's job (it needs a fully reachable method to scan
		// for MakeClosure statements).

	case *ir.Return:
		// Handled at call-linking time by scanning the callee's body.

	default:
		panic(errs.Internalf("unhandled statement type %T", stmt))
	}
}

// allocateInto adds obj (heap-contextualized under m) to lhs's points-to
// set and enqueues the resulting delta.
func (s *Solver) allocateInto(m *csmodel.CSMethod, lhs *ir.Var, obj *heap.Obj, site ir.Stmt) *csmodel.CSObj {
	heapCtx := s.Sel.SelectHeapContext(m.Ctx, siteID(site))
	csObj := s.Mgr.GetCSObj(heapCtx, obj)
	ptr := s.PFG.VarPointer(s.Mgr.GetCSVar(m.Ctx, lhs))
	if ptr.PointsTo.Add(csObj) {
		s.push(ptr, singleton(csObj))
	}
	return csObj
}

// translateLoadConst materializes st's constant directly into a
// heap.KindString or heap.KindClassLiteral object and adds it to LHS's
// points-to set, under the empty context: constants are shared program-wide
// rather than allocation-site- or call-context-qualified.
func (s *Solver) translateLoadConst(m *csmodel.CSMethod, st *ir.LoadConst) {
	var obj *heap.Obj
	if st.Class != nil {
		obj = s.Heap.ClassLiteral(st.Class)
	} else {
		obj = s.Heap.StringConstant(st.StringValue)
	}
	csObj := s.Mgr.GetCSObj(s.Sel.Empty(), obj)
	ptr := s.PFG.VarPointer(s.Mgr.GetCSVar(m.Ctx, st.LHS))
	if ptr.PointsTo.Add(csObj) {
		s.push(ptr, singleton(csObj))
	}
}

// translateNewArray allocates a chain of Dims nested array objects, all
// attributed to the same statement but at successively narrower element
// types, and links each level's ArrayIndex pointer to the next.
func (s *Solver) translateNewArray(m *csmodel.CSMethod, st *ir.NewArray) {
	dims := st.Dims
	if dims < 1 {
		dims = 1
	}
	levelType := st.Elem
	for i := 1; i < dims; i++ {
		levelType = &ir.Type{Name: levelType.String() + "[]", Elem: levelType}
	}
	outerType := &ir.Type{Name: levelType.String() + "[]", Elem: levelType}

	outerObj := s.Heap.Allocation(st, outerType)
	outerCS := s.allocateInto(m, st.LHS, outerObj, st)

	inner := outerCS
	curType := levelType
	for level := 1; level < dims; level++ {
		innerObj := s.Heap.Allocation(st, curType)
		heapCtx := s.Sel.SelectHeapContext(m.Ctx, siteID(st)+fmt.Sprintf("#%d", level))
		innerCS := s.Mgr.GetCSObj(heapCtx, innerObj)
		ap := s.PFG.ArrayIndexPointer(s.Mgr.GetArrayIndex(inner))
		if ap.PointsTo.Add(innerCS) {
			s.push(ap, singleton(innerCS))
		}
		inner = innerCS
		if curType.Elem != nil {
			curType = curType.Elem
		}
	}
}

func (s *Solver) translateInvoke(m *csmodel.CSMethod, invoke *ir.Invoke) {
	if invoke.Kind == ir.InvokeStatic {
		callee, ok := s.Hier.Resolve(invoke.Callee.DeclType, invoke.Callee.Subsignature)
		if !ok || callee == nil {
			s.log.WithField("signature", invoke.Callee.Subsignature).Debug("dispatch failure: static callee not found")
			return
		}
		calleeCtx := s.Sel.SelectCallContext(cscontext.CallInfo{
			CallerContext:        m.Ctx,
			CallSiteID:           siteID(invoke),
			CalleeIsCtorOrStatic: true,
		})
		s.link(m, invoke, callee, calleeCtx, nil)
		return
	}

	if invoke.Base == nil {
		s.log.WithField("signature", invoke.Callee.Subsignature).Debug("dispatch failure: instance call with no receiver")
		return
	}
	baseVar := s.Mgr.GetCSVar(m.Ctx, invoke.Base)
	s.instanceCalls[baseVar] = append(s.instanceCalls[baseVar], instanceCallSite{invoke: invoke, caller: m})
}

// link records a CallEdge for one resolved dispatch, marks the callee
// reachable, wires PARAMETER edges from arguments to parameters, passes
// the receiver object (if any) directly into the callee's `this` slot,
// and wires RETURN edges from every return statement in the callee back
// to the call's result variable.
func (s *Solver) link(caller *csmodel.CSMethod, invoke *ir.Invoke, callee *ir.Method, calleeCtx *cscontext.Context, receiver *csmodel.CSObj) {
	calleeCSMethod := s.Mgr.GetCSMethod(calleeCtx, callee)
	csSite := s.Mgr.GetCSCallSite(caller.Ctx, invoke, caller)
	edge, added := s.CG.AddEdge(csSite, calleeCSMethod, invoke.Kind)
	if added {
		for _, p := range s.plugins {
			p.HandleNewCallEdge(edge)
		}
	}

	s.markReachable(calleeCSMethod)

	for i, arg := range invoke.Args {
		if i >= len(callee.Params) {
			break
		}
		s.addVarEdge(caller.Ctx, arg, calleeCtx, callee.Params[i], pfg.Parameter, callee.Params[i].Type)
	}

	if receiver != nil && callee.This != nil {
		thisPtr := s.PFG.VarPointer(s.Mgr.GetCSVar(calleeCtx, callee.This))
		if thisPtr.PointsTo.Add(receiver) {
			s.push(thisPtr, singleton(receiver))
		}
	}

	if invoke.LHS != nil {
		for _, stmt := range callee.Body {
			if ret, ok := stmt.(*ir.Return); ok && ret.Var != nil {
				s.addVarEdge(calleeCtx, ret.Var, caller.Ctx, invoke.LHS, pfg.Return, invoke.LHS.Type)
			}
		}
	}
}

func (s *Solver) addVarEdge(fromCtx *cscontext.Context, fromVar *ir.Var, toCtx *cscontext.Context, toVar *ir.Var, kind pfg.EdgeKind, filter *ir.Type) {
	src := s.PFG.VarPointer(s.Mgr.GetCSVar(fromCtx, fromVar))
	dst := s.PFG.VarPointer(s.Mgr.GetCSVar(toCtx, toVar))
	_, diff, _ := s.PFG.AddEdge(src, dst, kind, filter)
	s.push(dst, diff)
}

// singleton builds a one-element *pts.Set without going through a
// Manager-backed resolver lookup; used for facts (allocation, receiver
// binding) the solver already knows the identity of.
func singleton(o *csmodel.CSObj) *pts.Set {
	d := pts.New(singletonResolver{o})
	d.Add(o)
	return d
}

// singletonResolver resolves the only id a singleton set can hold back to
// its object, so iterating the set needs no Manager.
type singletonResolver struct{ o *csmodel.CSObj }

func (r singletonResolver) ObjByID(int) *csmodel.CSObj { return r.o }

// siteID derives a stable, per-statement identity string for context
// construction from the "method signature#ordinal" token
// ir.Method.AssignSites assigned s, rather than s's process-local address —
// context parts built from it must stay identical across separate runs
// over the same program.
func siteID(s ir.Stmt) string {
	if sited, ok := s.(ir.Sited); ok {
		return sited.SiteToken()
	}
	return s.String()
}
