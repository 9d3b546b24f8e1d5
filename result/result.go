// Package result is the read-only view a completed run exposes: every
// pointer family and its points-to set, the reachable-method and call-edge
// sets, and an extensible table of named sub-results (plug-ins publish
// into it, e.g. the Taint plug-in's flow list under the "Taint" key).
// Grounded on go_tools/go/pointer/api.go's Result/ResultWCtx, generalized
// from ssa.Value-keyed queries to this engine's own pointer families.
package result

import (
	"github.com/o2lab/gopta2/callgraph"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/plugin"
	"github.com/o2lab/gopta2/solver"
)

// Result is the queryable output of one analysis run. Its fields are
// read-only views over data the solver owned for the run's duration; the
// solver itself is discarded once Result is built.
type Result struct {
	PFG *pfg.Graph
	CG  *callgraph.Graph
	Mgr *csmodel.Manager

	// TimedOut reports whether the run stopped early because of
	// Options.TimeLimit rather than reaching a fixed point.
	TimedOut bool

	// Named holds extensible sub-results contributed by plug-ins,
	// keyed by plug-in name (e.g. "Taint" -> []plugin.TaintFlow).
	Named map[string]interface{}
}

// New builds a Result by snapshotting s's collaborators. Call it only
// after s.Run has returned. taint may be nil if the Taint plug-in was not
// registered.
func New(s *solver.Solver, taint *plugin.Taint) *Result {
	r := &Result{
		PFG:      s.PFG,
		CG:       s.CG,
		Mgr:      s.Mgr,
		TimedOut: s.TimedOut(),
		Named:    make(map[string]interface{}),
	}
	if taint != nil {
		flows := taint.Flows
		if flows == nil {
			flows = []plugin.TaintFlow{}
		}
		r.Named["Taint"] = flows
	}
	return r
}

// Variables, StaticFields, InstanceFields, ArrayIndexes expose each
// pointer family in the underlying PFG, unordered; callers needing a
// stable order (e.g. Dump) sort by String().
func (r *Result) Variables() []*pfg.Pointer      { return r.PFG.Vars() }
func (r *Result) StaticFields() []*pfg.Pointer   { return r.PFG.StaticFields() }
func (r *Result) InstanceFields() []*pfg.Pointer { return r.PFG.InstanceFields() }
func (r *Result) ArrayIndexes() []*pfg.Pointer   { return r.PFG.ArrayIndexes() }
func (r *Result) AllPointers() []*pfg.Pointer    { return r.PFG.AllPointers() }

// ReachableMethods returns every CSMethod the run proved reachable.
func (r *Result) ReachableMethods() []*csmodel.CSMethod { return r.CG.ReachableMethods() }

// CallEdges returns every CS call edge the run discovered.
func (r *Result) CallEdges() []*callgraph.Edge { return r.CG.Edges() }

// TaintFlows returns the taint flows found, or nil if the Taint plug-in
// was not registered for this run.
func (r *Result) TaintFlows() []plugin.TaintFlow {
	v, ok := r.Named["Taint"]
	if !ok {
		return nil
	}
	return v.([]plugin.TaintFlow)
}
