package plugin

import (
	cscontext "github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/solver"
)

// Lambda resolves the bootstrap target of every closure/lambda creation
// site in a newly-reachable method and synthesizes a direct call edge to
// it, carrying the closure's captures as arguments — the invokedynamic
// analog of a direct call, since the target is fixed at the creation site
// rather than resolved through virtual dispatch on the closure object.
type Lambda struct {
	solver.NoopPlugin
}

func NewLambda() *Lambda { return &Lambda{} }

func (p *Lambda) Name() string { return "Lambda" }

func (p *Lambda) HandleNewMethod(m *csmodel.CSMethod) {
	if !m.Method.HasCFG {
		return
	}
	s := p.Solver()
	for _, stmt := range m.Method.Body {
		mc, ok := stmt.(*ir.MakeClosure)
		if !ok {
			continue
		}
		target, found := s.Hier.Resolve(mc.Target.DeclType, mc.Target.Subsignature)
		if !found || target == nil {
			continue
		}
		invoke := &ir.Invoke{
			Base:   nil,
			Callee: mc.Target,
			Args:   mc.Captures,
			Kind:   ir.InvokeOther,
		}
		calleeCtx := s.Sel.SelectCallContext(cscontext.CallInfo{
			CallerContext:        m.Ctx,
			CallSiteID:           mc.Target.String(),
			CalleeIsCtorOrStatic: true,
		})
		s.LinkCall(m, invoke, target, calleeCtx, nil)
	}
}
