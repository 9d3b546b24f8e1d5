package plugin

import (
	"strings"

	"github.com/o2lab/gopta2/callgraph"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/pts"
	"github.com/o2lab/gopta2/solver"
)

// TaintConfig is the taint source/sink/transfer specification, loaded from
// YAML by config.LoadTaintConfig, reusing the package/method-list shape
// go_tools/go/pointer/callback.go already parses a callback.yml into
// (CallBack/CallBackCfg/Method), rebound here to taint semantics instead
// of a generic callback registry.
type TaintConfig struct {
	Sources   []MethodMatch   `yaml:"sources"`
	Sinks     []SinkMatch     `yaml:"sinks"`
	Transfers []TransferMatch `yaml:"transfers"`
}

// MethodMatch identifies a method by a substring of its fully-qualified
// signature, the same loose matching HandleNewCallEdge already does for
// the MethodType and Reflection plug-ins.
type MethodMatch struct {
	Signature string `yaml:"signature"`
}

// SinkMatch is a sink method plus which argument position receives
// untrusted data.
type SinkMatch struct {
	Signature string `yaml:"signature"`
	ArgIndex  int    `yaml:"argindex"`
}

// TransferMatch is a method that forwards taint from one argument into its
// return value (e.g. a sanitizer that fails to sanitize, or a wrapper).
type TransferMatch struct {
	Signature string `yaml:"signature"`
	FromArg   int    `yaml:"fromarg"`
}

// TaintFlow is one detected source-to-sink flow, surfaced by the result
// package under its "Taint" named sub-result.
type TaintFlow struct {
	Source   string
	Sink     string
	CallSite string
}

func (f TaintFlow) String() string {
	return "TaintFlow{" + f.Source + " -> " + f.Sink + " @ " + f.CallSite + "}"
}

type sinkWatch struct {
	sinkSig string
	site    string
}

type transferWatch struct {
	result *csmodel.CSVar
}

// Taint tracks configured sources and sinks by injecting a synthetic
// heap.KindTaint marker into a source call's result pointer and watching
// for that marker to reach a registered sink argument through ordinary
// PFG propagation; the solver core never needs to know taint exists.
type Taint struct {
	solver.NoopPlugin

	cfg TaintConfig

	argSinks     map[*csmodel.CSVar][]sinkWatch
	argTransfers map[*csmodel.CSVar][]transferWatch

	Flows []TaintFlow
}

func NewTaint(cfg TaintConfig) *Taint {
	return &Taint{
		cfg:          cfg,
		argSinks:     make(map[*csmodel.CSVar][]sinkWatch),
		argTransfers: make(map[*csmodel.CSVar][]transferWatch),
	}
}

func (p *Taint) Name() string { return "Taint" }

func (p *Taint) HandleNewCallEdge(e *callgraph.Edge) {
	sig := e.Callee.Method.Signature
	invoke := e.Site.Site
	caller := e.Site.Caller
	s := p.Solver()

	for _, src := range p.cfg.Sources {
		if !strings.Contains(sig, src.Signature) || invoke.LHS == nil {
			continue
		}
		resultPtr := s.VarPointer(caller.Ctx, invoke.LHS)
		marker := s.Heap.TaintMarker(src.Signature)
		s.AddObj(resultPtr, s.Mgr.GetCSObj(s.Sel.Empty(), marker))
	}

	for _, sink := range p.cfg.Sinks {
		if !strings.Contains(sig, sink.Signature) || sink.ArgIndex >= len(invoke.Args) {
			continue
		}
		argPtr := s.VarPointer(caller.Ctx, invoke.Args[sink.ArgIndex])
		watch := sinkWatch{sinkSig: sink.Signature, site: invoke.String()}
		p.argSinks[argPtr.Var] = append(p.argSinks[argPtr.Var], watch)
		p.scanForTaint(argPtr.PointsTo, watch)
	}

	for _, tr := range p.cfg.Transfers {
		if !strings.Contains(sig, tr.Signature) || tr.FromArg >= len(invoke.Args) || invoke.LHS == nil {
			continue
		}
		argPtr := s.VarPointer(caller.Ctx, invoke.Args[tr.FromArg])
		resultPtr := s.VarPointer(caller.Ctx, invoke.LHS)
		p.argTransfers[argPtr.Var] = append(p.argTransfers[argPtr.Var], transferWatch{result: resultPtr.Var})
		p.forwardTaint(argPtr.PointsTo, resultPtr)
	}
}

func (p *Taint) HandleNewPointsToSet(v *csmodel.CSVar, delta *pts.Set) {
	for _, w := range p.argSinks[v] {
		p.scanForTaint(delta, w)
	}
	if watches := p.argTransfers[v]; len(watches) > 0 {
		s := p.Solver()
		delta.Iterate(func(o *csmodel.CSObj) {
			if o.Obj.Kind != heap.KindTaint {
				return
			}
			for _, w := range watches {
				s.AddObj(s.PFG.VarPointer(w.result), o)
			}
		})
	}
}

func (p *Taint) scanForTaint(set *pts.Set, w sinkWatch) {
	set.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind != heap.KindTaint {
			return
		}
		p.Flows = append(p.Flows, TaintFlow{
			Source:   o.Obj.TaintLabel,
			Sink:     w.sinkSig,
			CallSite: w.site,
		})
	})
}

func (p *Taint) forwardTaint(set *pts.Set, resultPtr *pfg.Pointer) {
	set.Iterate(func(o *csmodel.CSObj) {
		if o.Obj.Kind != heap.KindTaint {
			return
		}
		p.Solver().AddObj(resultPtr, o)
	})
}
