// Package engine wires every collaborator package into one runnable
// analysis: IR provider, class hierarchy, context selector, heap model,
// pointer-flow graph, solver, plug-ins and result. Grounded on
// go_tools/go/pointer/analysis.go's Analyze(config *Config) entry point,
// adapted from a package-level function taking a pointer.Config into an
// explicit Config value with no package-level state, per the "no ambient
// World singleton" redesign: every run gets its own Config, Selector,
// Manager and Solver, so nothing here is safe or unsafe to call
// concurrently by accident — there simply is no shared mutable package
// state to race on.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	pconfig "github.com/o2lab/gopta2/config"
	pcontext "github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/hierarchy"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/plugin"
	"github.com/o2lab/gopta2/result"
	"github.com/o2lab/gopta2/solver"
)

// Config is everything one analysis run needs. Nothing here is retained
// as package state; construct a fresh Config per run.
type Config struct {
	Program   ir.Program
	Hierarchy hierarchy.Hierarchy
	Options   pconfig.Options

	// StringBuilderType and ExceptionBase resolve the merge-string-builders
	// and merge-exception-objects flags; nil disables the corresponding
	// merge regardless of the flag.
	StringBuilderType *ir.Type
	ExceptionBase     *ir.Type

	// AppScope, when Options.OnlyApp is set, decides whether a method is
	// in the application (vs. library) for reachability restriction.
	AppScope func(*ir.Method) bool

	Log *logrus.Logger
}

// Analyze runs one pointer analysis to completion (or until
// Options.TimeLimit expires) and returns its queryable Result.
func Analyze(ctx context.Context, cfg Config) (r *result.Result, err error) {
	if cfg.Program == nil {
		return nil, errs.Configf("no IR program supplied")
	}
	if cfg.Hierarchy == nil {
		return nil, errs.Configf("no class hierarchy supplied")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}

	defer func() {
		if p := recover(); p != nil {
			err = errs.Internalf("panic during analysis: %v", p)
		}
	}()

	ctxCfg, err := cfg.Options.ContextConfig()
	if err != nil {
		return nil, err
	}
	sel := pcontext.New(ctxCfg)

	heapPolicy := cfg.Options.HeapPolicy(cfg.StringBuilderType, cfg.ExceptionBase)
	heapModel := heap.NewModel(heapPolicy, cfg.Hierarchy)

	mgr := csmodel.NewManager()
	pfgGraph := pfg.NewGraph(mgr, cfg.Hierarchy.IsSubtype)

	solverOpts := cfg.Options.SolverOptions(cfg.AppScope)
	s := solver.New(cfg.Hierarchy, heapModel, sel, mgr, pfgGraph, solverOpts, log)

	s.RegisterPlugin(plugin.NewMethodType())
	s.RegisterPlugin(plugin.NewLambda())
	s.RegisterPlugin(plugin.NewReflection())

	var taintPlugin *plugin.Taint
	if cfg.Options.TaintConfigPath != "" {
		taintCfg, err := pconfig.LoadTaintConfig(cfg.Options.TaintConfigPath)
		if err != nil {
			return nil, err
		}
		taintPlugin = plugin.NewTaint(taintCfg)
		s.RegisterPlugin(taintPlugin)
	}

	rp := plugin.NewResultProcessor(log)
	s.RegisterPlugin(rp)

	entries := cfg.Program.EntryMethods()
	if len(entries) == 0 {
		return nil, errs.Configf("program declares no entry methods")
	}

	if err := s.Run(ctx, entries); err != nil {
		return nil, err
	}

	return result.New(s, taintPlugin), nil
}
