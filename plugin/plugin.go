// Package plugin implements the built-in solver plug-ins: MethodType
// constant folding, invokedynamic/lambda edge synthesis, reflection
// pattern modelling, taint-flow tracking, and end-of-run statistics
// logging. Every plug-in embeds solver.NoopPlugin and overrides only the
// callbacks it uses.
package plugin

import (
	"github.com/sirupsen/logrus"

	"github.com/o2lab/gopta2/solver"
)

// Stat identifies one solver-lifecycle counter tracked by ResultProcessor.
type Stat int

const (
	StatReachableMethods Stat = iota
	StatCallEdges
	StatVars
	StatPointsToPairs
	statCount
)

var statName = map[Stat]string{
	StatReachableMethods: "Reachable methods",
	StatCallEdges:        "Call edges",
	StatVars:             "CS variables",
	StatPointsToPairs:    "Points-to pairs",
}

// ResultProcessor logs solver statistics when the run finishes.
type ResultProcessor struct {
	solver.NoopPlugin
	log *logrus.Logger
}

// NewResultProcessor returns a ResultProcessor logging through log (or a
// default logrus.Logger if nil).
func NewResultProcessor(log *logrus.Logger) *ResultProcessor {
	if log == nil {
		log = logrus.New()
	}
	return &ResultProcessor{log: log}
}

func (p *ResultProcessor) Name() string { return "ResultProcessor" }

func (p *ResultProcessor) OnFinish() {
	s := p.Solver()
	counts := map[Stat]int{
		StatReachableMethods: len(s.CG.ReachableMethods()),
		StatCallEdges:        len(s.CG.Edges()),
	}
	vars := 0
	pairs := 0
	for _, ptr := range s.PFG.Vars() {
		vars++
		pairs += ptr.PointsTo.Len()
	}
	counts[StatVars] = vars
	counts[StatPointsToPairs] = pairs

	p.log.Info("------ pointer analysis stats ------")
	for i := 0; i < int(statCount); i++ {
		st := Stat(i)
		p.log.Infof("  %-24s: %8d", statName[st], counts[st])
	}
	if s.TimedOut() {
		p.log.Warn("  (partial: time limit reached)")
	}
	p.log.Info("-------------------------------------")
}
