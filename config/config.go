// Package config assembles the options table into the concrete
// collaborator configs the engine's constructors take (context.Config,
// heap.Policy, solver.Options): a single explicit Options value threaded
// through the caller rather than package-level flag globals.
package config

import (
	"time"

	"io/ioutil"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"

	"github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/plugin"
	"github.com/o2lab/gopta2/solver"
)

// Options is the full set of user-facing knobs, corresponding one-to-one
// with the CLI flags cmd/pta registers.
type Options struct {
	CS                    string
	OnlyApp               bool
	MergeStringObjects    bool
	MergeStringBuilders   bool
	MergeExceptionObjects bool
	Dump                  bool
	DumpCI                bool
	Color                 bool
	ExpectedFile          string
	TaintConfigPath       string
	Plugins               []string
	TimeLimit             time.Duration
}

// Flags is the urfave/cli/v2 flag set for the options table; cmd/pta
// registers these directly on its App.
var Flags = []cli.Flag{
	&cli.StringFlag{Name: "cs", Value: "ci", Usage: "context sensitivity: ci, 1-call, 2-call, 1-obj, 2-obj, 1-type, 2-type, hybrid"},
	&cli.BoolFlag{Name: "only-app", Usage: "skip body translation for methods outside the application scope; takes effect only when the embedder supplies an application-scope predicate (cmd/pta supplies none)"},
	&cli.BoolFlag{Name: "merge-string-objects", Usage: "merge all String allocations into one object"},
	&cli.BoolFlag{Name: "merge-string-builders", Usage: "merge StringBuilder allocations by type"},
	&cli.BoolFlag{Name: "merge-exception-objects", Usage: "merge exception allocations by concrete type"},
	&cli.BoolFlag{Name: "dump", Usage: "emit a points-to dump"},
	&cli.BoolFlag{Name: "dump-ci", Usage: "emit a context-insensitive points-to dump"},
	&cli.BoolFlag{Name: "color", Usage: "colorize dump output"},
	&cli.StringFlag{Name: "expected-file", Usage: "path to an expected dump; enables comparison mode"},
	&cli.StringFlag{Name: "taint-config", Usage: "path to a taint source/sink/transfer YAML file"},
	&cli.StringSliceFlag{Name: "plugins", Usage: "plug-in names; accepted but not read: methodtype, lambda and reflection are always enabled, taint when taint-config is set"},
	&cli.DurationFlag{Name: "time-limit", Usage: "wall-clock limit; 0 = none"},
}

// FromCLI builds Options from a parsed cli.Context.
func FromCLI(c *cli.Context) Options {
	return Options{
		CS:                    c.String("cs"),
		OnlyApp:               c.Bool("only-app"),
		MergeStringObjects:    c.Bool("merge-string-objects"),
		MergeStringBuilders:   c.Bool("merge-string-builders"),
		MergeExceptionObjects: c.Bool("merge-exception-objects"),
		Dump:                  c.Bool("dump"),
		DumpCI:                c.Bool("dump-ci"),
		Color:                 c.Bool("color"),
		ExpectedFile:          c.String("expected-file"),
		TaintConfigPath:       c.String("taint-config"),
		Plugins:               c.StringSlice("plugins"),
		TimeLimit:             c.Duration("time-limit"),
	}
}

// ContextConfig resolves the "cs" option into a context.Config, failing
// with a KindConfig error on an unrecognised value.
func (o Options) ContextConfig() (context.Config, error) {
	policy, k, ok := context.ParsePolicy(o.CS)
	if !ok {
		return context.Config{}, errs.Configf("unrecognised context-sensitivity policy %q", o.CS)
	}
	return context.Config{Policy: policy, K: k}, nil
}

// HeapPolicy builds the heap merge policy. builderType and exceptionBase
// are the resolved String-builder and exception-base types the merge-*
// flags apply against; the caller (engine) supplies them from the class
// hierarchy since config has no hierarchy dependency of its own. Either
// may be nil, which disables the corresponding merge regardless of flag.
func (o Options) HeapPolicy(builderType, exceptionBase *ir.Type) heap.Policy {
	return heap.Policy{
		MergeStringObjects:    o.MergeStringObjects,
		MergeStringBuilders:   o.MergeStringBuilders && builderType != nil,
		StringBuilderType:     builderType,
		MergeExceptionObjects: o.MergeExceptionObjects && exceptionBase != nil,
		ExceptionBase:         exceptionBase,
	}
}

// SolverOptions builds solver.Options from o. onlyApp is the
// application-scope predicate the engine passes through from its caller
// (engine.Config.AppScope); it is ignored when OnlyApp is false.
func (o Options) SolverOptions(onlyApp func(*ir.Method) bool) solver.Options {
	opts := solver.Options{TimeLimit: o.TimeLimit}
	if o.OnlyApp {
		opts.OnlyApp = onlyApp
	}
	return opts
}

// LoadTaintConfig reads and validates a taint configuration file in the
// shape plugin.TaintConfig expects, grounded directly on
// go_tools/go/pointer/callback.go's DecodeYaml (ioutil.ReadFile +
// yaml.Unmarshal, fatal on either error at the caller's discretion).
func LoadTaintConfig(path string) (plugin.TaintConfig, error) {
	var cfg plugin.TaintConfig
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errs.Configf("reading taint config %q: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Configf("parsing taint config %q: %v", path, err)
	}
	return cfg, nil
}
