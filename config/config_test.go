package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/ir"
)

func TestContextConfigParsesKnownPolicy(t *testing.T) {
	o := Options{CS: "2-obj"}
	cfg, err := o.ContextConfig()
	if err != nil {
		t.Fatalf("ContextConfig() error = %v", err)
	}
	if cfg.Policy != context.ObjectSensitive || cfg.K != 2 {
		t.Fatalf("ContextConfig() = %+v, want ObjectSensitive/2", cfg)
	}
}

func TestContextConfigRejectsUnknownPolicy(t *testing.T) {
	o := Options{CS: "bogus"}
	if _, err := o.ContextConfig(); err == nil {
		t.Fatalf("ContextConfig() with an unknown policy should fail")
	}
}

func TestHeapPolicyDisablesMergeWithoutResolvedType(t *testing.T) {
	o := Options{MergeStringBuilders: true, MergeExceptionObjects: true}
	p := o.HeapPolicy(nil, nil)
	if p.MergeStringBuilders || p.MergeExceptionObjects {
		t.Fatalf("HeapPolicy() enabled a merge with no resolved type: %+v", p)
	}

	builder := &ir.Type{Name: "java.lang.StringBuilder"}
	exc := &ir.Type{Name: "java.lang.Throwable"}
	p = o.HeapPolicy(builder, exc)
	if !p.MergeStringBuilders || p.StringBuilderType != builder {
		t.Fatalf("HeapPolicy() did not wire the resolved builder type")
	}
	if !p.MergeExceptionObjects || p.ExceptionBase != exc {
		t.Fatalf("HeapPolicy() did not wire the resolved exception base")
	}
}

func TestSolverOptionsIgnoresOnlyAppPredicateWhenDisabled(t *testing.T) {
	called := false
	pred := func(*ir.Method) bool { called = true; return true }

	o := Options{OnlyApp: false}
	opts := o.SolverOptions(pred)
	if opts.OnlyApp != nil {
		t.Fatalf("SolverOptions() set OnlyApp when the option was disabled")
	}
	if called {
		t.Fatalf("SolverOptions() invoked the predicate before it should")
	}
}

func TestLoadTaintConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taint.yaml")
	yaml := "sources:\n  - signature: readLine\nsinks:\n  - signature: exec\n    argindex: 0\ntransfers:\n  - signature: concat\n    fromarg: 0\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadTaintConfig(path)
	if err != nil {
		t.Fatalf("LoadTaintConfig() error = %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Signature != "readLine" {
		t.Fatalf("LoadTaintConfig() sources = %+v", cfg.Sources)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].ArgIndex != 0 {
		t.Fatalf("LoadTaintConfig() sinks = %+v", cfg.Sinks)
	}
	if len(cfg.Transfers) != 1 || cfg.Transfers[0].FromArg != 0 {
		t.Fatalf("LoadTaintConfig() transfers = %+v", cfg.Transfers)
	}
}

func TestLoadTaintConfigMissingFile(t *testing.T) {
	if _, err := LoadTaintConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("LoadTaintConfig() should fail for a missing file")
	}
}
