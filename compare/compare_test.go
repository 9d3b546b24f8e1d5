package compare

import (
	"strings"
	"testing"

	"github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/result"
)

func oneVarResult(t *testing.T, varName, objTypeName string) *result.Result {
	t.Helper()
	sel := context.New(context.Config{Policy: context.ContextInsensitive})
	mgr := csmodel.NewManager()
	g := pfg.NewGraph(mgr, func(ot, ft *ir.Type) bool { return true })
	heapModel := heap.NewModel(heap.Policy{}, nil)

	site := &ir.New{Type: &ir.Type{Name: objTypeName}}
	obj := heapModel.Allocation(site, &ir.Type{Name: objTypeName})
	csObj := mgr.GetCSObj(sel.Empty(), obj)

	ptr := g.VarPointer(mgr.GetCSVar(sel.Empty(), &ir.Var{Name: varName}))
	ptr.PointsTo.Add(csObj)

	return &result.Result{PFG: g, Named: make(map[string]interface{})}
}

func TestRunAgreesOnMatchingDump(t *testing.T) {
	r := oneVarResult(t, "x", "Foo")

	var buf strings.Builder
	result.Dump(&buf, r)

	if err := Run(strings.NewReader(buf.String()), r); err != nil {
		t.Fatalf("Run() error on an identical expected dump: %v", err)
	}
}

func TestRunReportsMismatch(t *testing.T) {
	r := oneVarResult(t, "x", "Foo")

	expected := "x -> [Bar#0]\n\n"
	err := Run(strings.NewReader(expected), r)
	if err == nil {
		t.Fatalf("Run() should fail when the object sets disagree")
	}
	ce, ok := err.(*errs.ComparisonError)
	if !ok {
		t.Fatalf("Run() error type = %T, want *errs.ComparisonError", err)
	}
	if len(ce.Mismatches) != 1 || ce.Mismatches[0].Pointer != "x" {
		t.Fatalf("Run() mismatches = %+v", ce.Mismatches)
	}
}

func TestRunReportsMissingPointer(t *testing.T) {
	r := oneVarResult(t, "x", "Foo")

	expected := "x -> [Foo#0]\n\ny -> [Baz#0]\n\n"
	err := Run(strings.NewReader(expected), r)
	if err == nil {
		t.Fatalf("Run() should fail when the expected dump names an extra pointer")
	}
	ce := err.(*errs.ComparisonError)
	found := false
	for _, m := range ce.Mismatches {
		if m.Pointer == "y" && m.Given == nil {
			found = true
		}
	}
	if !found {
		t.Fatalf("Run() mismatches = %+v, want a missing-pointer entry for y", ce.Mismatches)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	if _, err := parse(strings.NewReader("not a dump line")); err == nil {
		t.Fatalf("parse() should reject a line without ' -> '")
	}
}
