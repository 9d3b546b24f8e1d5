package result

import (
	"bytes"
	"strings"
	"testing"

	"github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
	"github.com/o2lab/gopta2/plugin"
)

func fixture(t *testing.T) (*pfg.Graph, *csmodel.Manager, *context.Selector) {
	t.Helper()
	sel := context.New(context.Config{Policy: context.ContextInsensitive})
	mgr := csmodel.NewManager()
	assignable := func(ot, ft *ir.Type) bool { return true }
	g := pfg.NewGraph(mgr, assignable)
	return g, mgr, sel
}

func TestDumpOneVariablePerLine(t *testing.T) {
	g, mgr, sel := fixture(t)
	heapModel := heap.NewModel(heap.Policy{}, nil)

	site := &ir.New{Type: &ir.Type{Name: "Foo"}}
	obj := heapModel.Allocation(site, &ir.Type{Name: "Foo"})
	csObj := mgr.GetCSObj(sel.Empty(), obj)

	v := &ir.Var{Name: "x"}
	ptr := g.VarPointer(mgr.GetCSVar(sel.Empty(), v))
	ptr.PointsTo.Add(csObj)

	r := &Result{PFG: g, Named: make(map[string]interface{})}

	var buf bytes.Buffer
	Dump(&buf, r)

	out := buf.String()
	if !strings.Contains(out, "x -> [New<Foo>@") {
		t.Fatalf("Dump() = %q, want a line for x", out)
	}
}

func TestDumpReportsTaintFlows(t *testing.T) {
	g, _, _ := fixture(t)
	r := &Result{
		PFG: g,
		Named: map[string]interface{}{
			"Taint": []plugin.TaintFlow{{Source: "src", Sink: "sink", CallSite: "call"}},
		},
	}

	var buf bytes.Buffer
	Dump(&buf, r)

	out := buf.String()
	if !strings.Contains(out, "Detected 1 taint flow(s):") {
		t.Fatalf("Dump() = %q, want a taint flow summary line", out)
	}
	if !strings.Contains(out, "TaintFlow{src -> sink @ call}") {
		t.Fatalf("Dump() = %q, want the rendered flow", out)
	}
}

func TestDumpCIMergesContexts(t *testing.T) {
	g, mgr, sel := fixture(t)
	heapModel := heap.NewModel(heap.Policy{}, nil)

	site := &ir.New{Type: &ir.Type{Name: "Foo"}}
	obj := heapModel.Allocation(site, &ir.Type{Name: "Foo"})
	csObj := mgr.GetCSObj(sel.Empty(), obj)

	v := &ir.Var{Name: "x"}
	// Two CSVars over the same underlying Var but different (empty and
	// one-call-site) contexts should collapse to one ci dump line.
	ptr1 := g.VarPointer(mgr.GetCSVar(sel.Empty(), v))
	ptr1.PointsTo.Add(csObj)
	callSel := context.New(context.Config{Policy: context.CallSiteSensitive, K: 1})
	otherCtx := callSel.SelectCallContext(context.CallInfo{CallSiteID: "cs1"})
	ptr2 := g.VarPointer(mgr.GetCSVar(otherCtx, v))
	ptr2.PointsTo.Add(csObj)

	r := &Result{PFG: g, Named: make(map[string]interface{})}

	var buf bytes.Buffer
	DumpCI(&buf, r)
	if !strings.Contains(buf.String(), "x -> [New<Foo>@") {
		t.Fatalf("DumpCI() = %q, want a merged line for x", buf.String())
	}
	if n := strings.Count(buf.String(), "x -> "); n != 1 {
		t.Fatalf("DumpCI() = %q, has %d lines for x, want 1", buf.String(), n)
	}
}
