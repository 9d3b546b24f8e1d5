package result

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/o2lab/gopta2/csmodel"
	"github.com/o2lab/gopta2/ir"
	"github.com/o2lab/gopta2/pfg"
)

// Dump writes r's pointer sections to w: one section per pointer family
// (variables, static fields, instance fields, array indexes), each sorted
// by String(), one line per pointer: "<pointer> -> [<obj1>,<obj2>,...]",
// an empty line between sections. If r has a "Taint" named sub-result, a
// final section reports the flows found.
func Dump(w io.Writer, r *Result) {
	dump(w, r, false, false)
}

// DumpCI is Dump projected to a context-insensitive view: pointers and
// objects that differ only by context are merged and their points-to sets
// unioned, matching the `dump-ci` option.
func DumpCI(w io.Writer, r *Result) {
	dump(w, r, true, false)
}

// DumpColor is Dump with ANSI highlighting via aurora: pointers in cyan,
// object sets in yellow, for terminal use.
func DumpColor(w io.Writer, r *Result) {
	dump(w, r, false, true)
}

func dump(w io.Writer, r *Result, ci bool, color bool) {
	section(w, r.Variables(), ci, color)
	section(w, r.StaticFields(), ci, color)
	section(w, r.InstanceFields(), ci, color)
	section(w, r.ArrayIndexes(), ci, color)

	flows := r.TaintFlows()
	if flows == nil {
		return
	}
	fmt.Fprintf(w, "Detected %d taint flow(s):\n", len(flows))
	for _, f := range flows {
		fmt.Fprintln(w, f.String())
	}
}

type dumpLine struct {
	pointer string
	objects string
}

func section(w io.Writer, ptrs []*pfg.Pointer, ci bool, color bool) {
	lines := renderLines(ptrs, ci)
	sort.Slice(lines, func(i, j int) bool { return lines[i].pointer < lines[j].pointer })
	for _, l := range lines {
		if color {
			fmt.Fprintf(w, "%s -> %s\n", aurora.Cyan(l.pointer), aurora.Yellow(l.objects))
		} else {
			fmt.Fprintf(w, "%s -> %s\n", l.pointer, l.objects)
		}
	}
	fmt.Fprintln(w)
}

// renderLines collapses ptrs into (pointer text, object-set text) pairs,
// merging by underlying entity identity when ci strips contexts.
func renderLines(ptrs []*pfg.Pointer, ci bool) []dumpLine {
	if !ci {
		out := make([]dumpLine, 0, len(ptrs))
		for _, p := range ptrs {
			out = append(out, dumpLine{pointer: p.String(), objects: objectsText(p)})
		}
		return out
	}

	seen := make(map[string]map[string]bool)
	var order []string
	for _, p := range ptrs {
		key := ciPointerKey(p)
		if _, ok := seen[key]; !ok {
			seen[key] = make(map[string]bool)
			order = append(order, key)
		}
		for _, o := range p.PointsTo.Slice() {
			seen[key][o.Obj.String()] = true
		}
	}
	out := make([]dumpLine, 0, len(order))
	for _, key := range order {
		names := make([]string, 0, len(seen[key]))
		for name := range seen[key] {
			names = append(names, name)
		}
		sort.Strings(names)
		out = append(out, dumpLine{pointer: key, objects: "[" + strings.Join(names, ",") + "]"})
	}
	return out
}

func objectsText(p *pfg.Pointer) string {
	objs := p.PointsTo.Slice()
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.String()
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ",") + "]"
}

// ciPointerKey collapses a Pointer's context to obtain the key its
// context-insensitive dump line groups under.
func ciPointerKey(p *pfg.Pointer) string {
	switch p.Kind {
	case pfg.KindVar:
		return varKey(p.Var.Var)
	case pfg.KindStaticField:
		return p.Static.String()
	case pfg.KindInstanceField:
		return objKey(p.Field.Base) + "." + p.Field.Field.Name
	case pfg.KindArrayIndex:
		return objKey(p.Array.Base) + "[*]"
	default:
		return p.String()
	}
}

func varKey(v *ir.Var) string { return v.String() }

func objKey(o *csmodel.CSObj) string { return o.Obj.String() }
