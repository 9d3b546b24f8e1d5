// Package heap implements the heap abstraction: it maps IR
// New statements (and designated constant values — strings, class
// literals, method-type descriptors) to unique abstract Obj values,
// deterministically and idempotently, honoring configurable merge
// policies. It is grounded on gopta/go/pointer's object/objectNode pair
// (analysis.go), generalized from Go's ssa.Value allocation sites to this
// engine's ir.Stmt allocation sites.
package heap

import (
	"fmt"
	"strings"

	"github.com/o2lab/gopta2/ir"
)

// Kind distinguishes how an Obj came to exist.
type Kind int

const (
	KindAllocation Kind = iota
	KindString
	KindClassLiteral
	KindMethodType
	KindMerged // a type-merged allocation object (merge-* policies)
	KindTaint  // a synthetic marker injected by the Taint plug-in
)

func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "alloc"
	case KindString:
		return "string"
	case KindClassLiteral:
		return "class"
	case KindMethodType:
		return "methodtype"
	case KindMerged:
		return "merged"
	case KindTaint:
		return "taint"
	default:
		return "?"
	}
}

// Obj is an abstract heap object: allocation-site-based or constant-based,
// Its identity is either its allocation site or its
// (kind, value) tuple for constants; Model guarantees that identical
// inputs always yield the identical *Obj (interning).
type Obj struct {
	id int

	Kind Kind
	Type *ir.Type // the allocated/referenced type

	Site ir.Stmt // non-nil for KindAllocation / KindMerged

	// KindString
	StringValue string

	// KindClassLiteral
	LiteralType *ir.Type

	// KindMethodType
	Ret    *ir.Type
	Params []*ir.Type

	// KindTaint
	TaintLabel string
}

// Index implements index.Indexed so Obj can back an ImplicitIndexer.
func (o *Obj) Index() int { return o.id }

// siteToken renders an allocation's originating statement as the stable
// "method signature#ordinal" text ir.Method.AssignSites assigns it,
// instead of the statement's process-local address, so that Obj.String()
// is identical across separate runs over the same program.
func siteToken(site ir.Stmt) string {
	if sited, ok := site.(ir.Sited); ok {
		return sited.SiteToken()
	}
	return site.String()
}

func (o *Obj) String() string {
	switch o.Kind {
	case KindString:
		return fmt.Sprintf("String#%q", o.StringValue)
	case KindClassLiteral:
		return fmt.Sprintf("Class<%s>", o.LiteralType)
	case KindMethodType:
		ps := make([]string, len(o.Params))
		for i, p := range o.Params {
			ps[i] = p.String()
		}
		return fmt.Sprintf("MethodType(%s)%s", strings.Join(ps, ","), o.Ret)
	case KindMerged:
		return fmt.Sprintf("Merged<%s>", o.Type)
	case KindTaint:
		return fmt.Sprintf("Taint<%s>", o.TaintLabel)
	default:
		return fmt.Sprintf("New<%s>@%s", o.Type, siteToken(o.Site))
	}
}

// Policy selects heap-merging strategies, configurable independently of
// context sensitivity.
type Policy struct {
	// MergeStringObjects folds every allocation of the built-in string
	// type into one Obj (it is otherwise redundant with StringConstant,
	// but distinguishes programmatically constructed strings).
	MergeStringObjects bool
	// MergeStringBuilders folds every allocation whose type is
	// StringBuilderType (or a subtype of it) into one Obj per type.
	MergeStringBuilders bool
	StringBuilderType   *ir.Type
	// MergeExceptionObjects folds every allocation assignable to
	// ExceptionBase into one Obj per concrete type.
	MergeExceptionObjects bool
	ExceptionBase         *ir.Type
}

// subtypeChecker is the minimal hierarchy capability Model needs; kept
// narrow so heap does not import package hierarchy directly (avoiding an
// import cycle risk and keeping heap testable without a full hierarchy).
type subtypeChecker interface {
	IsSubtype(sub, sup *ir.Type) bool
}

// Model owns interning for every Obj in the analysis. It is deterministic
// and idempotent: calling any factory method twice with equal inputs
// yields the identical *Obj instance.
type Model struct {
	policy Policy
	hier   subtypeChecker

	nextID int

	bySite  map[siteKey]*Obj
	byType  map[string]*Obj // merged-by-type allocations, keyed by type name
	byStr   map[string]*Obj
	byClass map[string]*Obj
	byMT    map[string]*Obj
	byTaint map[string]*Obj

	all []*Obj
}

// siteKey distinguishes objects allocated by the same statement but at
// different types, needed when one multi-dimensional array literal
// allocates a chain of array objects (outer array, inner array, ...) all
// attributed to the same New/NewArray statement.
type siteKey struct {
	site ir.Stmt
	typ  string
}

// NewModel constructs an empty heap Model under the given policy. hier may
// be nil if neither MergeStringBuilders nor MergeExceptionObjects is set.
func NewModel(policy Policy, hier subtypeChecker) *Model {
	return &Model{
		policy:  policy,
		hier:    hier,
		bySite:  make(map[siteKey]*Obj),
		byType:  make(map[string]*Obj),
		byStr:   make(map[string]*Obj),
		byClass: make(map[string]*Obj),
		byMT:    make(map[string]*Obj),
		byTaint: make(map[string]*Obj),
	}
}

func (m *Model) intern(o *Obj) *Obj {
	o.id = m.nextID
	m.nextID++
	m.all = append(m.all, o)
	return o
}

// mergeTarget reports whether allocations of t should be folded into a
// single per-type Obj under the current policy's "merge string builders"
// or "merge exceptions by type" flags.
func (m *Model) mergeTarget(t *ir.Type) bool {
	if m.policy.MergeStringBuilders && m.policy.StringBuilderType != nil &&
		m.hier != nil && m.hier.IsSubtype(t, m.policy.StringBuilderType) {
		return true
	}
	if m.policy.MergeExceptionObjects && m.policy.ExceptionBase != nil &&
		m.hier != nil && m.hier.IsSubtype(t, m.policy.ExceptionBase) {
		return true
	}
	if m.policy.MergeStringObjects && t != nil && t.Name == "String" {
		return true
	}
	return false
}

// Allocation returns the Obj for the given New/NewArray statement
// allocating a value of type t, honoring the merge policies. Calling it
// twice with the same site and the same type returns the same *Obj; a
// multi-dimensional array allocation calls this once per nesting level
// with a different type each time, yielding one Obj per level all
// attributed to the same statement.
func (m *Model) Allocation(site ir.Stmt, t *ir.Type) *Obj {
	if m.mergeTarget(t) {
		key := t.String()
		if o, ok := m.byType[key]; ok {
			return o
		}
		o := m.intern(&Obj{Kind: KindMerged, Type: t, Site: site})
		m.byType[key] = o
		return o
	}
	key := siteKey{site, t.String()}
	if o, ok := m.bySite[key]; ok {
		return o
	}
	o := m.intern(&Obj{Kind: KindAllocation, Type: t, Site: site})
	m.bySite[key] = o
	return o
}

// StringConstant returns the single Obj shared by every occurrence of the
// string literal value across the program.
func (m *Model) StringConstant(value string) *Obj {
	if o, ok := m.byStr[value]; ok {
		return o
	}
	o := m.intern(&Obj{Kind: KindString, StringValue: value})
	m.byStr[value] = o
	return o
}

// ClassLiteral returns the single Obj shared by every class-literal
// reference to t.
func (m *Model) ClassLiteral(t *ir.Type) *Obj {
	key := t.String()
	if o, ok := m.byClass[key]; ok {
		return o
	}
	o := m.intern(&Obj{Kind: KindClassLiteral, LiteralType: t})
	m.byClass[key] = o
	return o
}

// MethodType returns the single Obj shared by every occurrence of a
// method-type descriptor with the given return and parameter types.
func (m *Model) MethodType(ret *ir.Type, params []*ir.Type) *Obj {
	var b strings.Builder
	b.WriteString(ret.String())
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	key := b.String()
	if o, ok := m.byMT[key]; ok {
		return o
	}
	o := m.intern(&Obj{Kind: KindMethodType, Ret: ret, Params: append([]*ir.Type(nil), params...)})
	m.byMT[key] = o
	return o
}

// TaintMarker returns the single Obj shared by every taint fact carrying
// the given label (typically the source's signature); injecting the same
// marker into an argument's points-to set at a sink call site is how the
// Taint plug-in detects a source-to-sink flow through the existing PFG
// propagation machinery, without the solver core knowing taint exists.
func (m *Model) TaintMarker(label string) *Obj {
	if o, ok := m.byTaint[label]; ok {
		return o
	}
	o := m.intern(&Obj{Kind: KindTaint, TaintLabel: label})
	m.byTaint[label] = o
	return o
}

// All returns every Obj interned so far, in creation order.
func (m *Model) All() []*Obj { return m.all }
