// Package ir defines the external "IR provider" collaborator: an ordered
// sequence of typed statements per method, method signatures, parameters
// and receiver slots. Construction of this IR from real class files is
// explicitly out of scope for the engine; this package supplies only the
// interfaces the solver consumes plus a
// minimal in-memory Builder so the engine can be exercised end to end by
// tests without a real frontend — the same role gopta's hand-built SSA
// fixtures in go/pointer/testdata/a_test.go play for that engine.
package ir

import "fmt"

// Type is a reference-like type in the analyzed program: a class,
// interface or array type. Identity is by Name; array types embed their
// element type so that ArrayIndex propagation can be filtered by
// component type.
type Type struct {
	Name string
	Elem *Type // non-nil iff this is an array type
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Elem != nil {
		return t.Elem.String() + "[]"
	}
	return t.Name
}

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t != nil && t.Elem != nil }

// Var is a local variable, parameter, receiver slot or method-result slot.
type Var struct {
	Name string
	Type *Type
}

func (v *Var) String() string {
	if v == nil {
		return "<nil>"
	}
	return v.Name
}

// Field is a static or instance field declared on a class.
type Field struct {
	Name      string
	DeclClass *Type
	Type      *Type
	Static    bool
}

func (f *Field) String() string { return f.DeclClass.String() + "." + f.Name }

// InvokeKind classifies how a call site dispatches: static, virtual,
// special, interface, or other (e.g. reflective).
type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeVirtual
	InvokeSpecial
	InvokeInterface
	InvokeOther
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeStatic:
		return "STATIC"
	case InvokeVirtual:
		return "VIRTUAL"
	case InvokeSpecial:
		return "SPECIAL"
	case InvokeInterface:
		return "INTERFACE"
	default:
		return "OTHER"
	}
}

// Stmt is the discriminated union of three-address statements a Method's
// body is made of. Concrete kinds implement isStmt() so the
// union is closed to this package, matching the "tagged unions ... avoid
// class hierarchies whose sole purpose is kind discrimination" design note
// — a type switch on the concrete Go type *is* the tag.
type Stmt interface {
	isStmt()
	String() string
}

// New allocates a scalar object of Type into LHS. Site distinguishes
// distinct allocation sites within the same method textually (loops are
// not unrolled: one New statement is one site, regardless of how many
// times it executes, per the allocation-site heap abstraction). It is
// populated by AssignSites, not by the statement's constructor.
type New struct {
	LHS  *Var
	Type *Type
	Site string
}

func (*New) isStmt() {}
func (s *New) String() string    { return fmt.Sprintf("%s = new %s", s.LHS, s.Type) }
func (s *New) setSite(id string) { s.Site = id }
func (s *New) SiteToken() string { return s.Site }

// NewArray allocates an array (or, when Dims > 1, a chain of nested
// arrays) of the given element type into LHS. Multi-dimensional
// allocations chain inner allocations through the array-index pointers;
// Dims records how many nested array allocations to synthesize. Site is
// populated by AssignSites, the same as New.Site.
type NewArray struct {
	LHS  *Var
	Elem *Type
	Dims int
	Site string
}

func (*NewArray) isStmt() {}
func (s *NewArray) String() string {
	return fmt.Sprintf("%s = new %s[]*%d", s.LHS, s.Elem, s.Dims)
}
func (s *NewArray) setSite(id string) { s.Site = id }
func (s *NewArray) SiteToken() string { return s.Site }

// LoadConst is x = <constant>: an IR frontend's way of materializing a
// compile-time constant directly into a heap object, rather than through
// an allocation site. Class set (non-nil) loads a class literal (T.class);
// Class nil loads a string literal, StringValue. It is the sole producer
// of heap.KindString/KindClassLiteral objects — MethodType descriptors are
// folded from class literals downstream, by the MethodType plug-in, not
// loaded directly.
type LoadConst struct {
	LHS         *Var
	StringValue string
	Class       *Type
}

func (*LoadConst) isStmt() {}
func (s *LoadConst) String() string {
	if s.Class != nil {
		return fmt.Sprintf("%s = %s.class", s.LHS, s.Class)
	}
	return fmt.Sprintf("%s = %q", s.LHS, s.StringValue)
}

// Assign is a plain local-to-local copy: x = y.
type Assign struct{ LHS, RHS *Var }

func (*Assign) isStmt() {}
func (s *Assign) String() string { return fmt.Sprintf("%s = %s", s.LHS, s.RHS) }

// Cast is x = (T) y.
type Cast struct {
	LHS, RHS *Var
	Type     *Type
}

func (*Cast) isStmt() {}
func (s *Cast) String() string { return fmt.Sprintf("%s = (%s) %s", s.LHS, s.Type, s.RHS) }

// LoadField is x = T.f (Base == nil, static) or x = y.f (Base != nil).
type LoadField struct {
	LHS   *Var
	Base  *Var // nil for a static field load
	Field *Field
}

func (*LoadField) isStmt() {}
func (s *LoadField) String() string {
	if s.Base == nil {
		return fmt.Sprintf("%s = %s", s.LHS, s.Field)
	}
	return fmt.Sprintf("%s = %s.%s", s.LHS, s.Base, s.Field.Name)
}

// StoreField is T.f = x (Base == nil) or y.f = x (Base != nil).
type StoreField struct {
	Base  *Var
	Field *Field
	RHS   *Var
}

func (*StoreField) isStmt() {}
func (s *StoreField) String() string {
	if s.Base == nil {
		return fmt.Sprintf("%s = %s", s.Field, s.RHS)
	}
	return fmt.Sprintf("%s.%s = %s", s.Base, s.Field.Name, s.RHS)
}

// LoadArray is x = y[i]. The index is not tracked.
type LoadArray struct {
	LHS  *Var
	Base *Var
}

func (*LoadArray) isStmt() {}
func (s *LoadArray) String() string { return fmt.Sprintf("%s = %s[*]", s.LHS, s.Base) }

// StoreArray is y[i] = x.
type StoreArray struct {
	Base *Var
	RHS  *Var
}

func (*StoreArray) isStmt() {}
func (s *StoreArray) String() string { return fmt.Sprintf("%s[*] = %s", s.Base, s.RHS) }

// MethodRef names the callee of an Invoke statement before dispatch has
// resolved it: a declared type plus a subsignature (name + parameter/return
// shape, excluding the receiver), the same pair a class hierarchy uses to
// do virtual method lookup.
type MethodRef struct {
	DeclType     *Type
	Subsignature string
}

// MakeClosure is x = <bootstrap>(Target), the IR shape of a Go closure
// literal or a Java lambda/method-reference expression: it allocates an
// instance of a functional-interface type whose single abstract method
// forwards to Target. Captures list the enclosing-scope variables the
// closure reads, which flow into it the way a constructor argument would.
// Site, like New.Site, is populated by AssignSites.
type MakeClosure struct {
	LHS      *Var
	Type     *Type
	Target   *MethodRef
	Captures []*Var
	Site     string
}

func (*MakeClosure) isStmt() {}
func (s *MakeClosure) String() string {
	return fmt.Sprintf("%s = closure(%s)", s.LHS, s.Target)
}
func (s *MakeClosure) setSite(id string) { s.Site = id }
func (s *MakeClosure) SiteToken() string { return s.Site }

func (m *MethodRef) String() string { return m.DeclType.String() + "." + m.Subsignature }

// Invoke is a call statement: r = static m(...) / r = y.m(...) /
// r = y.<init>(...). Base is nil for static calls. LHS is nil when the
// call's result is discarded. Site, like New.Site, is a stable per-call-site
// identity populated by AssignSites; the context selector uses it to key
// call-site-sensitive contexts instead of the statement's address.
type Invoke struct {
	LHS    *Var
	Base   *Var // nil for InvokeStatic
	Callee *MethodRef
	Args   []*Var
	Kind   InvokeKind
	Site   string
}

func (*Invoke) isStmt() {}
func (s *Invoke) String() string {
	recv := "static"
	if s.Base != nil {
		recv = s.Base.String()
	}
	return fmt.Sprintf("%s = %s.%s(...) [%s]", s.LHS, recv, s.Callee.Subsignature, s.Kind)
}
func (s *Invoke) setSite(id string) { s.Site = id }
func (s *Invoke) SiteToken() string { return s.Site }

// Return is `return x` (Var == nil for a void return).
type Return struct{ Var *Var }

func (*Return) isStmt() {}
func (s *Return) String() string { return fmt.Sprintf("return %s", s.Var) }

// Method is one method's signature plus its ordered statement list.
type Method struct {
	Signature     string // globally unique, e.g. "pkg.Class.method(T)R"
	DeclClass     *Type
	Params        []*Var
	This          *Var // nil for a static method
	Static        bool
	Constructor   bool
	Subsignature  string // Signature without the declaring class, for override matching
	Body          []Stmt
	HasCFG        bool // false models a reachable method with no available IR
}

func (m *Method) String() string { return m.Signature }

// Sited is implemented by the statement kinds that carry a stable site
// token (New, NewArray, Invoke): allocation and call-site identity that
// downstream packages (heap, context) render into text or use as a map
// key, in place of the statement's process-local address.
type Sited interface {
	SiteToken() string
}

// siteSetter is Sited's write side, implemented by the same statement
// kinds; only AssignSites calls it.
type siteSetter interface {
	setSite(string)
}

// AssignSites derives a stable textual identity for every Sited statement
// in m.Body, from m.Signature and the statement's ordinal position within
// Body — "pkg.Class.method(T)R#3" names the 4th statement of that method
// regardless of process, heap layout, or GC. Callers that assemble a
// Method's Body directly (Builder, a frontend loader) call this once the
// body is complete; it is idempotent.
func (m *Method) AssignSites() {
	for i, stmt := range m.Body {
		if s, ok := stmt.(siteSetter); ok {
			s.setSite(fmt.Sprintf("%s#%d", m.Signature, i))
		}
	}
}

// IsConstructor reports whether m is an instance initializer, used by the
// hybrid context-selection policy to pick call-site sensitivity for
// constructors even when it otherwise selects object sensitivity.
func (m *Method) IsConstructor() bool { return m.Constructor }

// Program is the whole-program IR: every method known to the frontend plus
// the designated entry points ... plus
// an optional extension list").
type Program interface {
	Methods() []*Method
	EntryMethods() []*Method
}
