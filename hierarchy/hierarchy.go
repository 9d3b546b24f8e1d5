// Package hierarchy defines the external class-hierarchy collaborator:
// lookup by fully-qualified name, subtype queries, and method
// resolution by subsignature. Like package ir, construction from real class
// files is out of scope for the engine; InMemory below is a
// minimal implementation sufficient to drive the solver's own tests.
package hierarchy

import "github.com/o2lab/gopta2/ir"

// Hierarchy answers the type queries the solver needs to perform virtual
// and interface dispatch.
type Hierarchy interface {
	// ClassByName looks up a declared type by fully-qualified name.
	ClassByName(name string) (*ir.Type, bool)
	// IsSubtype reports whether sub is assignable to sup (reflexive).
	IsSubtype(sub, sup *ir.Type) bool
	// Resolve finds the most-derived method implementing subsignature on
	// declType (or an ancestor), per normal virtual dispatch rules.
	Resolve(declType *ir.Type, subsignature string) (*ir.Method, bool)
	// ResolveInterface finds every method across the whole program whose
	// declaring type implements the interface itfType and matches
	// subsignature. It takes no receiver type, so the result is not
	// narrowed to any call site's actual receivers.
	ResolveInterface(itfType *ir.Type, subsignature string) []*ir.Method
}

// classInfo is one class's registration: its declared supertype, and the
// methods it declares (by subsignature).
type classInfo struct {
	typ        *ir.Type
	super      *ir.Type
	interfaces []*ir.Type
	methods    map[string]*ir.Method
}

// InMemory is a small, explicit Hierarchy used by tests and by any
// embedder that already has its class metadata in memory. Real frontends
// would replace this with a class-file-backed implementation; the engine
// depends only on the Hierarchy interface above.
type InMemory struct {
	classes map[string]*classInfo
}

// NewInMemory returns an empty hierarchy.
func NewInMemory() *InMemory {
	return &InMemory{classes: make(map[string]*classInfo)}
}

// AddClass registers a class/interface named name, with the given
// superclass (nil for none) and declared interfaces.
func (h *InMemory) AddClass(name string, super *ir.Type, interfaces ...*ir.Type) *ir.Type {
	t := &ir.Type{Name: name}
	h.classes[name] = &classInfo{typ: t, super: super, interfaces: interfaces, methods: map[string]*ir.Method{}}
	return t
}

// AddMethod registers m as declared on class declType.
func (h *InMemory) AddMethod(declType *ir.Type, m *ir.Method) {
	ci := h.classes[declType.Name]
	if ci == nil {
		panic("hierarchy: AddMethod on unregistered class " + declType.Name)
	}
	ci.methods[m.Subsignature] = m
}

func (h *InMemory) ClassByName(name string) (*ir.Type, bool) {
	if ci, ok := h.classes[name]; ok {
		return ci.typ, true
	}
	return nil, false
}

// IsSubtype reports whether sub == sup or sup appears in sub's ancestor
// chain (superclasses and declared interfaces, transitively). Array types
// compare covariantly on their element type, matching common OO array
// subtyping.
func (h *InMemory) IsSubtype(sub, sup *ir.Type) bool {
	if sub == nil || sup == nil {
		return false
	}
	if sub.IsArray() || sup.IsArray() {
		if !sub.IsArray() || !sup.IsArray() {
			return false
		}
		return h.IsSubtype(sub.Elem, sup.Elem)
	}
	if sub.Name == sup.Name {
		return true
	}
	ci, ok := h.classes[sub.Name]
	if !ok {
		return false
	}
	if ci.super != nil && h.IsSubtype(ci.super, sup) {
		return true
	}
	for _, itf := range ci.interfaces {
		if h.IsSubtype(itf, sup) {
			return true
		}
	}
	return false
}

// Resolve implements standard virtual dispatch: search declType, then its
// superclass chain, for subsignature.
func (h *InMemory) Resolve(declType *ir.Type, subsignature string) (*ir.Method, bool) {
	for t := declType; t != nil; {
		ci, ok := h.classes[t.Name]
		if !ok {
			return nil, false
		}
		if m, ok := ci.methods[subsignature]; ok {
			return m, true
		}
		t = ci.super
	}
	return nil, false
}

// ResolveInterface returns, across every registered class implementing
// itfType, the method matching subsignature — the candidate set an
// interface call site's actual receiver types get dispatched against.
func (h *InMemory) ResolveInterface(itfType *ir.Type, subsignature string) []*ir.Method {
	var out []*ir.Method
	for _, ci := range h.classes {
		if !h.IsSubtype(ci.typ, itfType) {
			continue
		}
		if m, ok := ci.methods[subsignature]; ok {
			out = append(out, m)
		}
	}
	return out
}
