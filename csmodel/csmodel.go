// Package csmodel is the CS element manager: it interns
// every context-qualified entity the solver operates over — CSVar, CSObj,
// StaticField, InstanceField, ArrayIndex, CSCallSite and CSMethod — so
// that two lookups with equal keys always yield the identical instance.
// It is grounded on gopta/go/pointer's analysis.{global,local}val/obj
// interning tables (analysis.go), moved from ssa.Value keys to this
// engine's (context, ir element) keys.
package csmodel

import (
	"fmt"
	"sync"

	"github.com/o2lab/gopta2/context"
	"github.com/o2lab/gopta2/heap"
	"github.com/o2lab/gopta2/index"
	"github.com/o2lab/gopta2/ir"
)

// CSObj is a context-qualified Obj: (heapContext, Obj), interned.
type CSObj struct {
	id  int
	Ctx *context.Context
	Obj *heap.Obj
}

func (o *CSObj) Index() int  { return o.id }
func (o *CSObj) String() string {
	if o.Ctx.Key() == "" {
		return o.Obj.String()
	}
	return fmt.Sprintf("%s%s", o.Ctx, o.Obj)
}

// CSVar is a context-qualified local variable: CSVar(ctx, var).
type CSVar struct {
	id  int
	Ctx *context.Context
	Var *ir.Var
}

func (v *CSVar) Index() int { return v.id }
func (v *CSVar) String() string {
	if v.Ctx.Key() == "" {
		return v.Var.String()
	}
	return fmt.Sprintf("%s%s", v.Ctx, v.Var)
}

// StaticField is a pointer for a static field, not context-qualified
// (there is exactly one instance of a static field, class-init aside).
type StaticField struct {
	id    int
	Field *ir.Field
}

func (f *StaticField) Index() int    { return f.id }
func (f *StaticField) String() string { return f.Field.String() }

// InstanceField is InstanceField(CSObj, Field): the field slot of one
// abstract object.
type InstanceField struct {
	id    int
	Base  *CSObj
	Field *ir.Field
}

func (f *InstanceField) Index() int { return f.id }
func (f *InstanceField) String() string {
	return fmt.Sprintf("%s.%s", f.Base, f.Field.Name)
}

// ArrayIndex is ArrayIndex(CSObj): every element of an abstract array
// object collapsed into a single pointer, index-insensitive.
type ArrayIndex struct {
	id   int
	Base *CSObj
}

func (a *ArrayIndex) Index() int    { return a.id }
func (a *ArrayIndex) String() string { return a.Base.String() + "[*]" }

// CSCallSite is a context-qualified call site.
type CSCallSite struct {
	id     int
	Ctx    *context.Context
	Site   *ir.Invoke
	Caller *CSMethod
}

func (c *CSCallSite) Index() int { return c.id }
func (c *CSCallSite) String() string {
	return fmt.Sprintf("%s@%s", c.Site, c.Caller)
}

// CSMethod is a context-qualified method.
type CSMethod struct {
	id     int
	Ctx    *context.Context
	Method *ir.Method
}

func (m *CSMethod) Index() int { return m.id }
func (m *CSMethod) String() string {
	if m.Ctx.Key() == "" {
		return m.Method.Signature
	}
	return fmt.Sprintf("%s%s", m.Ctx, m.Method.Signature)
}

type instanceFieldKey struct {
	base  *CSObj
	field *ir.Field
}

type csVarKey struct {
	ctx *context.Context
	v   *ir.Var
}

type csObjKey struct {
	ctx *context.Context
	o   *heap.Obj
}

type csSiteKey struct {
	ctx    *context.Context
	site   *ir.Invoke
	caller *CSMethod
}

type csMethodKey struct {
	ctx *context.Context
	m   *ir.Method
}

// Manager interns every CS element. All accessors are idempotent and safe
// for concurrent use; the solver itself is single-threaded, but plug-ins
// or a warm-up phase may call into the manager from multiple goroutines
// before solving starts.
type Manager struct {
	mu sync.Mutex

	objIndexer *index.MappedIndexer[csObjKey]
	objs       map[csObjKey]*CSObj
	objsByID   []*CSObj

	varIndexer *index.MappedIndexer[csVarKey]
	vars       map[csVarKey]*CSVar

	staticFields map[*ir.Field]*StaticField
	nextStatic   int

	instanceFields map[instanceFieldKey]*InstanceField
	nextInstance   int

	arrayIndexes map[*CSObj]*ArrayIndex
	nextArray    int

	callSites  map[csSiteKey]*CSCallSite
	nextSite   int

	methods    map[csMethodKey]*CSMethod
	nextMethod int
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{
		objIndexer:     index.NewMappedIndexer[csObjKey](),
		objs:           make(map[csObjKey]*CSObj),
		varIndexer:     index.NewMappedIndexer[csVarKey](),
		vars:           make(map[csVarKey]*CSVar),
		staticFields:   make(map[*ir.Field]*StaticField),
		instanceFields: make(map[instanceFieldKey]*InstanceField),
		arrayIndexes:   make(map[*CSObj]*ArrayIndex),
		callSites:      make(map[csSiteKey]*CSCallSite),
		methods:        make(map[csMethodKey]*CSMethod),
	}
}

// GetCSObj interns (ctx, o).
func (m *Manager) GetCSObj(ctx *context.Context, o *heap.Obj) *CSObj {
	key := csObjKey{ctx, o}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.objs[key]; ok {
		return c
	}
	c := &CSObj{id: m.objIndexer.Index(key), Ctx: ctx, Obj: o}
	m.objs[key] = c
	for len(m.objsByID) <= c.id {
		m.objsByID = append(m.objsByID, nil)
	}
	m.objsByID[c.id] = c
	return c
}

// ObjByID recovers the CSObj interned with the given dense id (as
// returned by ObjID), the inverse Indexer.Value lookup for PointsToSet.
func (m *Manager) ObjByID(id int) *CSObj {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objsByID[id]
}

// GetCSVar interns (ctx, v).
func (m *Manager) GetCSVar(ctx *context.Context, v *ir.Var) *CSVar {
	key := csVarKey{ctx, v}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.vars[key]; ok {
		return c
	}
	c := &CSVar{id: m.varIndexer.Index(key), Ctx: ctx, Var: v}
	m.vars[key] = c
	return c
}

// GetStaticField interns f.
func (m *Manager) GetStaticField(f *ir.Field) *StaticField {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.staticFields[f]; ok {
		return c
	}
	c := &StaticField{id: m.nextStatic, Field: f}
	m.nextStatic++
	m.staticFields[f] = c
	return c
}

// GetInstanceField interns (base, f).
func (m *Manager) GetInstanceField(base *CSObj, f *ir.Field) *InstanceField {
	key := instanceFieldKey{base, f}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.instanceFields[key]; ok {
		return c
	}
	c := &InstanceField{id: m.nextInstance, Base: base, Field: f}
	m.nextInstance++
	m.instanceFields[key] = c
	return c
}

// GetArrayIndex interns base's sole ArrayIndex pointer. Because it is
// keyed only by the CSObj, a zero-length array allocation
// still yields a valid, queryable ArrayIndex — the caller decides whether
// to create one, not this method.
func (m *Manager) GetArrayIndex(base *CSObj) *ArrayIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.arrayIndexes[base]; ok {
		return c
	}
	c := &ArrayIndex{id: m.nextArray, Base: base}
	m.nextArray++
	m.arrayIndexes[base] = c
	return c
}

// GetCSCallSite interns (ctx, site, caller).
func (m *Manager) GetCSCallSite(ctx *context.Context, site *ir.Invoke, caller *CSMethod) *CSCallSite {
	key := csSiteKey{ctx, site, caller}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.callSites[key]; ok {
		return c
	}
	c := &CSCallSite{id: m.nextSite, Ctx: ctx, Site: site, Caller: caller}
	m.nextSite++
	m.callSites[key] = c
	return c
}

// GetCSMethod interns (ctx, meth).
func (m *Manager) GetCSMethod(ctx *context.Context, meth *ir.Method) *CSMethod {
	key := csMethodKey{ctx, meth}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.methods[key]; ok {
		return c
	}
	c := &CSMethod{id: m.nextMethod, Ctx: ctx, Method: meth}
	m.nextMethod++
	m.methods[key] = c
	return c
}

// ObjID returns o's dense id; together with ObjByID it is the
// Indexer[CSObj]-shaped accessor pair backing PointsToSet's HybridBitSet,
// so callers building PointsToSets can convert between *CSObj and dense id
// without reaching into Manager internals.
func (m *Manager) ObjID(o *CSObj) int { return o.id }

// AllStaticFields returns every interned StaticField, for dump ordering.
func (m *Manager) AllStaticFields() []*StaticField {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*StaticField, 0, len(m.staticFields))
	for _, f := range m.staticFields {
		out = append(out, f)
	}
	return out
}

// AllVars returns every interned CSVar, for dump ordering.
func (m *Manager) AllVars() []*CSVar {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*CSVar, 0, len(m.vars))
	for _, v := range m.vars {
		out = append(out, v)
	}
	return out
}

// AllInstanceFields returns every interned InstanceField, for dump
// ordering.
func (m *Manager) AllInstanceFields() []*InstanceField {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*InstanceField, 0, len(m.instanceFields))
	for _, f := range m.instanceFields {
		out = append(out, f)
	}
	return out
}

// AllArrayIndexes returns every interned ArrayIndex, for dump ordering.
func (m *Manager) AllArrayIndexes() []*ArrayIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ArrayIndex, 0, len(m.arrayIndexes))
	for _, a := range m.arrayIndexes {
		out = append(out, a)
	}
	return out
}
