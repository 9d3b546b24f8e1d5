// Package context implements the context selector: it
// produces contexts for method invocations and heap allocations from a
// configurable sensitivity policy (call-site-k, object-k, type-k, hybrid),
// grounded on gopta/go/pointer's k-CFA contour construction
// (analysis.go/callgraph.go: cgnode.contour, contourK) generalized from
// Go call sites to this engine's ir call sites.
package context

import (
	"strings"
	"sync"
)

// Context is an interned, immutable sequence of abstraction elements
// (call-site ids, object ids, or type names, depending on policy),
// most-recent-first, truncated to the policy's k. Two Contexts built from
// equal element sequences are always the identical *Context.
type Context struct {
	key   string
	parts []string
}

func (c *Context) String() string {
	if c == nil || len(c.parts) == 0 {
		return "[]"
	}
	return "[" + strings.Join(c.parts, ", ") + "]"
}

// Key returns the canonical interning key, usable as a map key by callers
// that need Context identity without importing this package's Manager.
func (c *Context) Key() string { return c.key }

// manager interns Contexts by their element sequence.
type manager struct {
	mu     sync.Mutex
	byKey  map[string]*Context
	empty  *Context
}

func newManager() *manager {
	m := &manager{byKey: make(map[string]*Context)}
	m.empty = &Context{key: ""}
	m.byKey[""] = m.empty
	return m
}

func (m *manager) intern(parts []string) *Context {
	key := strings.Join(parts, "\x00")
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byKey[key]; ok {
		return c
	}
	c := &Context{key: key, parts: parts}
	m.byKey[key] = c
	return c
}

// push builds the context [elem] ++ take(k-1, base.parts), i.e. elem
// becomes the newest frame and older frames fall off past k. k == 0
// always yields the empty context (context-insensitive).
func (m *manager) push(base *Context, elem string, k int) *Context {
	if k <= 0 {
		return m.empty
	}
	parts := make([]string, 0, k)
	parts = append(parts, elem)
	if base != nil {
		for _, p := range base.parts {
			if len(parts) >= k {
				break
			}
			parts = append(parts, p)
		}
	}
	return m.intern(parts)
}

// Policy names a context-sensitivity strategy, selected by the `cs`
// command-line option.
type Policy int

const (
	ContextInsensitive Policy = iota
	CallSiteSensitive
	ObjectSensitive
	TypeSensitive
	Hybrid
)

func ParsePolicy(s string) (Policy, int, bool) {
	switch s {
	case "ci":
		return ContextInsensitive, 0, true
	case "1-call":
		return CallSiteSensitive, 1, true
	case "2-call":
		return CallSiteSensitive, 2, true
	case "1-obj":
		return ObjectSensitive, 1, true
	case "2-obj":
		return ObjectSensitive, 2, true
	case "1-type":
		return TypeSensitive, 1, true
	case "2-type":
		return TypeSensitive, 2, true
	case "hybrid":
		return Hybrid, 1, true
	default:
		return ContextInsensitive, 0, false
	}
}

// Config parameterizes a Selector: which Policy, and k (ignored when
// Policy == ContextInsensitive).
type Config struct {
	Policy Policy
	K      int
}

// CallInfo carries everything a Selector might need to pick a callee
// context, across every policy. Selector reads only the fields its
// configured Policy actually needs: given a caller context c, call site
// cs, receiver CSObj (nil for a static call), and callee method m, it
// produces a callee context c'.
type CallInfo struct {
	CallerContext *Context
	CallSiteID    string

	// ReceiverObjID and ReceiverObjContext identify the receiver CSObj:
	// its own interned identity, and the heap context it was allocated
	// under (used to build the object-sensitivity chain). Both are empty
	// for a static call.
	ReceiverObjID      string
	ReceiverObjContext *Context

	// ReceiverType is the receiver's runtime (allocation-site) type name,
	// used by type-sensitivity.
	ReceiverType string

	// CalleeIsCtorOrStatic selects the call-site-sensitive branch of the
	// Hybrid policy: constructors and static factories are call-site
	// sensitive, instance methods are object sensitive.
	CalleeIsCtorOrStatic bool
}

// Selector produces contexts for method invocations and heap allocations
// from a fixed Policy. Every Policy fixes a finite element
// set (contexts are truncated to K frames), guaranteeing the solver
// terminates.
type Selector struct {
	cfg Config
	mgr *manager
}

// New constructs a Selector for cfg.
func New(cfg Config) *Selector {
	return &Selector{cfg: cfg, mgr: newManager()}
}

// Empty returns this Selector's context-insensitive (zero-length) context,
// the same under every Policy — it is also the context of every program
// entry method.
func (s *Selector) Empty() *Context { return s.mgr.empty }

// SelectCallContext picks the callee context for one method invocation.
func (s *Selector) SelectCallContext(info CallInfo) *Context {
	switch s.cfg.Policy {
	case ContextInsensitive:
		return s.mgr.empty
	case CallSiteSensitive:
		return s.mgr.push(info.CallerContext, info.CallSiteID, s.cfg.K)
	case ObjectSensitive:
		if info.ReceiverObjID == "" {
			// Static call: no receiver object to key on. Object-sensitive
			// policies fall back to context-insensitive for static calls.
			return s.mgr.empty
		}
		return s.mgr.push(info.ReceiverObjContext, info.ReceiverObjID, s.cfg.K)
	case TypeSensitive:
		if info.ReceiverType == "" {
			return s.mgr.empty
		}
		return s.mgr.push(info.ReceiverObjContext, info.ReceiverType, s.cfg.K)
	case Hybrid:
		if info.CalleeIsCtorOrStatic || info.ReceiverObjID == "" {
			return s.mgr.push(info.CallerContext, info.CallSiteID, s.cfg.K)
		}
		return s.mgr.push(info.ReceiverObjContext, info.ReceiverObjID, s.cfg.K)
	default:
		return s.mgr.empty
	}
}

// SelectHeapContext produces the heap context for a new CSObj, given the
// context the allocating method is running under and the allocation
// site's id. Under every policy except ContextInsensitive (always empty),
// the heap context is the allocation site's id followed by the enclosing
// method's context, truncated to K elements.
func (s *Selector) SelectHeapContext(methodContext *Context, allocSiteID string) *Context {
	if s.cfg.Policy == ContextInsensitive {
		return s.mgr.empty
	}
	return s.mgr.push(methodContext, allocSiteID, s.cfg.K)
}
