package main

import (
	"encoding/json"
	"os"

	"github.com/o2lab/gopta2/errs"
	"github.com/o2lab/gopta2/hierarchy"
	"github.com/o2lab/gopta2/ir"
)

// This file is the JSON realization of the "IR provider" and "class
// hierarchy" external interfaces: a concrete but minimal frontend, in the
// same spirit as ir.Builder/hierarchy.InMemory ("any embedder that
// already has its class metadata in memory"). A real deployment would
// replace it with a class-file reader; cmd/pta's job is only to drive the
// engine over whatever program a caller hands it.

type typeSpec struct {
	Name string    `json:"name"`
	Elem *typeSpec `json:"elem,omitempty"`
}

type varSpec struct {
	Name string   `json:"name"`
	Type typeSpec `json:"type"`
}

type stmtSpec struct {
	Kind string `json:"kind"`

	LHS  string `json:"lhs,omitempty"`
	RHS  string `json:"rhs,omitempty"`
	Base string `json:"base,omitempty"`
	Var  string `json:"var,omitempty"`

	Type  *typeSpec `json:"type,omitempty"`
	Elem  *typeSpec `json:"elem,omitempty"`
	Dims  int       `json:"dims,omitempty"`
	Value string    `json:"value,omitempty"`

	FieldDeclClass string `json:"fieldDeclClass,omitempty"`
	FieldName      string `json:"fieldName,omitempty"`
	FieldStatic    bool   `json:"fieldStatic,omitempty"`
	FieldType      *typeSpec `json:"fieldType,omitempty"`

	CalleeDeclClass    string `json:"calleeDeclClass,omitempty"`
	CalleeSubsignature string `json:"calleeSubsignature,omitempty"`
	Args               []string `json:"args,omitempty"`
	InvokeKind         string   `json:"invokeKind,omitempty"`

	Captures []string `json:"captures,omitempty"`
}

type methodSpec struct {
	Signature    string     `json:"signature"`
	DeclClass    string     `json:"declClass"`
	Params       []varSpec  `json:"params"`
	This         *varSpec   `json:"this,omitempty"`
	Static       bool       `json:"static"`
	Constructor  bool       `json:"constructor"`
	Subsignature string     `json:"subsignature"`
	Body         []stmtSpec `json:"body"`
	NoCFG        bool       `json:"noCFG,omitempty"`
}

type classSpec struct {
	Name       string   `json:"name"`
	Super      string   `json:"super,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
}

type programSpec struct {
	Classes []classSpec  `json:"classes"`
	Methods []methodSpec `json:"methods"`
	Entries []string     `json:"entries"`
}

// loadProgram reads path as a programSpec and builds an ir.Program plus a
// hierarchy.Hierarchy over hierarchy.InMemory.
func loadProgram(path string) (ir.Program, hierarchy.Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errs.Configf("reading program %q: %v", path, err)
	}
	var spec programSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, nil, errs.Configf("parsing program %q: %v", path, err)
	}

	hier := hierarchy.NewInMemory()
	types := make(map[string]*ir.Type)

	if err := registerClasses(hier, types, spec.Classes); err != nil {
		return nil, nil, err
	}

	builder := ir.NewBuilder()
	bySig := make(map[string]*ir.Method)
	for _, ms := range spec.Methods {
		m, err := buildMethod(hier, types, ms)
		if err != nil {
			return nil, nil, err
		}
		hier.AddMethod(resolveClassType(hier, types, ms.DeclClass), m)
		builder.AddMethod(m)
		bySig[m.Signature] = m
	}
	for _, sig := range spec.Entries {
		m, ok := bySig[sig]
		if !ok {
			return nil, nil, errs.Configf("entry %q names no declared method", sig)
		}
		builder.AddEntry(m)
	}

	return builder.Build(), hier, nil
}

// registerClasses adds every classSpec to hier in dependency order (a
// class's super and interfaces must already be registered), so that
// hier.ClassByName always returns the same *ir.Type instance the class's
// dependents were built against.
func registerClasses(hier *hierarchy.InMemory, types map[string]*ir.Type, specs []classSpec) error {
	remaining := append([]classSpec(nil), specs...)
	for len(remaining) > 0 {
		progressed := false
		var next []classSpec
		for _, cs := range remaining {
			if !dependenciesReady(hier, cs) {
				next = append(next, cs)
				continue
			}
			var super *ir.Type
			if cs.Super != "" {
				super, _ = hier.ClassByName(cs.Super)
			}
			interfaces := make([]*ir.Type, 0, len(cs.Interfaces))
			for _, name := range cs.Interfaces {
				t, _ := hier.ClassByName(name)
				interfaces = append(interfaces, t)
			}
			types[cs.Name] = hier.AddClass(cs.Name, super, interfaces...)
			progressed = true
		}
		if !progressed {
			return errs.Configf("class hierarchy has a cycle or unresolved supertype among %v", classNames(remaining))
		}
		remaining = next
	}
	return nil
}

func dependenciesReady(hier *hierarchy.InMemory, cs classSpec) bool {
	if cs.Super != "" {
		if _, ok := hier.ClassByName(cs.Super); !ok {
			return false
		}
	}
	for _, name := range cs.Interfaces {
		if _, ok := hier.ClassByName(name); !ok {
			return false
		}
	}
	return true
}

func classNames(specs []classSpec) []string {
	out := make([]string, len(specs))
	for i, cs := range specs {
		out[i] = cs.Name
	}
	return out
}

// resolveClassType returns the canonical *ir.Type for a declared class
// name, auto-registering it as a superclass-less leaf class the first
// time it's referenced by a field or parameter type that the class list
// itself never declared (built-ins like "String" or "Object").
func resolveClassType(hier *hierarchy.InMemory, types map[string]*ir.Type, name string) *ir.Type {
	if t, ok := hier.ClassByName(name); ok {
		return t
	}
	t := hier.AddClass(name, nil)
	types[name] = t
	return t
}

func resolveType(hier *hierarchy.InMemory, types map[string]*ir.Type, ts typeSpec) *ir.Type {
	if ts.Elem != nil {
		return &ir.Type{Elem: resolveType(hier, types, *ts.Elem)}
	}
	return resolveClassType(hier, types, ts.Name)
}

func buildVar(hier *hierarchy.InMemory, types map[string]*ir.Type, vs varSpec) *ir.Var {
	return &ir.Var{Name: vs.Name, Type: resolveType(hier, types, vs.Type)}
}

func buildMethod(hier *hierarchy.InMemory, types map[string]*ir.Type, ms methodSpec) (*ir.Method, error) {
	m := &ir.Method{
		Signature:    ms.Signature,
		DeclClass:    resolveClassType(hier, types, ms.DeclClass),
		Static:       ms.Static,
		Constructor:  ms.Constructor,
		Subsignature: ms.Subsignature,
		HasCFG:       !ms.NoCFG,
	}
	for _, p := range ms.Params {
		m.Params = append(m.Params, buildVar(hier, types, p))
	}
	if ms.This != nil {
		m.This = buildVar(hier, types, *ms.This)
	}

	varsByName := make(map[string]*ir.Var)
	registerVar := func(v *ir.Var) *ir.Var {
		if v == nil {
			return nil
		}
		varsByName[v.Name] = v
		return v
	}
	registerVar(m.This)
	for _, p := range m.Params {
		registerVar(p)
	}
	lookup := func(name string) *ir.Var {
		if name == "" {
			return nil
		}
		if v, ok := varsByName[name]; ok {
			return v
		}
		v := &ir.Var{Name: name}
		varsByName[name] = v
		return v
	}

	for _, ss := range ms.Body {
		stmt, err := buildStmt(hier, types, lookup, ss)
		if err != nil {
			return nil, errs.Configf("method %s: %v", ms.Signature, err)
		}
		m.Body = append(m.Body, stmt)
	}
	return m, nil
}

func buildStmt(hier *hierarchy.InMemory, types map[string]*ir.Type, v func(string) *ir.Var, ss stmtSpec) (ir.Stmt, error) {
	switch ss.Kind {
	case "new":
		return &ir.New{LHS: v(ss.LHS), Type: resolveType(hier, types, *ss.Type)}, nil
	case "newarray":
		return &ir.NewArray{LHS: v(ss.LHS), Elem: resolveType(hier, types, *ss.Elem), Dims: ss.Dims}, nil
	case "loadconst":
		if ss.Type != nil {
			return &ir.LoadConst{LHS: v(ss.LHS), Class: resolveType(hier, types, *ss.Type)}, nil
		}
		return &ir.LoadConst{LHS: v(ss.LHS), StringValue: ss.Value}, nil
	case "assign":
		return &ir.Assign{LHS: v(ss.LHS), RHS: v(ss.RHS)}, nil
	case "cast":
		return &ir.Cast{LHS: v(ss.LHS), RHS: v(ss.RHS), Type: resolveType(hier, types, *ss.Type)}, nil
	case "loadfield":
		return &ir.LoadField{LHS: v(ss.LHS), Base: v(ss.Base), Field: buildField(hier, types, ss)}, nil
	case "storefield":
		return &ir.StoreField{Base: v(ss.Base), Field: buildField(hier, types, ss), RHS: v(ss.RHS)}, nil
	case "loadarray":
		return &ir.LoadArray{LHS: v(ss.LHS), Base: v(ss.Base)}, nil
	case "storearray":
		return &ir.StoreArray{Base: v(ss.Base), RHS: v(ss.RHS)}, nil
	case "invoke":
		args := make([]*ir.Var, len(ss.Args))
		for i, a := range ss.Args {
			args[i] = v(a)
		}
		return &ir.Invoke{
			LHS:  v(ss.LHS),
			Base: v(ss.Base),
			Callee: &ir.MethodRef{
				DeclType:     resolveClassType(hier, types, ss.CalleeDeclClass),
				Subsignature: ss.CalleeSubsignature,
			},
			Args: args,
			Kind: parseInvokeKind(ss.InvokeKind),
		}, nil
	case "return":
		return &ir.Return{Var: v(ss.Var)}, nil
	case "makeclosure":
		captures := make([]*ir.Var, len(ss.Captures))
		for i, c := range ss.Captures {
			captures[i] = v(c)
		}
		return &ir.MakeClosure{
			LHS:  v(ss.LHS),
			Type: resolveType(hier, types, *ss.Type),
			Target: &ir.MethodRef{
				DeclType:     resolveClassType(hier, types, ss.CalleeDeclClass),
				Subsignature: ss.CalleeSubsignature,
			},
			Captures: captures,
		}, nil
	default:
		return nil, errs.Configf("unknown statement kind %q", ss.Kind)
	}
}

func buildField(hier *hierarchy.InMemory, types map[string]*ir.Type, ss stmtSpec) *ir.Field {
	f := &ir.Field{
		Name:      ss.FieldName,
		DeclClass: resolveClassType(hier, types, ss.FieldDeclClass),
		Static:    ss.FieldStatic,
	}
	if ss.FieldType != nil {
		f.Type = resolveType(hier, types, *ss.FieldType)
	}
	return f
}

func parseInvokeKind(s string) ir.InvokeKind {
	switch s {
	case "static":
		return ir.InvokeStatic
	case "virtual":
		return ir.InvokeVirtual
	case "special":
		return ir.InvokeSpecial
	case "interface":
		return ir.InvokeInterface
	default:
		return ir.InvokeOther
	}
}
