package ir

// Builder assembles an in-memory Program. It plays the role a real
// class-file frontend would play in production, restricted to what the
// solver's tests need to construct scenario programs directly (the
// pattern gopointer_test.go uses when it builds *ssa.Program fixtures by
// hand rather than compiling source).
type Builder struct {
	methods []*Method
	entries []*Method
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddMethod registers m as reachable-from-frontend. It does not by itself
// make m an entry point; call AddEntry for that.
func (b *Builder) AddMethod(m *Method) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// AddEntry registers m as an entry method and also as a known
// method if it was not already added.
func (b *Builder) AddEntry(m *Method) *Builder {
	b.entries = append(b.entries, m)
	for _, existing := range b.methods {
		if existing == m {
			return b
		}
	}
	b.methods = append(b.methods, m)
	return b
}

// Build finalizes the Program, first assigning stable site tokens to every
// method's allocation and call statements.
func (b *Builder) Build() Program {
	for _, m := range b.methods {
		m.AssignSites()
	}
	return &program{methods: b.methods, entries: b.entries}
}

type program struct {
	methods []*Method
	entries []*Method
}

func (p *program) Methods() []*Method      { return p.methods }
func (p *program) EntryMethods() []*Method { return p.entries }
