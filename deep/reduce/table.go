package reduce

import "reflect"

// Func produces the recipe for one value of the registered type.
type Func func(v any) (Recipe, error)

// Table maps exact types to recipe producers. It is an explicit,
// injected collaborator: build it at startup, register entries, hand
// it to the engine, and treat it as read-only afterwards. Lookup is
// by exact reflect.Type; there is no assignability or interface
// matching, mirroring the identity-only semantics of the registry.
type Table struct {
	m map[reflect.Type]Func
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{m: make(map[reflect.Type]Func)}
}

// Register binds fn as the recipe producer for exact type t,
// replacing any previous binding.
func (t *Table) Register(rt reflect.Type, fn Func) {
	t.m[rt] = fn
}

// RegisterFor is Register keyed by the dynamic type of example.
func (t *Table) RegisterFor(example any, fn Func) {
	t.Register(reflect.TypeOf(example), fn)
}

// Lookup returns the producer registered for exact type rt.
func (t *Table) Lookup(rt reflect.Type) (Func, bool) {
	if t == nil || t.m == nil {
		return nil, false
	}
	fn, ok := t.m[rt]
	return fn, ok
}

// Len returns the number of registered types.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.m)
}
