package reduce

import "errors"

// ErrAssertion is the error a copy hook should return (or wrap) when
// an assumption about the registry handle fails. The fallback
// controller treats it, like a type-assertion panic, as eligible for
// the plain-mapping retry.
var ErrAssertion = errors.New("reduce: hook assertion failed")

// Copier is the one-argument deep-copy hook. The engine calls it with
// the session registry as an opaque handle; a hook that needs to copy
// sub-objects passes the handle through to deep.CopyWith so aliasing
// and cycles stay resolved within the same session.
//
// The handle's concrete type is an implementation detail. Hooks that
// must inspect it should use the mapping-like methods of *memo.Memo
// rather than asserting a concrete map type.
type Copier interface {
	DeepCopy(memo any) (any, error)
}

// Reducer supplies a reconstruction recipe for the receiver. Legacy
// form; new types should implement ReducerEx.
type Reducer interface {
	Reduce() (Recipe, error)
}

// ReducerEx is the extended reduce protocol. When both are present
// the engine prefers ReducerEx.
type ReducerEx interface {
	ReduceEx() (Recipe, error)
}

// StateSetter receives the deep-copied state of a recipe instead of
// the default state semantics.
type StateSetter interface {
	SetState(state any) error
}

// Appender receives the deep-copied elements streamed by a recipe's
// ListItems.
type Appender interface {
	Append(item any) error
}

// ItemSetter receives the deep-copied pairs streamed by a recipe's
// DictItems.
type ItemSetter interface {
	SetItem(key, value any) error
}

// AttrStore exposes a generic attribute map. The default state
// semantics merge the first part of a two-part state into this store
// when the instance provides one.
type AttrStore interface {
	Attrs() map[string]any
}

// Recipe describes how to rebuild one node.
type Recipe struct {
	// New is the constructor: a func value called with the deep-copied
	// Args, or one of the NewObject/NewObjectEx sentinels.
	New any

	// Args are the constructor arguments. They are deep-copied before
	// the call; for the sentinels, the leading reflect.Type argument
	// is exempt.
	Args []any

	// State, if non-nil, is deep-copied and applied after the instance
	// is constructed and registered.
	State any

	// ListItems, if non-nil, streams elements to append to the
	// instance, each deep-copied.
	ListItems func(yield func(item any) bool)

	// DictItems, if non-nil, streams key/value pairs to assign on the
	// instance, each deep-copied.
	DictItems func(yield func(key, value any) bool)
}

// sentinel is a unique constructor marker. Pointer identity is the
// whole point; the name only aids diagnostics.
type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

// NewObject directs the engine to allocate the type given as Args[0]
// (a reflect.Type) through the runtime's raw allocator. No further
// positional arguments are meaningful in this form.
var NewObject = &sentinel{name: "reduce.NewObject"}

// NewObjectEx is NewObject with field initialization: Args[0] is the
// type, Args[1] a map[string]any of fields to set on the fresh
// instance, deep-copied before assignment.
var NewObjectEx = &sentinel{name: "reduce.NewObjectEx"}
