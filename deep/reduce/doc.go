// Package reduce defines the reconstruction protocol that lets opaque
// types participate in deep copies without shape-specific engine code.
//
// # Overview
//
// The dispatch engine knows how to copy the built-in shapes (slices,
// maps, arrays, structs, pointers). Everything else is rebuilt from a
// Recipe: a constructor, its arguments, optional post-construction
// state, and optional item streams. A type supplies its recipe one of
// three ways, in the engine's preference order:
//
//  1. A one-argument copy hook (Copier), which performs the whole copy
//     itself and receives the session registry as an opaque handle.
//  2. An entry in an engine-injected Table, keyed by exact type. The
//     table is populated at startup and read-only afterwards.
//  3. The value's own ReduceEx method, falling back to the legacy
//     Reduce form.
//
// # Recipes
//
// Recipe.New is normally a constructor func, called generically with
// the deep-copied Args. Two sentinels are recognized instead of a
// func: NewObject ("allocate the type raw, no constructor") and
// NewObjectEx ("allocate raw, then set the given fields"). After
// construction the engine registers the instance immediately — before
// state is applied — which is what makes self-referential recipes
// terminate.
//
// State is applied through StateSetter when implemented; otherwise
// the default semantics accept either a plain field map or a two-part
// state (generic attribute map, then individual field assignments).
// ListItems streams into an Appender; DictItems streams into an
// ItemSetter or a map.
package reduce
