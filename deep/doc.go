// Package deep copies arbitrary in-memory object graphs, preserving
// aliasing and cycles.
//
// # Overview
//
// This package implements a graph-aware deep copy: every node in the
// result is a fresh object (where the type requires one), and two
// references to the same source node become two references to the same
// copied node. Self-referential structures terminate because each
// container registers its copy before descending into its children.
//
// # Key Types
//
// The main types provided by this package are:
//
//   - Engine: an immutable, concurrency-safe copier configured by Options
//   - Options: recipe table, recursion limits, and fallback behavior
//   - memo.Memo: the per-session identity registry (see deep/memo)
//   - reduce.Copier / reduce.Reducer: customization hooks (see deep/reduce)
//
// # Copying
//
// The package-level entry points use a shared default engine:
//
//	out, err := deep.Copy(graph)
//
// To share aliasing across several copies, retain a registry handle
// and pass it to each call:
//
//	m := memo.New()
//	a2, _ := deep.CopyWith(a, m)
//	b2, _ := deep.CopyWith(b, m)   // nodes shared by a and b stay shared
//
// # Customization
//
// A type controls its own copying by implementing reduce.Copier, by
// implementing the reduce protocol (Reduce/ReduceEx returning a
// reconstruction recipe), or through a reduce.Table entry registered
// on the engine. Hooks receive the session registry as an opaque
// handle to pass back through CopyWith.
//
// # Safety
//
// Unbounded recursion on pathologically deep graphs is cut off by a
// stack guard (see deep/guard) and reported as guard.ErrStackExhausted
// rather than crashing the process. Containers mutated by user code
// while being copied are reported as ErrMutatedDuringCopy.
package deep
