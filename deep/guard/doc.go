// Package guard bounds native stack consumption of the recursive
// dispatch engine.
//
// # Overview
//
// Each logical recursion level of a deep copy consumes several native
// frames (dispatch, shape specialization, reflect plumbing), so a
// sufficiently deep source graph can exhaust the stack long before any
// generic recursion limit would trigger. The runtime treats stack
// overflow as a fatal error, not a recoverable panic, so the engine
// must stop itself first.
//
// A Guard counts recursion depth and, to avoid paying for a bounds
// probe on every call, performs the expensive check only every
// CheckStride levels once depth exceeds the stride. The check probes
// the current stack pointer against a low-water mark derived when the
// guard was armed: entry stack pointer minus a budget obtained from
// the platform's stack limit (RLIMIT_STACK on unix, see
// stack_unix.go). On platforms without stack introspection the guard
// degrades to comparing depth against a configured maximum
// (stack_other.go).
//
// Goroutine stacks relocate when they grow. A probe that lands far
// outside the armed window is treated as a relocation and re-arms the
// guard from the current position; genuine exhaustion approaches the
// low-water mark gradually, a stride's worth of frames at a time.
//
// Exit must run on every path out of a recursion level, including
// error paths, so the engine defers it.
package guard
