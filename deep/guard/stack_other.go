//go:build !unix

package guard

// stackBudget returns 0 on platforms without stack introspection,
// which puts the guard in depth-only mode.
func stackBudget() uintptr {
	return 0
}
