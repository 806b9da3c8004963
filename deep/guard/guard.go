package guard

import (
	"errors"
	"unsafe"
)

// CheckStride is how many recursion levels pass between stack probes.
const CheckStride = 32

// DefaultMaxDepth bounds recursion when no stack introspection is
// available. Deep enough for any reasonable graph, shallow enough to
// fail before a default goroutine stack does.
const DefaultMaxDepth = 100_000

// ErrStackExhausted is returned when a copy would run out of native
// stack. It propagates as an ordinary error; the process is not
// aborted.
var ErrStackExhausted = errors.New("guard: recursion would exhaust native stack")

// Guard tracks recursion depth for one copy operation. Not
// synchronized; one guard per call, on the calling goroutine.
type Guard struct {
	depth    int
	maxDepth int

	entry  uintptr // stack pointer when armed
	floor  uintptr // low-water mark; 0 means depth-only mode
	budget uintptr
}

// New returns a guard with the given depth cap for depth-only mode.
// A non-positive cap selects DefaultMaxDepth.
func New(maxDepth int) *Guard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Guard{maxDepth: maxDepth}
}

// Arm resets depth and captures the stack window for probing. Called
// once at the top of each copy operation, on the goroutine that will
// recurse.
func (g *Guard) Arm() {
	g.depth = 0
	g.entry = currentSP()
	g.budget = stackBudget()
	if g.budget != 0 && g.entry > g.budget {
		g.floor = g.entry - g.budget
	} else {
		g.floor = 0
	}
}

// Enter records one recursion level and, on stride boundaries, checks
// the stack bound. The caller must pair every successful Enter with
// Exit, deferred so error paths unwind the count too.
func (g *Guard) Enter() error {
	g.depth++
	if g.depth <= CheckStride || g.depth%CheckStride != 0 {
		return nil
	}
	// The depth cap backstops both modes: stack relocation re-arms the
	// probe window, so the probe alone cannot bound total growth.
	if g.depth > g.maxDepth {
		return ErrStackExhausted
	}
	if g.floor == 0 {
		return nil
	}
	sp := currentSP()
	if sp > g.entry || sp < g.floor-g.budget/2 {
		// The goroutine stack relocated; re-derive the window from the
		// current position. Genuine exhaustion moves toward the floor a
		// stride of frames at a time, never in one jump past it.
		g.entry = sp
		if sp > g.budget {
			g.floor = sp - g.budget
		} else {
			g.floor = 0
		}
		return nil
	}
	if sp <= g.floor {
		return ErrStackExhausted
	}
	return nil
}

// Exit unwinds one recursion level.
func (g *Guard) Exit() {
	if g.depth > 0 {
		g.depth--
	}
}

// Depth returns the current recursion depth.
func (g *Guard) Depth() int { return g.depth }

// currentSP approximates the current stack pointer with the address
// of a local.
//
//go:noinline
func currentSP() uintptr {
	var probe byte
	return uintptr(unsafe.Pointer(&probe))
}
