//go:build unix

package guard

import "golang.org/x/sys/unix"

const (
	// defaultBudget is used when the stack limit is unlimited or
	// unreadable.
	defaultBudget = 8 << 20

	// maxBudget caps the usable window even under a huge rlimit; the
	// guard only needs to fail before the runtime does.
	maxBudget = 64 << 20

	// minBudget keeps the window workable under a tiny rlimit.
	minBudget = 256 << 10
)

// stackBudget returns the usable stack window in bytes, derived from
// RLIMIT_STACK with a safety margin subtracted. Returns a non-zero
// value on unix; the guard probes the stack pointer against it.
func stackBudget() uintptr {
	var lim unix.Rlimit
	budget := uintptr(defaultBudget)
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &lim); err == nil &&
		lim.Cur != unix.RLIM_INFINITY && lim.Cur != 0 {
		budget = uintptr(lim.Cur)
	}
	if budget > maxBudget {
		budget = maxBudget
	}
	// Leave an eighth (at least 64 KiB) for the frames between the
	// probe and the true limit: hook code, runtime growth machinery,
	// panic handling.
	margin := budget / 8
	if margin < 64<<10 {
		margin = 64 << 10
	}
	if budget <= margin+minBudget {
		return minBudget
	}
	return budget - margin
}
