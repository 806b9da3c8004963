// Package hashmix provides avalanche mixing for identity hashes.
//
// Memo keys are machine addresses, and allocator address patterns are
// heavily structured (aligned, clustered, monotonic). Mix64 runs a
// SplitMix64-style finalizer over the raw bits so that every input bit
// affects every output bit, keeping probe distribution in the memo
// table independent of allocator behavior.
package hashmix

// Mix64 applies the SplitMix64 finalizer to x.
//
// The constants are the standard SplitMix64 increment and mixing
// multipliers. The output is a full-avalanche permutation of the
// input: flipping any input bit flips roughly half the output bits.
func Mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
