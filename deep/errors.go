package deep

import "errors"

var (
	// ErrBadRecipe indicates a reconstruction recipe of unexpected
	// shape: missing constructor, wrong arity, a sentinel without its
	// type argument, or state that matches no known form.
	ErrBadRecipe = errors.New("deep: malformed reconstruction recipe")

	// ErrNotConstructor indicates a recipe constructor that is neither
	// a func nor a recognized sentinel.
	ErrNotConstructor = errors.New("deep: recipe constructor is not callable")

	// ErrMutatedDuringCopy indicates a container whose structure
	// changed while its elements were being copied, typically by a
	// hook reachable from one of those elements.
	ErrMutatedDuringCopy = errors.New("deep: container mutated during copy")

	// ErrBadHandle indicates a registry handle that is neither a
	// *memo.Memo nor a plain map[memo.Key]any.
	ErrBadHandle = errors.New("deep: unsupported registry handle")

	// ErrHookResult indicates a copy hook that returned a value not
	// assignable to the source's type.
	ErrHookResult = errors.New("deep: hook returned incompatible value")
)
