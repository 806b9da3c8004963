// Package fallback recovers copy hooks that misuse the registry
// handle.
//
// # Overview
//
// The registry handed to a user copy hook is documented as opaque,
// but hooks written against looser assumptions sometimes assert it to
// a concrete map type and fail when the assertion does not hold. The
// controller keeps such hooks working at a measured cost instead of
// failing the whole top-level copy:
//
//  1. Only type-assertion panics and assertion-class errors raised
//     directly by the hook are trapped; every other failure
//     propagates untouched.
//  2. The registry is rolled back to the checkpoint taken just before
//     the hook ran, undoing the failed attempt's partial
//     registrations.
//  3. The hook is re-driven with a plain map snapshot of the
//     registry, and on success the entries it added are merged back.
//  4. A one-time warning names the hook, its best-effort source
//     location, the one-line change that avoids the slow path, and
//     the environment toggles that tune this behavior.
//
// This is an availability/performance trade-off, not a correctness
// mechanism: the fast opaque registry is always preferred, and
// COPYKIT_NO_FALLBACK=1 restores strict behavior.
//
// # Environment
//
//   - COPYKIT_PORTABLE_MEMO: force the plain-mapping registry
//     everywhere (validates hook compatibility).
//   - COPYKIT_NO_FALLBACK: make the fallback-triggering error fatal.
//   - COPYKIT_IGNORE_HOOK_ERRORS: comma-separated error-message
//     suffixes whose diagnostics are suppressed (recovery still
//     happens).
package fallback
