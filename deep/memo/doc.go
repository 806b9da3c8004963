// Package memo provides the identity-keyed registry backing a deep
// copy session.
//
// # Overview
//
// A Memo maps the identity of a source node (its address) to the copy
// produced for it. The dispatch engine registers a copy before
// recursing into the node's children, which is what makes cyclic and
// shared structures terminate: any later encounter of the same
// identity resolves to the already-registered copy instead of
// recursing again.
//
// The table is open-addressed with linear probing. Capacity is always
// a power of two and the load factor is kept under 0.7, counting
// tombstones, so probe sequences stay short even after heavy deletion.
// Keys are raw addresses run through an avalanche mixer
// (internal/hashmix), making bucket distribution independent of
// allocator address patterns. Equality is identity equality only;
// structural equality of possibly-cyclic graphs is never computed.
//
// # Key Components
//
//   - Memo: the registry itself, with both a precomputed-hash API
//     (LookupH/InsertH/RemoveH) for the engine's hot path and a
//     mapping-like API (Get/Set/Delete/Pop/Update/...) for copy hooks
//     that expect basic mapping behavior from the handle.
//   - KeepaliveView: an order-preserving view of the sources retained
//     for the duration of the session (see below).
//   - Checkpoint: a mark in the undo journal; Rollback removes every
//     registration logged after the mark.
//   - AcquireMemo/ReleaseMemo: a pool for ephemeral per-call memos
//     with a reset-on-release shrink policy.
//
// # Keepalive
//
// The memo is keyed by address. If a source node were reclaimed while
// a copy is still in progress, its address could be reused by a fresh
// allocation and a later lookup would alias two distinct nodes. Every
// source whose registered copy is a distinct object is therefore
// appended to the keepalive store before the registry entry is relied
// upon. Over-retention is always safe; entries are released on Clear
// or reset.
//
// # Undo Journal
//
// Registrations made inside an undo window (BeginUndo/EndUndo, used
// around user hook invocations) are logged so a failing hook's partial
// registrations can be rolled back to the checkpoint. Only first-time
// insertions are logged: rollback needs to undo new visibility, not
// restore prior values. Insertions outside any undo window are
// permanent for the memo's lifetime.
//
// # Thread Safety
//
// A Memo is not synchronized. Each copy operation runs on a single
// goroutine with its own memo; sharing one memo across goroutines is
// the caller's responsibility.
package memo
