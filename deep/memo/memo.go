package memo

import (
	"math/bits"
	"reflect"

	"github.com/pcahill/copykit/internal/hashmix"
)

// Key identifies a source node by address.
//
// P is the node's address. Aux disambiguates nodes that share an
// address but are not the same node: a slice folds its length into
// Aux, so two slices over the same backing array with different
// lengths get distinct identities. For every other node kind Aux is 0.
type Key struct {
	P   uintptr
	Aux uintptr
}

// KeepaliveKey is the synthetic trailing key yielded by Range after
// all live entries. Its value is the memo's KeepaliveView, so hooks
// that iterate the registry observe what is being kept alive.
var KeepaliveKey = Key{P: ^uintptr(0), Aux: ^uintptr(0)}

// HashKey mixes a Key into a 64-bit hash. The engine computes this
// once per node and threads it through the *H call variants.
func HashKey(k Key) uint64 {
	return hashmix.Mix64(uint64(k.P) ^ bits.RotateLeft64(uint64(k.Aux), 32))
}

// Slot states. Deletion uses tombstones rather than compaction so
// probe sequences of colliding keys stay intact; tombstones are
// reclaimed only on resize.
const (
	slotEmpty uint8 = iota
	slotLive
	slotTombstone
)

type entry struct {
	hash  uint64
	key   Key
	val   any
	state uint8
}

const (
	// minCapacity is the smallest table allocation, in slots.
	minCapacity = 8

	// capHighWater and capShrinkTarget implement the reset policy: a
	// memo whose table grew past the high water mark during one huge
	// copy is shrunk back to the target on reset, so the pool does not
	// pin peak capacity forever.
	capHighWater    = 1 << 14
	capShrinkTarget = 1 << 8

	// keepHighWater bounds the keepalive vector retained across
	// resets, same policy as the table.
	keepHighWater = 1 << 12

	// logHighWater bounds the undo journal retained across resets.
	logHighWater = 1 << 12
)

// Memo is the identity registry for one copy session. The zero value
// is ready to use.
type Memo struct {
	entries []entry
	live    int // live entries
	filled  int // live entries plus tombstones

	keep []any

	log       []logRec
	undoDepth int

	escaped bool
}

// New returns an empty memo.
func New() *Memo {
	return &Memo{}
}

// Len returns the number of live entries.
func (m *Memo) Len() int { return m.live }

// Cap returns the current table capacity in slots.
func (m *Memo) Cap() int { return len(m.entries) }

// Stats describes the memo's current occupancy.
type Stats struct {
	Live       int
	Capacity   int
	Tombstones int
	Keepalive  int
	LogLen     int
}

// Stats returns current occupancy counters.
func (m *Memo) Stats() Stats {
	return Stats{
		Live:       m.live,
		Capacity:   len(m.entries),
		Tombstones: m.filled - m.live,
		Keepalive:  len(m.keep),
		LogLen:     len(m.log),
	}
}

// Lookup returns the copy registered for k, if any.
func (m *Memo) Lookup(k Key) (any, bool) {
	return m.LookupH(k, HashKey(k))
}

// LookupH is Lookup with a precomputed hash.
func (m *Memo) LookupH(k Key, h uint64) (any, bool) {
	if m.live == 0 {
		return nil, false
	}
	mask := uint64(len(m.entries) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		e := &m.entries[i]
		switch e.state {
		case slotEmpty:
			return nil, false
		case slotLive:
			if e.key == k {
				return e.val, true
			}
		}
	}
}

// Insert registers v as the copy for k and reports whether an
// existing entry was replaced. Inside an undo window a first-time
// insertion is journaled; replacements never are.
func (m *Memo) Insert(k Key, v any) bool {
	return m.InsertH(k, v, HashKey(k))
}

// InsertH is Insert with a precomputed hash.
func (m *Memo) InsertH(k Key, v any, h uint64) bool {
	return m.insert(k, v, h, m.undoDepth > 0)
}

func (m *Memo) insert(k Key, v any, h uint64, logNew bool) bool {
	if m.entries == nil || (m.filled+1)*10 >= len(m.entries)*7 {
		m.resize(2 * len(m.entries))
	}
	mask := uint64(len(m.entries) - 1)
	tomb := -1
	for i := h & mask; ; i = (i + 1) & mask {
		e := &m.entries[i]
		switch e.state {
		case slotEmpty:
			// First tombstone on the probe path is the insertion slot;
			// it is already counted in filled.
			if tomb >= 0 {
				e = &m.entries[tomb]
			} else {
				m.filled++
			}
			e.state = slotLive
			e.key = k
			e.hash = h
			e.val = v
			m.live++
			if logNew {
				m.log = append(m.log, logRec{key: k, hash: h})
			}
			return false
		case slotTombstone:
			if tomb < 0 {
				tomb = int(i)
			}
		case slotLive:
			if e.key == k {
				e.val = v
				return true
			}
		}
	}
}

// Remove deletes the entry for k and reports whether it was present.
func (m *Memo) Remove(k Key) bool {
	return m.RemoveH(k, HashKey(k))
}

// RemoveH is Remove with a precomputed hash.
func (m *Memo) RemoveH(k Key, h uint64) bool {
	if m.live == 0 {
		return false
	}
	mask := uint64(len(m.entries) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		e := &m.entries[i]
		switch e.state {
		case slotEmpty:
			return false
		case slotLive:
			if e.key == k {
				e.state = slotTombstone
				e.key = Key{}
				e.val = nil
				m.live--
				return true
			}
		}
	}
}

// Resize grows the table to hold at least min slots. Shrinking below
// the current live count is not possible; rehashing drops tombstones.
func (m *Memo) Resize(min int) {
	m.resize(min)
}

func (m *Memo) resize(min int) {
	newCap := minCapacity
	for newCap < min {
		newCap <<= 1
	}
	// Rehashing drops tombstones, but the new table must still sit
	// under the growth trigger for the live entries alone.
	for m.live*10 >= newCap*7 {
		newCap <<= 1
	}
	old := m.entries
	m.entries = make([]entry, newCap)
	m.live = 0
	m.filled = 0
	for i := range old {
		if old[i].state == slotLive {
			m.insertFresh(old[i].key, old[i].val, old[i].hash)
		}
	}
}

// insertFresh inserts into a table known to contain no tombstones and
// no duplicate of k. Used only by resize.
func (m *Memo) insertFresh(k Key, v any, h uint64) {
	mask := uint64(len(m.entries) - 1)
	i := h & mask
	for m.entries[i].state != slotEmpty {
		i = (i + 1) & mask
	}
	m.entries[i] = entry{hash: h, key: k, val: v, state: slotLive}
	m.live++
	m.filled++
}

// Clear drops all entries and their value references but keeps the
// table capacity. The keepalive store and journal are not touched.
func (m *Memo) Clear() {
	for i := range m.entries {
		m.entries[i] = entry{}
	}
	m.live = 0
	m.filled = 0
}

// ResetWithPolicy clears the memo for reuse: entries, keepalive store
// and journal are dropped, and any structure that grew past its high
// water mark is shrunk back to a small target. This amortizes the
// memory of a huge one-off copy without reallocating on every small
// one.
func (m *Memo) ResetWithPolicy() {
	if len(m.entries) > capHighWater {
		m.entries = make([]entry, capShrinkTarget)
		m.live = 0
		m.filled = 0
	} else {
		m.Clear()
	}
	if cap(m.keep) > keepHighWater {
		m.keep = nil
	} else {
		clear(m.keep)
		m.keep = m.keep[:0]
	}
	if cap(m.log) > logHighWater {
		m.log = nil
	} else {
		m.log = m.log[:0]
	}
	m.undoDepth = 0
	m.escaped = false
}

// MarkEscaped records that the memo handle was exposed to user code
// during a copy. An escaped memo is never returned to the pool, since
// the user code may have retained the handle.
func (m *Memo) MarkEscaped() { m.escaped = true }

// Escaped reports whether MarkEscaped was called since the last reset.
func (m *Memo) Escaped() bool { return m.escaped }

// sameRef reports whether a and b are the same object, by identity.
// Structural comparison is never attempted: values here are graph
// nodes, and structural equality of cyclic graphs is not computable.
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	default:
		if ra.Comparable() {
			return a == b
		}
		return false
	}
}
