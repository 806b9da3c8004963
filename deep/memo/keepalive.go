package memo

// Keep retains a strong reference to src for the remainder of the
// session. No deduplication is performed; retaining the same source
// twice is harmless, while failing to retain it can let its address
// be reused mid-copy.
func (m *Memo) Keep(src any) {
	m.keep = append(m.keep, src)
}

// Keepalive returns a view of the sources retained so far.
func (m *Memo) Keepalive() KeepaliveView {
	return KeepaliveView{m: m}
}

// KeepaliveView is an order-preserving, append-only view over the
// memo's keepalive store. It forwards to the owning memo and owns no
// storage itself.
type KeepaliveView struct {
	m *Memo
}

// Len returns the number of retained sources.
func (v KeepaliveView) Len() int { return len(v.m.keep) }

// At returns the i-th retained source in retention order.
func (v KeepaliveView) At(i int) any { return v.m.keep[i] }

// Range calls fn for each retained source in retention order,
// stopping early when fn returns false.
func (v KeepaliveView) Range(fn func(src any) bool) {
	for _, s := range v.m.keep {
		if !fn(s) {
			return
		}
	}
}

// Append retains src, exactly like Memo.Keep.
func (v KeepaliveView) Append(src any) { v.m.Keep(src) }

// Clear releases every retained reference but keeps the underlying
// capacity for reuse within the session.
func (v KeepaliveView) Clear() {
	clear(v.m.keep)
	v.m.keep = v.m.keep[:0]
}

// ShrinkIfLarge releases the backing storage when it grew past the
// high water mark, same policy as the memo table.
func (v KeepaliveView) ShrinkIfLarge() {
	if cap(v.m.keep) > keepHighWater {
		v.m.keep = nil
	}
}

// Equal reports whether two views belong to the same memo. Two empty
// stores from different sessions are not interchangeable, so equality
// is owner identity, not content comparison.
func (v KeepaliveView) Equal(o KeepaliveView) bool {
	return v.m == o.m
}
