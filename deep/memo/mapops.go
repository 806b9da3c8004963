package memo

// Mapping-like operations over the memo.
//
// Copy hooks receive the memo as an opaque handle, but many hooks
// reasonably expect the handle to support basic mapping behavior
// (membership checks, reads, conditional writes). These operations
// exist so such hooks work against the fast registry directly instead
// of forcing the plain-mapping fallback for every case.

// Get returns the value registered for k.
func (m *Memo) Get(k Key) (any, bool) {
	return m.Lookup(k)
}

// Set registers v for k, replacing any existing entry.
func (m *Memo) Set(k Key, v any) {
	m.Insert(k, v)
}

// Contains reports whether k is registered.
func (m *Memo) Contains(k Key) bool {
	_, ok := m.Lookup(k)
	return ok
}

// Delete removes k and reports whether it was present.
func (m *Memo) Delete(k Key) bool {
	return m.Remove(k)
}

// Pop removes and returns the value registered for k.
func (m *Memo) Pop(k Key) (any, bool) {
	h := HashKey(k)
	v, ok := m.LookupH(k, h)
	if !ok {
		return nil, false
	}
	m.RemoveH(k, h)
	return v, true
}

// PopItem removes and returns an arbitrary entry. It returns false
// when the memo is empty.
func (m *Memo) PopItem() (Key, any, bool) {
	for i := range m.entries {
		if m.entries[i].state == slotLive {
			k, v := m.entries[i].key, m.entries[i].val
			m.RemoveH(k, m.entries[i].hash)
			return k, v, true
		}
	}
	return Key{}, nil, false
}

// SetDefault registers v for k if absent and returns the value now
// registered.
func (m *Memo) SetDefault(k Key, v any) any {
	h := HashKey(k)
	if cur, ok := m.LookupH(k, h); ok {
		return cur
	}
	m.InsertH(k, v, h)
	return v
}

// Update inserts every entry of o into m, replacing on key collision.
func (m *Memo) Update(o *Memo) {
	if o == nil || o == m {
		return
	}
	for i := range o.entries {
		if o.entries[i].state == slotLive {
			m.InsertH(o.entries[i].key, o.entries[i].val, o.entries[i].hash)
		}
	}
}

// Clone returns a new memo holding a shallow copy of the current
// entries and keepalive contents. The journal is not cloned; the
// clone starts with a fresh undo history.
func (m *Memo) Clone() *Memo {
	c := &Memo{
		entries: make([]entry, len(m.entries)),
		live:    m.live,
		filled:  m.filled,
	}
	copy(c.entries, m.entries)
	if len(m.keep) > 0 {
		c.keep = append(c.keep, m.keep...)
	}
	return c
}

// Equal reports whether m and o register the same copies for the same
// identities. Values are compared by identity, never structurally.
func (m *Memo) Equal(o *Memo) bool {
	if o == nil {
		return false
	}
	if m == o {
		return true
	}
	if m.live != o.live {
		return false
	}
	for i := range m.entries {
		if m.entries[i].state != slotLive {
			continue
		}
		ov, ok := o.LookupH(m.entries[i].key, m.entries[i].hash)
		if !ok || !sameRef(m.entries[i].val, ov) {
			return false
		}
	}
	return true
}

// Range calls fn for every live entry in table order, then once more
// with KeepaliveKey and the memo's KeepaliveView, so iterating the
// registry also exposes what is being kept alive. Iteration stops
// early when fn returns false. The memo must not be mutated during
// Range.
func (m *Memo) Range(fn func(k Key, v any) bool) {
	for i := range m.entries {
		if m.entries[i].state == slotLive {
			if !fn(m.entries[i].key, m.entries[i].val) {
				return
			}
		}
	}
	fn(KeepaliveKey, m.Keepalive())
}

// Snapshot returns the live entries as a plain map. Used by the
// fallback controller to re-drive a hook that cannot handle the
// opaque registry.
func (m *Memo) Snapshot() map[Key]any {
	out := make(map[Key]any, m.live)
	for i := range m.entries {
		if m.entries[i].state == slotLive {
			out[m.entries[i].key] = m.entries[i].val
		}
	}
	return out
}
