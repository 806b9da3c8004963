package memo

// Checkpoint marks a position in the undo journal. It is the journal
// length at the time of the mark.
type Checkpoint int

type logRec struct {
	key  Key
	hash uint64
}

// Mark returns a checkpoint for the current journal position.
func (m *Memo) Mark() Checkpoint {
	return Checkpoint(len(m.log))
}

// BeginUndo opens an undo window and returns its checkpoint. While at
// least one window is open, every first-time insertion is journaled
// and can be undone by Rollback. Windows nest; each BeginUndo must be
// paired with EndUndo.
func (m *Memo) BeginUndo() Checkpoint {
	m.undoDepth++
	return m.Mark()
}

// EndUndo closes the innermost undo window. The journal is not
// truncated; a successful window's entries simply become permanent.
func (m *Memo) EndUndo() {
	if m.undoDepth > 0 {
		m.undoDepth--
	}
}

// LoggedInsert registers v for k through the journal regardless of
// any undo window, so the insertion is undoable. Only a first-time
// insertion is journaled: replacing an existing entry changes no
// visibility and needs no undo record.
func (m *Memo) LoggedInsert(k Key, v any) bool {
	return m.LoggedInsertH(k, v, HashKey(k))
}

// LoggedInsertH is LoggedInsert with a precomputed hash.
func (m *Memo) LoggedInsertH(k Key, v any, h uint64) bool {
	return m.insert(k, v, h, true)
}

// Rollback removes every entry journaled after cp, in journal order,
// and truncates the journal to cp. Entries already removed by other
// means are tolerated.
func (m *Memo) Rollback(cp Checkpoint) {
	if cp < 0 {
		cp = 0
	}
	if int(cp) >= len(m.log) {
		return
	}
	for i := int(cp); i < len(m.log); i++ {
		m.RemoveH(m.log[i].key, m.log[i].hash)
	}
	m.log = m.log[:cp]
}

// ClearLog drops the journal without touching registered entries.
// Everything inserted so far becomes permanent.
func (m *Memo) ClearLog() {
	m.log = m.log[:0]
}

// ShrinkLogIfLarge releases the journal's backing storage when it
// grew past the high water mark.
func (m *Memo) ShrinkLogIfLarge() {
	if cap(m.log) > logHighWater {
		m.log = nil
	}
}
