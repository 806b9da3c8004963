package memo

import "sync"

var memoPool = sync.Pool{}

// AcquireMemo returns a reset memo from the pool, or a new one. The
// pool exists so back-to-back small copies do not reallocate a table
// per call; it is an explicit acquire/release pair rather than
// ambient per-thread state so callers and tests control the lifecycle.
func AcquireMemo() *Memo {
	if v := memoPool.Get(); v != nil {
		m := v.(*Memo)
		m.ResetWithPolicy()
		return m
	}
	return New()
}

// ReleaseMemo returns m to the pool. A memo whose handle escaped to
// user code is dropped instead: the user may still hold it, and a
// pooled memo must have exactly one owner.
func ReleaseMemo(m *Memo) {
	if m == nil || m.escaped {
		return
	}
	m.ResetWithPolicy()
	memoPool.Put(m)
}
