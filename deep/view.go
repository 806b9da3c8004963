package deep

import "github.com/pcahill/copykit/deep/memo"

// memoView abstracts the registry the engine runs against: the fast
// identity table, or a plain map when the portable registry is forced
// or a caller passed one in.
type memoView interface {
	lookup(k memo.Key, h uint64) (any, bool)
	insert(k memo.Key, v any, h uint64)
	keep(src any)
	handle() any
}

// fastView runs against a *memo.Memo. Journaling of insertions is
// handled by the memo itself inside undo windows.
type fastView struct {
	m *memo.Memo
}

func (f fastView) lookup(k memo.Key, h uint64) (any, bool) { return f.m.LookupH(k, h) }
func (f fastView) insert(k memo.Key, v any, h uint64)      { f.m.InsertH(k, v, h) }
func (f fastView) keep(src any)                            { f.m.Keep(src) }
func (f fastView) handle() any                             { return f.m }

// portableView runs against a plain map. Hooks receive the map
// directly; the keepalive store lives beside it for the duration of
// the call.
type portableView struct {
	t    map[memo.Key]any
	kept []any
}

func (p *portableView) lookup(k memo.Key, _ uint64) (any, bool) {
	v, ok := p.t[k]
	return v, ok
}

func (p *portableView) insert(k memo.Key, v any, _ uint64) { p.t[k] = v }
func (p *portableView) keep(src any)                       { p.kept = append(p.kept, src) }
func (p *portableView) handle() any                        { return p.t }
