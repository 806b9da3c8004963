package deep

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/pcahill/copykit/deep/fallback"
	"github.com/pcahill/copykit/deep/guard"
	"github.com/pcahill/copykit/deep/memo"
	"github.com/pcahill/copykit/deep/reduce"
)

// Options configures an Engine.
type Options struct {
	// Reducers is the injected recipe table for opaque types, keyed by
	// exact type. Nil means no table entries.
	Reducers *reduce.Table

	// MaxDepth caps recursion when stack introspection is unavailable
	// and backstops the stack probe when it is. Non-positive selects
	// guard.DefaultMaxDepth.
	MaxDepth int

	// PortableMemo forces the plain-mapping registry everywhere. Also
	// settable via COPYKIT_PORTABLE_MEMO.
	PortableMemo bool

	// NoFallback makes registry-misuse hook errors fatal instead of
	// recovered. Also settable via COPYKIT_NO_FALLBACK.
	NoFallback bool

	// IgnoreHookErrors suppresses the fallback diagnostic for error
	// messages ending in one of these suffixes. Also settable via
	// COPYKIT_IGNORE_HOOK_ERRORS.
	IgnoreHookErrors []string

	// Logger receives the fallback diagnostics. Nil selects
	// slog.Default.
	Logger *slog.Logger
}

// Engine performs deep copies. Engines are immutable after New and
// safe for concurrent use; each copy operation gets its own memo and
// guard.
type Engine struct {
	table    *reduce.Table
	ctrl     *fallback.Controller
	maxDepth int
	portable bool
}

// New builds an engine from opts merged with the COPYKIT_* environment
// toggles. The environment is read here, once, not per copy.
func New(opts Options) *Engine {
	fopts := fallback.FromEnv().Merge(fallback.Options{
		PortableMemo:   opts.PortableMemo,
		NoFallback:     opts.NoFallback,
		IgnoreSuffixes: opts.IgnoreHookErrors,
	})
	tbl := opts.Reducers
	if tbl == nil {
		tbl = reduce.NewTable()
	}
	return &Engine{
		table:    tbl,
		ctrl:     fallback.NewController(fopts, opts.Logger),
		maxDepth: opts.MaxDepth,
		portable: fopts.PortableMemo,
	}
}

// std is the default engine behind the package-level entry points.
// Swapped atomically so SetLogger is safe against concurrent copies.
var std atomic.Pointer[Engine]

func init() {
	std.Store(New(Options{}))
}

// SetLogger replaces the default engine with one whose fallback
// diagnostics go to l. The default engine carries no other
// configuration, so nothing else changes; engines built with New take
// their logger through Options instead.
func SetLogger(l *slog.Logger) {
	std.Store(New(Options{Logger: l}))
}

// Copy deep-copies root with the default engine.
func Copy(root any) (any, error) {
	return std.Load().Copy(root)
}

// CopyWith deep-copies root with the default engine against a
// caller-supplied registry handle. See Engine.CopyWith.
func CopyWith(root any, handle any) (any, error) {
	return std.Load().CopyWith(root, handle)
}

// Must is Copy that panics on error. For initialization paths and
// tests.
func Must(root any) any {
	out, err := Copy(root)
	if err != nil {
		panic(err)
	}
	return out
}

// MustCopy is Copy that panics on error.
func (e *Engine) MustCopy(root any) any {
	out, err := e.Copy(root)
	if err != nil {
		panic(err)
	}
	return out
}

// Copy deep-copies root in a fresh session. The ephemeral memo comes
// from the pool and is returned to it afterwards unless its handle
// escaped to a user hook.
func (e *Engine) Copy(root any) (any, error) {
	if e.portable {
		return e.run(root, &portableView{t: make(map[memo.Key]any)})
	}
	m := memo.AcquireMemo()
	out, err := e.run(root, fastView{m: m})
	memo.ReleaseMemo(m)
	return out, err
}

// CopyWith deep-copies root against a caller-supplied registry. The
// handle is a *memo.Memo (the fast registry; retaining it across
// calls makes those calls one shared copy session) or a plain
// map[memo.Key]any (the portable registry hooks may prefer). A nil
// handle behaves like Copy. Caller-supplied registries are never
// pooled and keep their entries after the call.
func (e *Engine) CopyWith(root any, handle any) (any, error) {
	switch h := handle.(type) {
	case nil:
		return e.Copy(root)
	case *memo.Memo:
		if h == nil {
			return e.Copy(root)
		}
		return e.run(root, fastView{m: h})
	case map[memo.Key]any:
		return e.run(root, &portableView{t: h})
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadHandle, handle)
	}
}

func (e *Engine) run(root any, view memoView) (any, error) {
	if root == nil {
		return nil, nil
	}
	st := &state{view: view, g: guard.New(e.maxDepth)}
	st.g.Arm()
	out, err := e.copyValue(reflect.ValueOf(root), st)
	if err != nil {
		return nil, err
	}
	return valueInterface(out), nil
}

// state is the per-call context threaded through the recursion.
type state struct {
	view memoView
	g    *guard.Guard
}

func valueInterface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}
