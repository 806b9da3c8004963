package fallback

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/pcahill/copykit/deep/memo"
	"github.com/pcahill/copykit/deep/reduce"
)

// HookError wraps a failure raised directly by a user copy hook.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("fallback: hook %s failed: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Controller drives hook invocations and the plain-mapping retry.
// Safe for concurrent use; the one-time warning set is shared.
type Controller struct {
	opts   Options
	log    *slog.Logger
	warned sync.Map // error signature -> struct{}
}

// NewController returns a controller with the given options. A nil
// logger selects slog.Default.
func NewController(opts Options, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{opts: opts, log: log}
}

// PortableMemo reports whether the plain-mapping registry is forced
// everywhere.
func (c *Controller) PortableMemo() bool { return c.opts.PortableMemo }

// InvokeHook runs fn — the invocation of the named user hook — against
// the fast registry, recovering a registry-misuse failure by retrying
// against a plain map snapshot. hook is the value whose DeepCopy
// method is being invoked; it is used only for the best-effort
// call-site diagnostic.
//
// Registrations made while fn runs are journaled; on the eligible
// failure class they are rolled back to the checkpoint before the
// retry, so the retry's final state contains exactly the entries the
// retry itself produced.
func (c *Controller) InvokeHook(hookName string, hook any, fn func(handle any) (any, error), m *memo.Memo) (any, error) {
	cp := m.BeginUndo()
	out, err := func() (any, error) {
		defer m.EndUndo() // unwind the window even if the hook panics
		return invoke(hookName, fn, m)
	}()
	if err == nil {
		return out, nil
	}
	if !Eligible(err) || c.opts.NoFallback {
		return nil, err
	}

	m.Rollback(cp)
	snap := m.Snapshot()
	before := len(snap)
	out, retryErr := invoke(hookName, fn, snap)
	if retryErr != nil {
		return nil, retryErr
	}
	merged := 0
	for k, v := range snap {
		if !m.Contains(k) {
			m.Set(k, v)
			merged++
		}
	}
	_ = before // size recorded for the diagnostic; existing keys were never touched
	if !c.ignored(err) {
		c.warnOnce(hookName, hook, err, merged)
	}
	return out, nil
}

// Eligible reports whether err is in the one failure class the
// controller recovers: a type-assertion failure or an assertion-class
// error raised directly by the hook.
func Eligible(err error) bool {
	var ta *runtime.TypeAssertionError
	return errors.As(err, &ta) || errors.Is(err, reduce.ErrAssertion)
}

// invoke runs fn with the given handle, converting a type-assertion
// panic into an error. Any other panic is the hook's own bug and is
// re-raised.
func invoke(hookName string, fn func(handle any) (any, error), handle any) (out any, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ta, ok := r.(*runtime.TypeAssertionError); ok {
			out, err = nil, &HookError{Hook: hookName, Err: ta}
			return
		}
		panic(r)
	}()
	out, err = fn(handle)
	if err != nil {
		err = &HookError{Hook: hookName, Err: err}
	}
	return out, err
}

func (c *Controller) ignored(err error) bool {
	msg := err.Error()
	for _, suffix := range c.opts.IgnoreSuffixes {
		if strings.HasSuffix(msg, suffix) {
			return true
		}
	}
	return false
}

// warnOnce emits the remediation diagnostic the first time each error
// signature is seen. Best-effort: source lookup failures degrade the
// message, never fail the copy.
func (c *Controller) warnOnce(hookName string, hook any, err error, merged int) {
	sig := err.Error()
	if _, loaded := c.warned.LoadOrStore(sig, struct{}{}); loaded {
		return
	}
	file, line := hookSite(hook)
	msg := RenderDiagnostic(hookName, file, line, sourceLine(file, line), sig)
	c.log.Warn(msg,
		slog.String("hook", hookName),
		slog.Int("entries_merged", merged),
	)
}
