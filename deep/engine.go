package deep

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/pcahill/copykit/deep/memo"
	"github.com/pcahill/copykit/deep/reduce"
)

var (
	copierType    = reflect.TypeOf((*reduce.Copier)(nil)).Elem()
	reducerType   = reflect.TypeOf((*reduce.Reducer)(nil)).Elem()
	reducerExType = reflect.TypeOf((*reduce.ReducerEx)(nil)).Elem()
	emptyStruct   = reflect.TypeOf(struct{}{})
)

// copyValue dispatches one node. The order is fixed: literal fast
// path, registry hit, customization (hook, table, reduce protocol),
// then the shape-specialized generic paths.
func (e *Engine) copyValue(v reflect.Value, st *state) (res reflect.Value, err error) {
	if err := st.g.Enter(); err != nil {
		return reflect.Value{}, err
	}
	defer st.g.Exit()

	switch v.Kind() {
	case reflect.Invalid:
		return v, nil

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Copy-by-reference is semantically a deep copy here: the
		// value is immutable, or (func/chan) an opaque endpoint that
		// cannot be rebuilt and is shared by convention.
		return v, nil

	case reflect.Interface:
		if v.IsNil() {
			return v, nil
		}
		inner, err := e.copyValue(v.Elem(), st)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(v.Type()).Elem()
		if inner.IsValid() {
			out.Set(inner)
		}
		return out, nil

	case reflect.Pointer:
		return e.copyPointer(v, st)
	case reflect.Slice:
		return e.copySlice(v, st)
	case reflect.Array:
		return e.copyArray(v, st)
	case reflect.Map:
		return e.copyMap(v, st)
	case reflect.Struct:
		return e.copyStruct(v, st)
	default:
		return v, nil
	}
}

func (e *Engine) copyPointer(v reflect.Value, st *state) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	k := memo.Key{P: v.Pointer()}
	h := memo.HashKey(k)
	if hit, ok := st.view.lookup(k, h); ok {
		return conform(hit, v.Type())
	}
	if out, ok, err := e.tryCustom(v, &k, h, st); ok || err != nil {
		return out, err
	}

	// Placeholder first: the fresh pointer is registered before the
	// pointee is copied, so a cycle back to v resolves to it.
	np := reflect.New(v.Type().Elem())
	st.view.insert(k, np.Interface(), h)
	ec, err := e.copyValue(v.Elem(), st)
	if err != nil {
		return reflect.Value{}, err
	}
	if ec.IsValid() {
		np.Elem().Set(ec)
	}
	st.view.keep(v.Interface())
	return np, nil
}

func (e *Engine) copySlice(v reflect.Value, st *state) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	t := v.Type()
	n := v.Len()
	if n == 0 {
		// No stable identity to key on; a fresh empty slice is a
		// complete copy.
		return reflect.MakeSlice(t, 0, 0), nil
	}
	// Length is part of the identity: two slices over one backing
	// array with different lengths are different nodes.
	k := memo.Key{P: v.Pointer(), Aux: uintptr(n)}
	h := memo.HashKey(k)
	if hit, ok := st.view.lookup(k, h); ok {
		return conform(hit, t)
	}
	if out, ok, err := e.tryCustom(v, &k, h, st); ok || err != nil {
		return out, err
	}

	out := reflect.MakeSlice(t, n, n)
	if t.Elem().Kind() == reflect.Uint8 {
		// Byte buffer: bulk copy, no per-element dispatch.
		reflect.Copy(out, v)
		st.view.insert(k, out.Interface(), h)
		st.view.keep(v.Interface())
		return out, nil
	}
	st.view.insert(k, out.Interface(), h)
	for i := 0; i < n; i++ {
		ec, err := e.copyValue(v.Index(i), st)
		if err != nil {
			return reflect.Value{}, err
		}
		if ec.IsValid() {
			out.Index(i).Set(ec)
		}
	}
	st.view.keep(v.Interface())
	return out, nil
}

func (e *Engine) copyArray(v reflect.Value, st *state) (reflect.Value, error) {
	n := v.Len()
	if n == 0 {
		return v, nil
	}
	out := reflect.New(v.Type()).Elem()
	changed := false
	for i := 0; i < n; i++ {
		ev := v.Index(i)
		ec, err := e.copyValue(ev, st)
		if err != nil {
			return reflect.Value{}, err
		}
		if ec.IsValid() {
			out.Index(i).Set(ec)
			if !changed && !sameValue(ec, ev) {
				changed = true
			}
		}
	}
	if !changed {
		// Every element came back unchanged; the fresh array would be
		// indistinguishable, so return the original value.
		return v, nil
	}
	return out, nil
}

func (e *Engine) copyMap(v reflect.Value, st *state) (reflect.Value, error) {
	if v.IsNil() {
		return v, nil
	}
	k := memo.Key{P: v.Pointer()}
	h := memo.HashKey(k)
	if hit, ok := st.view.lookup(k, h); ok {
		return conform(hit, v.Type())
	}
	if out, ok, err := e.tryCustom(v, &k, h, st); ok || err != nil {
		return out, err
	}
	if v.Type().Elem() == emptyStruct {
		return e.copySet(v, k, h, st)
	}

	t := v.Type()
	n := v.Len()
	out := reflect.MakeMapWithSize(t, n)
	st.view.insert(k, out.Interface(), h)
	it := v.MapRange()
	for it.Next() {
		if v.Len() != n {
			return reflect.Value{}, fmt.Errorf("%w: %s changed size while copying", ErrMutatedDuringCopy, t)
		}
		ck, err := e.copyValue(it.Key(), st)
		if err != nil {
			return reflect.Value{}, err
		}
		cv, err := e.copyValue(it.Value(), st)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(ck, cv)
	}
	if v.Len() != n {
		return reflect.Value{}, fmt.Errorf("%w: %s changed size while copying", ErrMutatedDuringCopy, t)
	}
	st.view.keep(v.Interface())
	return out, nil
}

// copySet handles the map[K]struct{} set idiom. The key set is
// snapshotted before any child copy runs, so user code invoked while
// copying elements cannot corrupt the iteration.
func (e *Engine) copySet(v reflect.Value, k memo.Key, h uint64, st *state) (reflect.Value, error) {
	t := v.Type()
	keys := v.MapKeys()
	out := reflect.MakeMapWithSize(t, len(keys))
	st.view.insert(k, out.Interface(), h)
	unit := reflect.Zero(t.Elem())
	for _, mk := range keys {
		ck, err := e.copyValue(mk, st)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(ck, unit)
	}
	st.view.keep(v.Interface())
	return out, nil
}

func (e *Engine) copyStruct(v reflect.Value, st *state) (reflect.Value, error) {
	t := v.Type()
	if out, ok, err := e.tryCustom(v, nil, 0, st); ok || err != nil {
		return out, err
	}
	if !e.structNeedsCopy(t) {
		// Nothing reference-shaped inside; the value copy the caller
		// already holds is complete.
		return v, nil
	}

	// Shallow-copy the whole value first (unexported fields included),
	// then deep-fix the fields that need it, in place.
	out := reflect.New(t).Elem()
	out.Set(v)
	changed := false
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !e.fieldNeedsCopy(f.Type) {
			continue
		}
		fv := out.Field(i)
		if !f.IsExported() {
			fv = reflect.NewAt(f.Type, unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		ec, err := e.copyValue(fv, st)
		if err != nil {
			return reflect.Value{}, err
		}
		if ec.IsValid() && !sameValue(ec, fv) {
			fv.Set(ec)
			changed = true
		}
	}
	if !changed {
		return v, nil
	}
	return out, nil
}

// tryCustom applies, in order, the type's copy hook, its entry in the
// injected recipe table, and its own reduce protocol. Returns ok=false
// when none apply. k is nil for nodes without identity (value
// structs); such results are used directly, never registered.
func (e *Engine) tryCustom(v reflect.Value, k *memo.Key, h uint64, st *state) (reflect.Value, bool, error) {
	t := v.Type()

	if t.Implements(copierType) {
		hook := v.Interface().(reduce.Copier)
		out, err := e.invokeHook(t.String()+".DeepCopy", hook, st)
		if err != nil {
			return reflect.Value{}, true, err
		}
		rv, err := conform(out, t)
		if err != nil {
			return reflect.Value{}, true, err
		}
		if k != nil && !sameValue(rv, v) {
			st.view.insert(*k, out, h)
			st.view.keep(v.Interface())
		}
		return rv, true, nil
	}

	if fn, ok := e.table.Lookup(t); ok {
		rec, err := fn(v.Interface())
		if err != nil {
			return reflect.Value{}, true, err
		}
		out, err := e.applyRecipe(v, rec, k, h, st)
		return out, true, err
	}
	if t.Implements(reducerExType) {
		rec, err := v.Interface().(reduce.ReducerEx).ReduceEx()
		if err != nil {
			return reflect.Value{}, true, err
		}
		out, err := e.applyRecipe(v, rec, k, h, st)
		return out, true, err
	}
	if t.Implements(reducerType) {
		rec, err := v.Interface().(reduce.Reducer).Reduce()
		if err != nil {
			return reflect.Value{}, true, err
		}
		out, err := e.applyRecipe(v, rec, k, h, st)
		return out, true, err
	}

	return reflect.Value{}, false, nil
}

// invokeHook drives a user hook through the fallback controller when
// running against the fast registry. In portable mode the hook is
// given a plain snapshot up front and its additions merged back, so
// loosely written hooks can be validated without tripping the
// fallback.
func (e *Engine) invokeHook(name string, hook reduce.Copier, st *state) (any, error) {
	fn := func(handle any) (any, error) { return hook.DeepCopy(handle) }
	fv, fast := st.view.(fastView)
	if !fast {
		return fn(st.view.handle())
	}
	if e.portable {
		snap := fv.m.Snapshot()
		out, err := fn(snap)
		if err != nil {
			return nil, err
		}
		for sk, sv := range snap {
			if !fv.m.Contains(sk) {
				fv.m.Set(sk, sv)
			}
		}
		return out, nil
	}
	// The opaque handle is about to be visible to user code; the memo
	// can no longer be pooled after this call.
	fv.m.MarkEscaped()
	return e.ctrl.InvokeHook(name, hook, fn, fv.m)
}

// conform turns a registered or hook-produced value back into a
// reflect.Value of the expected type.
func conform(out any, want reflect.Type) (reflect.Value, error) {
	if out == nil {
		switch want.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface,
			reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrHookResult, want)
	}
	rv := reflect.ValueOf(out)
	if rv.Type() == want {
		return rv, nil
	}
	if !rv.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%w: %T for %s", ErrHookResult, out, want)
	}
	nv := reflect.New(want).Elem()
	nv.Set(rv)
	return nv, nil
}

// sameValue reports whether two values are the same node, by
// identity. Conservative: value kinds without identity compare equal
// only when their type is comparable and the bits match; aggregates
// report false, which merely disables a short-circuit.
func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem())
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() == b.Float()
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	default:
		return false
	}
}

// needsCopyCache memoizes per-type reachability of reference-shaped
// fields. Type-shape only; table entries are handled separately.
var needsCopyCache sync.Map // reflect.Type -> bool

func (e *Engine) structNeedsCopy(t reflect.Type) bool {
	if e.table.Len() > 0 {
		// A table entry on any nested type defeats the shape shortcut.
		return true
	}
	return typeNeedsCopy(t)
}

func (e *Engine) fieldNeedsCopy(t reflect.Type) bool {
	if e.table.Len() > 0 {
		return true
	}
	return typeNeedsCopy(t)
}

func typeNeedsCopy(t reflect.Type) bool {
	if v, ok := needsCopyCache.Load(t); ok {
		return v.(bool)
	}
	res := computeNeedsCopy(t, nil)
	needsCopyCache.Store(t, res)
	return res
}

func computeNeedsCopy(t reflect.Type, seen map[reflect.Type]bool) bool {
	if t.Implements(copierType) || t.Implements(reducerExType) || t.Implements(reducerType) ||
		reflect.PointerTo(t).Implements(copierType) {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	case reflect.Array:
		return computeNeedsCopy(t.Elem(), seen)
	case reflect.Struct:
		if seen[t] {
			return false
		}
		if seen == nil {
			seen = make(map[reflect.Type]bool)
		}
		seen[t] = true
		for i := 0; i < t.NumField(); i++ {
			if computeNeedsCopy(t.Field(i).Type, seen) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
