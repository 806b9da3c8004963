package deep

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/pcahill/copykit/deep/memo"
	"github.com/pcahill/copykit/deep/reduce"
)

// applyRecipe rebuilds src from rec: construct, register, then apply
// state and streamed items. Registration happens before state so a
// cycle through the state resolves to the fresh instance; the registry
// is re-checked first because a hook run while copying Args may have
// already registered this node.
func (e *Engine) applyRecipe(src reflect.Value, rec reduce.Recipe, k *memo.Key, h uint64, st *state) (reflect.Value, error) {
	inst, err := e.construct(src, rec, st)
	if err != nil {
		return reflect.Value{}, err
	}

	if k != nil {
		if hit, ok := st.view.lookup(*k, h); ok {
			return conform(hit, src.Type())
		}
		st.view.insert(*k, inst.Interface(), h)
	}

	if rec.State != nil {
		if err := e.applyState(inst, rec.State, st); err != nil {
			return reflect.Value{}, err
		}
	}
	if rec.ListItems != nil {
		if err := e.applyListItems(inst, rec.ListItems, st); err != nil {
			return reflect.Value{}, err
		}
	}
	if rec.DictItems != nil {
		if err := e.applyDictItems(inst, rec.DictItems, st); err != nil {
			return reflect.Value{}, err
		}
	}

	if k != nil {
		st.view.keep(src.Interface())
	}
	return conform(inst.Interface(), src.Type())
}

func (e *Engine) construct(src reflect.Value, rec reduce.Recipe, st *state) (reflect.Value, error) {
	switch rec.New {
	case nil:
		return reflect.Value{}, fmt.Errorf("%w: recipe for %s has no constructor", ErrBadRecipe, src.Type())
	case reduce.NewObject:
		rt, err := sentinelType(rec, src)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(rec.Args) > 1 {
			return reflect.Value{}, fmt.Errorf("%w: %v takes no arguments beyond the type", ErrBadRecipe, reduce.NewObject)
		}
		return allocFor(rt, src.Type()), nil
	case reduce.NewObjectEx:
		rt, err := sentinelType(rec, src)
		if err != nil {
			return reflect.Value{}, err
		}
		inst := allocFor(rt, src.Type())
		if len(rec.Args) > 1 {
			if _, ok := rec.Args[1].(map[string]any); !ok {
				return reflect.Value{}, fmt.Errorf("%w: %v field map is %T", ErrBadRecipe, reduce.NewObjectEx, rec.Args[1])
			}
			cf, err := e.copyAny(rec.Args[1], st)
			if err != nil {
				return reflect.Value{}, err
			}
			if err := e.setFields(inst, cf.(map[string]any)); err != nil {
				return reflect.Value{}, err
			}
		}
		return inst, nil
	}

	fn := reflect.ValueOf(rec.New)
	if fn.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%w: %T", ErrNotConstructor, rec.New)
	}
	ft := fn.Type()
	if !ft.IsVariadic() && ft.NumIn() != len(rec.Args) {
		return reflect.Value{}, fmt.Errorf("%w: constructor wants %d args, recipe has %d", ErrBadRecipe, ft.NumIn(), len(rec.Args))
	}
	args := make([]reflect.Value, len(rec.Args))
	for i, a := range rec.Args {
		ca, err := e.copyAny(a, st)
		if err != nil {
			return reflect.Value{}, err
		}
		var want reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else {
			want = ft.In(i)
		}
		av, err := conform(ca, want)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: arg %d: %T not assignable to %s", ErrBadRecipe, i, ca, want)
		}
		args[i] = av
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != reflect.TypeOf((*error)(nil)).Elem() {
			return reflect.Value{}, fmt.Errorf("%w: constructor's second result is %s, not error", ErrBadRecipe, ft.Out(1))
		}
	default:
		return reflect.Value{}, fmt.Errorf("%w: constructor returns %d values", ErrBadRecipe, ft.NumOut())
	}
	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return out[0], nil
}

func sentinelType(rec reduce.Recipe, src reflect.Value) (reflect.Type, error) {
	if len(rec.Args) == 0 {
		return nil, fmt.Errorf("%w: %v recipe for %s missing its type argument", ErrBadRecipe, rec.New, src.Type())
	}
	rt, ok := rec.Args[0].(reflect.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %v first argument is %T, not a type", ErrBadRecipe, rec.New, rec.Args[0])
	}
	return rt, nil
}

// allocFor allocates a zero rt shaped to fit want: the pointer when
// want is pointer-like, the value otherwise. A map allocates non-nil
// so item streams and field assignment have something to write into.
func allocFor(rt, want reflect.Type) reflect.Value {
	np := reflect.New(rt)
	if rt.Kind() == reflect.Map {
		np.Elem().Set(reflect.MakeMap(rt))
	}
	if np.Type().AssignableTo(want) {
		return np
	}
	return np.Elem()
}

// applyState applies a recipe's deep-copied state: through SetState
// when the instance provides it, otherwise by the default semantics
// (an attribute map, or a two-part [attrs, fields] pair).
func (e *Engine) applyState(inst reflect.Value, rawState any, st *state) error {
	cs, err := e.copyAny(rawState, st)
	if err != nil {
		return err
	}
	if ss, ok := instIface(inst).(reduce.StateSetter); ok {
		return ss.SetState(cs)
	}

	switch s := cs.(type) {
	case map[string]any:
		return e.mergeAttrs(inst, s)
	case [2]any:
		return e.applyStatePair(inst, s[0], s[1])
	case []any:
		if len(s) == 2 {
			return e.applyStatePair(inst, s[0], s[1])
		}
	}
	return fmt.Errorf("%w: state of type %T matches no known form", ErrBadRecipe, cs)
}

func (e *Engine) applyStatePair(inst reflect.Value, attrs, slots any) error {
	if attrs != nil {
		m, ok := attrs.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: state pair's first part is %T", ErrBadRecipe, attrs)
		}
		if err := e.mergeAttrs(inst, m); err != nil {
			return err
		}
	}
	if slots != nil {
		m, ok := slots.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: state pair's second part is %T", ErrBadRecipe, slots)
		}
		if err := e.setFields(inst, m); err != nil {
			return err
		}
	}
	return nil
}

// mergeAttrs stores attrs into the instance's attribute store when it
// has one, else assigns them as fields.
func (e *Engine) mergeAttrs(inst reflect.Value, attrs map[string]any) error {
	if as, ok := instIface(inst).(reduce.AttrStore); ok {
		dst := as.Attrs()
		if dst == nil {
			return fmt.Errorf("%w: instance %s returned a nil attribute store", ErrBadRecipe, inst.Type())
		}
		for name, val := range attrs {
			dst[name] = val
		}
		return nil
	}
	return e.setFields(inst, attrs)
}

// setFields assigns named fields on a struct instance, reaching
// unexported fields through their address. Values must already be
// deep-copied by the caller.
func (e *Engine) setFields(inst reflect.Value, fields map[string]any) error {
	sv := inst
	for sv.Kind() == reflect.Pointer {
		if sv.IsNil() {
			return fmt.Errorf("%w: nil instance", ErrBadRecipe)
		}
		sv = sv.Elem()
	}
	if sv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: cannot set fields on %s", ErrBadRecipe, inst.Type())
	}
	for name, val := range fields {
		fv := sv.FieldByName(name)
		if !fv.IsValid() {
			return fmt.Errorf("%w: %s has no field %q", ErrBadRecipe, sv.Type(), name)
		}
		if !fv.CanSet() {
			if !fv.CanAddr() {
				return fmt.Errorf("%w: field %q of %s is not addressable", ErrBadRecipe, name, sv.Type())
			}
			fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		if val == nil {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		rv := reflect.ValueOf(val)
		switch {
		case rv.Type().AssignableTo(fv.Type()):
			fv.Set(rv)
		case rv.Type().ConvertibleTo(fv.Type()) && isBasic(rv.Kind()) && isBasic(fv.Kind()):
			fv.Set(rv.Convert(fv.Type()))
		default:
			return fmt.Errorf("%w: field %q wants %s, got %T", ErrBadRecipe, name, fv.Type(), val)
		}
	}
	return nil
}

func isBasic(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

func (e *Engine) applyListItems(inst reflect.Value, items func(yield func(any) bool), st *state) error {
	ap, ok := instIface(inst).(reduce.Appender)
	if !ok {
		return fmt.Errorf("%w: %s streams list items but has no Append", ErrBadRecipe, inst.Type())
	}
	var ferr error
	items(func(item any) bool {
		ci, err := e.copyAny(item, st)
		if err != nil {
			ferr = err
			return false
		}
		if err := ap.Append(ci); err != nil {
			ferr = err
			return false
		}
		return true
	})
	return ferr
}

func (e *Engine) applyDictItems(inst reflect.Value, items func(yield func(k, v any) bool), st *state) error {
	if is, ok := instIface(inst).(reduce.ItemSetter); ok {
		var ferr error
		items(func(key, val any) bool {
			ck, err := e.copyAny(key, st)
			if err != nil {
				ferr = err
				return false
			}
			cv, err := e.copyAny(val, st)
			if err != nil {
				ferr = err
				return false
			}
			if err := is.SetItem(ck, cv); err != nil {
				ferr = err
				return false
			}
			return true
		})
		return ferr
	}

	mv := inst
	for mv.Kind() == reflect.Pointer {
		mv = mv.Elem()
	}
	if mv.Kind() != reflect.Map {
		return fmt.Errorf("%w: %s streams dict items but has no SetItem", ErrBadRecipe, inst.Type())
	}
	if mv.IsNil() {
		return fmt.Errorf("%w: dict-items recipe constructed a nil %s", ErrBadRecipe, mv.Type())
	}
	var ferr error
	items(func(key, val any) bool {
		ck, err := e.copyAny(key, st)
		if err != nil {
			ferr = err
			return false
		}
		cv, err := e.copyAny(val, st)
		if err != nil {
			ferr = err
			return false
		}
		kv, err := conform(ck, mv.Type().Key())
		if err != nil {
			ferr = fmt.Errorf("%w: dict key %T for %s", ErrBadRecipe, ck, mv.Type())
			return false
		}
		vv, err := conform(cv, mv.Type().Elem())
		if err != nil {
			ferr = fmt.Errorf("%w: dict value %T for %s", ErrBadRecipe, cv, mv.Type())
			return false
		}
		mv.SetMapIndex(kv, vv)
		return true
	})
	return ferr
}

// copyAny deep-copies an interface-typed value within the current
// session.
func (e *Engine) copyAny(a any, st *state) (any, error) {
	if a == nil {
		return nil, nil
	}
	out, err := e.copyValue(reflect.ValueOf(a), st)
	if err != nil {
		return nil, err
	}
	return valueInterface(out), nil
}

// instIface exposes the instance for interface checks, preferring the
// addressable form so pointer-receiver methods are seen.
func instIface(inst reflect.Value) any {
	if inst.Kind() != reflect.Pointer && inst.CanAddr() {
		return inst.Addr().Interface()
	}
	return inst.Interface()
}
