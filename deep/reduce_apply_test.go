package deep

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcahill/copykit/deep/reduce"
)

// counter hides its state behind a constructor, the shape the reduce
// protocol exists for.
type counter struct {
	n    int
	peer *counter
}

func newCounter(n int) *counter { return &counter{n: n} }

func (c *counter) ReduceEx() (reduce.Recipe, error) {
	return reduce.Recipe{
		New:   newCounter,
		Args:  []any{c.n},
		State: map[string]any{"peer": c.peer},
	}, nil
}

func TestReduceRebuilds(t *testing.T) {
	src := newCounter(7)
	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*counter)
	assert.NotSame(t, src, c)
	assert.Equal(t, 7, c.n)
}

func TestReduceCycleThroughState(t *testing.T) {
	a, b := newCounter(1), newCounter(2)
	a.peer, b.peer = b, a

	out, err := Copy(a)
	require.NoError(t, err)
	ca := out.(*counter)
	require.NotNil(t, ca.peer)
	assert.Same(t, ca, ca.peer.peer, "mutual references must close onto the copies")
	assert.Equal(t, 2, ca.peer.n)
	assert.NotSame(t, b, ca.peer)
}

type bothProtocols struct{ via string }

func (p *bothProtocols) Reduce() (reduce.Recipe, error) {
	return reduce.Recipe{New: func() *bothProtocols { return &bothProtocols{via: "Reduce"} }}, nil
}

func (p *bothProtocols) ReduceEx() (reduce.Recipe, error) {
	return reduce.Recipe{New: func() *bothProtocols { return &bothProtocols{via: "ReduceEx"} }}, nil
}

func TestReduceExPreferred(t *testing.T) {
	out, err := Copy(&bothProtocols{})
	require.NoError(t, err)
	assert.Equal(t, "ReduceEx", out.(*bothProtocols).via)
}

func TestTableOverridesProtocol(t *testing.T) {
	tbl := reduce.NewTable()
	tbl.RegisterFor(&bothProtocols{}, func(v any) (reduce.Recipe, error) {
		return reduce.Recipe{New: func() *bothProtocols { return &bothProtocols{via: "table"} }}, nil
	})
	e := New(Options{Reducers: tbl})

	out, err := e.Copy(&bothProtocols{})
	require.NoError(t, err)
	assert.Equal(t, "table", out.(*bothProtocols).via)
}

type vault struct {
	items map[string]any
}

func (v *vault) ReduceEx() (reduce.Recipe, error) {
	return reduce.Recipe{
		New:   reduce.NewObject,
		Args:  []any{reflect.TypeOf(vault{})},
		State: v.items,
	}, nil
}

func (v *vault) SetState(state any) error {
	items, ok := state.(map[string]any)
	if !ok {
		return errors.New("vault: bad state")
	}
	v.items = items
	return nil
}

func TestNewObjectWithStateSetter(t *testing.T) {
	inner := &node{Name: "inner"}
	src := &vault{items: map[string]any{"n": inner}}

	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*vault)
	require.NotNil(t, c.items)
	got, ok := c.items["n"].(*node)
	require.True(t, ok)
	assert.NotSame(t, inner, got, "state must be deep-copied before SetState")
	assert.Equal(t, "inner", got.Name)
}

func TestStateSetterSeesRegisteredSelf(t *testing.T) {
	src := &vault{}
	src.items = map[string]any{"me": src}

	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*vault)
	assert.Same(t, c, c.items["me"], "registration precedes state so self-references resolve")
}

type attrBox struct {
	attrs map[string]any
}

func (a *attrBox) Attrs() map[string]any { return a.attrs }

func (a *attrBox) ReduceEx() (reduce.Recipe, error) {
	return reduce.Recipe{
		New:   func() *attrBox { return &attrBox{attrs: map[string]any{}} },
		State: a.attrs,
	}, nil
}

func TestAttrStoreMerge(t *testing.T) {
	src := &attrBox{attrs: map[string]any{"k": "v", "n": 3}}
	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*attrBox)
	assert.Equal(t, "v", c.attrs["k"])
	assert.Equal(t, 3, c.attrs["n"])
}

type slotted struct {
	Pub    int
	hidden string
}

func (s slotted) Reduce() (reduce.Recipe, error) {
	return reduce.Recipe{
		New:   reduce.NewObject,
		Args:  []any{reflect.TypeOf(slotted{})},
		State: []any{nil, map[string]any{"Pub": s.Pub, "hidden": s.hidden}},
	}, nil
}

func TestStatePairSetsFields(t *testing.T) {
	out, err := Copy(slotted{Pub: 9, hidden: "h"})
	require.NoError(t, err)
	c := out.(slotted)
	assert.Equal(t, 9, c.Pub)
	assert.Equal(t, "h", c.hidden, "second pair part reaches unexported fields")
}

type bag struct {
	items []any
}

func (b *bag) Append(item any) error {
	b.items = append(b.items, item)
	return nil
}

func (b *bag) ReduceEx() (reduce.Recipe, error) {
	items := b.items
	return reduce.Recipe{
		New:  reduce.NewObject,
		Args: []any{reflect.TypeOf(bag{})},
		ListItems: func(yield func(any) bool) {
			for _, it := range items {
				if !yield(it) {
					return
				}
			}
		},
	}, nil
}

func TestListItemsStreamToAppend(t *testing.T) {
	inner := &node{Name: "inner"}
	src := &bag{items: []any{1, "two", inner}}

	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*bag)
	require.Len(t, c.items, 3)
	assert.Equal(t, 1, c.items[0])
	assert.Equal(t, "two", c.items[1])
	assert.NotSame(t, inner, c.items[2])
}

type pairStore struct {
	kv map[string]any
}

func (p *pairStore) SetItem(key, value any) error {
	k, ok := key.(string)
	if !ok {
		return errors.New("pairStore: non-string key")
	}
	p.kv[k] = value
	return nil
}

func (p *pairStore) ReduceEx() (reduce.Recipe, error) {
	kv := p.kv
	return reduce.Recipe{
		New: func() *pairStore { return &pairStore{kv: map[string]any{}} },
		DictItems: func(yield func(k, v any) bool) {
			for k, v := range kv {
				if !yield(k, v) {
					return
				}
			}
		},
	}, nil
}

func TestDictItemsStreamToSetItem(t *testing.T) {
	src := &pairStore{kv: map[string]any{"a": 1, "b": 2}}
	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*pairStore)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, c.kv)
}

func TestDictItemsIntoMapInstance(t *testing.T) {
	tbl := reduce.NewTable()
	type scores map[string]int
	tbl.RegisterFor(scores{}, func(v any) (reduce.Recipe, error) {
		src := v.(scores)
		return reduce.Recipe{
			New: func() scores { return scores{} },
			DictItems: func(yield func(k, v any) bool) {
				for k, n := range src {
					if !yield(k, n) {
						return
					}
				}
			},
		}, nil
	})
	e := New(Options{Reducers: tbl})

	out, err := e.Copy(scores{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, scores{"x": 1}, out.(scores))
}

type exBox struct {
	Child *node
}

func (b *exBox) ReduceEx() (reduce.Recipe, error) {
	return reduce.Recipe{
		New:  reduce.NewObjectEx,
		Args: []any{reflect.TypeOf(exBox{}), map[string]any{"Child": b.Child}},
	}, nil
}

func TestNewObjectExFieldsDeepCopied(t *testing.T) {
	child := &node{Name: "child"}
	src := &exBox{Child: child}

	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*exBox)
	require.NotNil(t, c.Child)
	assert.NotSame(t, child, c.Child, "field values must be deep-copied before assignment")
	assert.Equal(t, "child", c.Child.Name)

	c.Child.Name = "renamed"
	assert.Equal(t, "child", child.Name, "copy must be structurally independent of the source")
}

func TestNewObjectExFieldsShareIdentity(t *testing.T) {
	child := &node{Name: "shared"}
	src := &struct {
		Box  *exBox
		Peer *node
	}{Box: &exBox{Child: child}, Peer: child}

	out, err := Copy(src)
	require.NoError(t, err)
	c := out.(*struct {
		Box  *exBox
		Peer *node
	})
	assert.Same(t, c.Box.Child, c.Peer, "a node reached through recipe fields and directly stays one node")
}

type dictish map[string]int

func TestNewObjectDictItemsAllocatesMap(t *testing.T) {
	tbl := reduce.NewTable()
	tbl.RegisterFor(dictish{}, func(v any) (reduce.Recipe, error) {
		d := v.(dictish)
		return reduce.Recipe{
			New:  reduce.NewObject,
			Args: []any{reflect.TypeOf(dictish{})},
			DictItems: func(yield func(k, v any) bool) {
				for k, n := range d {
					if !yield(k, n) {
						return
					}
				}
			},
		}, nil
	})
	e := New(Options{Reducers: tbl})

	out, err := e.Copy(dictish{"a": 1, "b": 2})
	require.NoError(t, err, "raw-allocated map instance must be writable")
	assert.Equal(t, dictish{"a": 1, "b": 2}, out.(dictish))
}

func TestDictItemsNilMapRejected(t *testing.T) {
	tbl := reduce.NewTable()
	tbl.RegisterFor(dictish{}, func(v any) (reduce.Recipe, error) {
		return reduce.Recipe{
			New:       func() dictish { return nil },
			DictItems: func(yield func(k, v any) bool) { yield("a", 1) },
		}, nil
	})
	e := New(Options{Reducers: tbl})

	_, err := e.Copy(dictish{"a": 1})
	require.ErrorIs(t, err, ErrBadRecipe, "a constructor handing back a nil map must error, not panic")
}

func TestRecipeErrors(t *testing.T) {
	mk := func(rec reduce.Recipe) error {
		tbl := reduce.NewTable()
		type opaque map[string]int // map type so the table path triggers with identity
		tbl.RegisterFor(opaque{}, func(any) (reduce.Recipe, error) { return rec, nil })
		e := New(Options{Reducers: tbl})
		_, err := e.Copy(opaque{"k": 1})
		return err
	}

	assert.ErrorIs(t, mk(reduce.Recipe{}), ErrBadRecipe, "missing constructor")
	assert.ErrorIs(t, mk(reduce.Recipe{New: 42}), ErrNotConstructor, "non-func constructor")
	assert.ErrorIs(t, mk(reduce.Recipe{New: reduce.NewObject}), ErrBadRecipe, "sentinel without type argument")
	assert.ErrorIs(t, mk(reduce.Recipe{New: reduce.NewObject, Args: []any{"not a type"}}), ErrBadRecipe)
	assert.ErrorIs(t, mk(reduce.Recipe{
		New:  func(a, b int) map[string]int { return nil },
		Args: []any{1},
	}), ErrBadRecipe, "arity mismatch")
	assert.ErrorIs(t, mk(reduce.Recipe{
		New:   func() map[string]int { return map[string]int{} },
		State: 42,
	}), ErrBadRecipe, "state of unknown form")

	boom := errors.New("constructor failed")
	err := mk(reduce.Recipe{New: func() (map[string]int, error) { return nil, boom }})
	assert.ErrorIs(t, err, boom, "constructor errors propagate")
}
