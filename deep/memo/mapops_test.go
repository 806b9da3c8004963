package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingBasics(t *testing.T) {
	m := New()

	m.Set(key(1), "a")
	assert.True(t, m.Contains(key(1)))
	assert.False(t, m.Contains(key(2)))

	got, ok := m.Get(key(1))
	require.True(t, ok)
	assert.Equal(t, "a", got)

	assert.True(t, m.Delete(key(1)))
	assert.False(t, m.Delete(key(1)))
	assert.False(t, m.Contains(key(1)))
}

func TestPop(t *testing.T) {
	m := New()
	m.Set(key(1), "a")

	v, ok := m.Pop(key(1))
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 0, m.Len())

	_, ok = m.Pop(key(1))
	assert.False(t, ok)
}

func TestPopItem(t *testing.T) {
	m := New()
	m.Set(key(1), "a")
	m.Set(key(2), "b")

	seen := map[Key]any{}
	for {
		k, v, ok := m.PopItem()
		if !ok {
			break
		}
		seen[k] = v
	}
	assert.Equal(t, map[Key]any{key(1): "a", key(2): "b"}, seen)
	assert.Equal(t, 0, m.Len())
}

func TestSetDefault(t *testing.T) {
	m := New()
	assert.Equal(t, "a", m.SetDefault(key(1), "a"), "absent key takes the default")
	assert.Equal(t, "a", m.SetDefault(key(1), "b"), "present key keeps its value")
}

func TestUpdate(t *testing.T) {
	m, o := New(), New()
	m.Set(key(1), "a")
	m.Set(key(2), "b")
	o.Set(key(2), "B")
	o.Set(key(3), "c")

	m.Update(o)
	assert.Equal(t, 3, m.Len())
	got, _ := m.Get(key(2))
	assert.Equal(t, "B", got, "collision should take the argument's value")

	m.Update(nil) // no-op
	m.Update(m)   // self-update is a no-op
	assert.Equal(t, 3, m.Len())
}

func TestCloneIndependence(t *testing.T) {
	m := New()
	v := &struct{ n int }{1}
	m.Set(key(1), v)
	m.Keep("src")
	m.BeginUndo()
	m.Set(key(2), "journaled")

	c := m.Clone()
	require.Equal(t, 2, c.Len())
	got, ok := c.Get(key(1))
	require.True(t, ok)
	assert.Same(t, v, got, "clone shares values, not structure")
	assert.Equal(t, 1, c.Keepalive().Len())
	assert.Equal(t, 0, c.Stats().LogLen, "clone starts with a fresh journal")

	c.Set(key(3), "only in clone")
	assert.False(t, m.Contains(key(3)))
}

func TestEqualByIdentity(t *testing.T) {
	a, b := New(), New()
	v := &struct{ n int }{1}
	a.Set(key(1), v)
	b.Set(key(1), v)
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(nil))

	// Same contents structurally, different identity: not equal.
	b.Set(key(1), &struct{ n int }{1})
	assert.False(t, a.Equal(b))

	b.Set(key(1), v)
	b.Set(key(2), "extra")
	assert.False(t, a.Equal(b))
}

func TestRangeYieldsKeepaliveLast(t *testing.T) {
	m := New()
	m.Set(key(1), "a")
	m.Set(key(2), "b")
	m.Keep("src")

	var keys []Key
	var last any
	m.Range(func(k Key, v any) bool {
		keys = append(keys, k)
		last = v
		return true
	})

	require.Len(t, keys, 3)
	assert.Equal(t, KeepaliveKey, keys[2], "keepalive entry must come last")
	kv, ok := last.(KeepaliveView)
	require.True(t, ok, "keepalive entry's value is the view, got %T", last)
	assert.Equal(t, 1, kv.Len())

	// Early stop skips the synthetic entry.
	n := 0
	m.Range(func(Key, any) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.Set(key(1), "a")
	m.Set(key(2), "b")
	m.Keep("src")

	snap := m.Snapshot()
	assert.Equal(t, map[Key]any{key(1): "a", key(2): "b"}, snap)

	// Snapshot is detached from the memo.
	snap[key(3)] = "c"
	assert.False(t, m.Contains(key(3)))
}
