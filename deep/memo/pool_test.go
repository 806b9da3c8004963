package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReturnsCleanMemo(t *testing.T) {
	m := AcquireMemo()
	require.NotNil(t, m)
	m.Insert(key(1), "a")
	m.Keep("src")
	ReleaseMemo(m)

	m2 := AcquireMemo()
	assert.Equal(t, 0, m2.Len(), "pooled memo must come back empty")
	assert.Equal(t, 0, m2.Keepalive().Len())
	assert.False(t, m2.Escaped())
	ReleaseMemo(m2)
}

func TestEscapedMemoNotPooled(t *testing.T) {
	m := AcquireMemo()
	m.Insert(key(1), "a")
	m.MarkEscaped()
	ReleaseMemo(m)

	// The escaped memo keeps its entries: user code may still hold the
	// handle, so release must not have reset it.
	assert.True(t, m.Contains(key(1)))
	assert.True(t, m.Escaped())
}

func TestReleaseNil(t *testing.T) {
	ReleaseMemo(nil) // must not panic
}
