package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("b"), []byte("2"))

	v, ok := m.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	_, ok = m.Get([]byte("missing"))
	require.False(t, ok)
}

func TestOverwriteUpdatesSize(t *testing.T) {
	m := New()
	m.Put([]byte("k"), []byte("short"))
	sizeBefore := m.SizeBytes()

	m.Put([]byte("k"), []byte("a-much-longer-value"))
	require.Greater(t, m.SizeBytes(), sizeBefore)

	v, ok := m.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("a-much-longer-value"), v)
}

func TestTombstoneIsLiveEmptyValue(t *testing.T) {
	m := New()
	m.Put([]byte("k"), []byte("v"))
	m.Put([]byte("k"), []byte{})

	v, ok := m.Get([]byte("k"))
	require.True(t, ok)
	require.Empty(t, v)
}

func TestIterFromAscendingOrder(t *testing.T) {
	m := New()
	for _, k := range []string{"c", "a", "b", "aa"} {
		m.Put([]byte(k), []byte(k))
	}

	entries := m.IterFrom(nil)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		require.Less(t, string(entries[i-1].Key), string(entries[i].Key))
	}
}

func TestIterFromPrefixTailStart(t *testing.T) {
	m := New()
	for _, k := range []string{"doc:a:1", "doc:a:2", "doc:b:1", "zz"} {
		m.Put([]byte(k), []byte("v"))
	}

	entries := m.IterFrom([]byte("doc:a:"))
	require.Equal(t, "doc:a:1", string(entries[0].Key))
	require.Equal(t, "doc:a:2", string(entries[1].Key))
}

func TestClear(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	m.Clear()
	require.Zero(t, m.SizeBytes())
	require.Zero(t, m.Len())
	_, ok := m.Get([]byte("a"))
	require.False(t, ok)
}
