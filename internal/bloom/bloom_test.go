package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndMaybeContains(t *testing.T) {
	f := New(1<<16, 3)
	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		require.True(t, f.MaybeContains(k))
	}
}

func TestNoFalseNegatives(t *testing.T) {
	f := New(1<<20, 4)
	present := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		f.Add(k)
		present = append(present, k)
	}
	for _, k := range present {
		require.True(t, f.MaybeContains(k), "bloom filter must never false-negative")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := New(4096, 3)
	f.Add([]byte("hello"))
	f.Add([]byte("world"))

	decoded, err := Decode(f.Encode())
	require.NoError(t, err)
	require.True(t, decoded.MaybeContains([]byte("hello")))
	require.True(t, decoded.MaybeContains([]byte("world")))
}

func TestDecodeShortBuffer(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}
