package codec

import "testing"

func TestCompareUnsignedLex(t *testing.T) {
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte("abc"), []byte("abd"), -1},
		{[]byte("abc"), []byte("abc"), 0},
		{[]byte("abc"), []byte("ab"), 1},
		{[]byte{0xff}, []byte{0x7f}, 1},
		{[]byte{}, []byte{0x00}, -1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix([]byte("doc:users:1"), []byte("doc:users:")) {
		t.Fatal("expected prefix match")
	}
	if HasPrefix([]byte("doc:users"), []byte("doc:users:")) {
		t.Fatal("expected no prefix match on short key")
	}
}

func TestUintRoundTrip(t *testing.T) {
	b := PutUint32(nil, 0xDEADBEEF)
	if Uint32(b) != 0xDEADBEEF {
		t.Fatalf("uint32 round trip failed: %x", Uint32(b))
	}
	b64 := PutUint64(nil, 0x0102030405060708)
	if Uint64(b64) != 0x0102030405060708 {
		t.Fatalf("uint64 round trip failed: %x", Uint64(b64))
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	b := PutFloat32(nil, 3.14159)
	if got := Float32(b); got != float32(3.14159) {
		t.Fatalf("float32 round trip failed: %v", got)
	}
}

func TestIsTombstone(t *testing.T) {
	if !IsTombstone(nil) || !IsTombstone([]byte{}) {
		t.Fatal("empty value must be a tombstone")
	}
	if IsTombstone([]byte{0}) {
		t.Fatal("non-empty value must not be a tombstone")
	}
}
