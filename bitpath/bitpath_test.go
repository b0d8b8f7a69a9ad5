package bitpath

import "testing"

func hashOf(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

func TestFromHashIsFullLength(t *testing.T) {
	p := FromHash(hashOf(0xAB))
	if p.Len() != MaxLen {
		t.Fatalf("expected length %d, got %d", MaxLen, p.Len())
	}
}

func TestBit(t *testing.T) {
	p := FromHash(hashOf(0x80)) // 1000_0000 ...
	if p.Bit(0) != 1 {
		t.Fatalf("expected bit 0 = 1")
	}
	if p.Bit(1) != 0 {
		t.Fatalf("expected bit 1 = 0")
	}
}

func TestPrefixAndSuffix(t *testing.T) {
	p := FromHash(hashOf(0xF0)) // 1111_0000 ...
	pre := p.Prefix(4)
	if pre.Len() != 4 {
		t.Fatalf("expected prefix length 4, got %d", pre.Len())
	}
	for i := 0; i < 4; i++ {
		if pre.Bit(i) != 1 {
			t.Fatalf("expected bit %d = 1", i)
		}
	}

	suf := p.Suffix(4)
	if suf.Len() != MaxLen-4 {
		t.Fatalf("expected suffix length %d, got %d", MaxLen-4, suf.Len())
	}
	if suf.Bit(0) != 0 {
		t.Fatalf("expected re-based bit 0 = 0, got %d", suf.Bit(0))
	}
}

func TestCommonPrefixIdenticalPaths(t *testing.T) {
	a := FromHash(hashOf(0x42))
	b := FromHash(hashOf(0x42))
	cp := a.CommonPrefix(b)
	if cp.Len() != MaxLen {
		t.Fatalf("identical paths should share the full length, got %d", cp.Len())
	}
}

func TestCommonPrefixUnequalPaths(t *testing.T) {
	a := FromHash(hashOf(0x00))
	b := FromHash(hashOf(0x80))
	cp := a.CommonPrefix(b)
	if cp.Len() >= MaxLen {
		t.Fatalf("unequal full-length paths must share a strictly shorter prefix, got %d", cp.Len())
	}
	if cp.Len() != 0 {
		t.Fatalf("expected divergence at bit 0, got common prefix length %d", cp.Len())
	}
}

func TestStartsWith(t *testing.T) {
	p := FromHash(hashOf(0xF0))
	if !p.StartsWith(p.Prefix(4)) {
		t.Fatal("path should start with its own prefix")
	}
	other := FromHash(hashOf(0x0F))
	if p.StartsWith(other.Prefix(4)) {
		t.Fatal("path should not start with an unrelated prefix")
	}
}

func TestCmpOrdering(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Path
		expected int
	}{
		{"equal", FromHash(hashOf(0x10)), FromHash(hashOf(0x10)), 0},
		{"less", FromHash(hashOf(0x10)), FromHash(hashOf(0x20)), -1},
		{"greater", FromHash(hashOf(0x20)), FromHash(hashOf(0x10)), 1},
		{"empty less than nonempty prefix", Path{}, FromHash(hashOf(0x10)).Prefix(4), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Cmp(tt.b)
			if (got < 0) != (tt.expected < 0) || (got > 0) != (tt.expected > 0) || (got == 0) != (tt.expected == 0) {
				t.Fatalf("Cmp(%s, %s) = %d, want sign %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := FromHash(hashOf(0x55))
	b := FromHash(hashOf(0x55))
	if !a.Equal(b) {
		t.Fatal("identical hashes should produce equal paths")
	}
	if a.Prefix(8).Equal(a) {
		t.Fatal("a strict prefix must not equal the full path")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	h := hashOf(0x9A)
	p := FromHash(h)
	b := p.Bytes()
	if len(b) != byteLen {
		t.Fatalf("expected %d bytes, got %d", byteLen, len(b))
	}
	got := FromBits(b, MaxLen)
	if !got.Equal(p) {
		t.Fatal("round trip through Bytes/FromBits should preserve the path")
	}
}

func TestPrefixMasksTailBits(t *testing.T) {
	p := FromHash(hashOf(0xFF))
	pre := p.Prefix(3)
	raw := pre.Bytes()
	if raw[0] != 0b1110_0000 {
		t.Fatalf("expected masked byte 0b11100000, got %08b", raw[0])
	}
}
