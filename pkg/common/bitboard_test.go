package common

import "testing"

func TestBitboard81SetTestReset(t *testing.T) {
	tests := []struct {
		name string
		sq   uint8
	}{
		{"lo lane low", 0},
		{"lo lane high", 63},
		{"hi lane low", 64},
		{"hi lane high", SqN - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bitboard81
			if b.Test(tt.sq) {
				t.Fatalf("Test(%d) true before Set", tt.sq)
			}
			b.Set(tt.sq)
			if !b.Test(tt.sq) {
				t.Fatalf("Test(%d) false after Set", tt.sq)
			}
			if b.PopCount() != 1 {
				t.Fatalf("PopCount() = %d, want 1", b.PopCount())
			}
			b.Reset(tt.sq)
			if b.Test(tt.sq) {
				t.Fatalf("Test(%d) true after Reset", tt.sq)
			}
			if !b.Empty() {
				t.Fatalf("Empty() false after clearing only set bit")
			}
		})
	}
}

func TestBitboard81SetResetSqNoneIsNoop(t *testing.T) {
	var b Bitboard81
	b.Set(SqNone)
	if b.Any() {
		t.Fatalf("Set(SqNone) should not mark any square")
	}
	b.Set(5)
	b.Reset(SqNone)
	if !b.Test(5) {
		t.Fatalf("Reset(SqNone) should not clear unrelated squares")
	}
}

func TestBitboard81BooleanOps(t *testing.T) {
	var a, b Bitboard81
	a.Set(1)
	a.Set(70)
	b.Set(70)
	b.Set(2)

	or := a.Or(b)
	if !(or.Test(1) && or.Test(2) && or.Test(70)) {
		t.Fatalf("Or missing expected bits: %+v", or)
	}

	and := a.And(b)
	if and.PopCount() != 1 || !and.Test(70) {
		t.Fatalf("And() = %+v, want only square 70 set", and)
	}

	xor := a.Xor(b)
	if xor.Test(70) || !xor.Test(1) || !xor.Test(2) {
		t.Fatalf("Xor() = %+v, want 1 and 2 set, 70 cleared", xor)
	}

	if !a.Equals(a) {
		t.Fatalf("Equals() should be reflexive")
	}
	if a.Equals(b) {
		t.Fatalf("Equals() true for distinct sets")
	}
}

func TestBitboard81PopLSBOrder(t *testing.T) {
	var b Bitboard81
	want := []uint8{3, 40, 64, 80}
	for _, s := range want {
		b.Set(s)
	}
	var got []uint8
	for b.Any() {
		got = append(got, b.PopLSB())
	}
	if len(got) != len(want) {
		t.Fatalf("PopLSB produced %d squares, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PopLSB order = %v, want %v", got, want)
		}
	}
	if b.Any() {
		t.Fatalf("board should be empty after draining every set bit")
	}
}
