package bitfield

import "testing"

func TestNewPackedArrayRejectsUnevenWidth(t *testing.T) {
	for _, width := range []uint{0, 3, 5, 7, 24, 65} {
		if _, err := NewPackedArray(width); err == nil {
			t.Fatalf("expected error for field width %d", width)
		}
	}
	for _, width := range []uint{1, 2, 4, 8, 16, 32, 64} {
		if _, err := NewPackedArray(width); err != nil {
			t.Fatalf("unexpected error for field width %d: %v", width, err)
		}
	}
}

func TestPackedArrayUnsetFieldsReadZero(t *testing.T) {
	array, err := NewPackedArray(4)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}
	for _, index := range []uint64{0, 1, 15, 16, 1024} {
		if got := array.Get(index); got != 0 {
			t.Fatalf("expected zero at index %d, got %d", index, got)
		}
	}
}

func TestPackedArrayNeighboursInSameWordDoNotCorrupt(t *testing.T) {
	array, err := NewPackedArray(4)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}

	// Indexes 0..15 share one 64-bit word at 4 bits per field.
	if err := array.Set(3, 2); err != nil {
		t.Fatalf("set index 3: %v", err)
	}
	if err := array.Set(4, 3); err != nil {
		t.Fatalf("set index 4: %v", err)
	}
	if got := array.Get(3); got != 2 {
		t.Fatalf("index 3: expected 2, got %d", got)
	}
	if got := array.Get(4); got != 3 {
		t.Fatalf("index 4: expected 3, got %d", got)
	}
	if got := array.Get(2); got != 0 {
		t.Fatalf("index 2: expected untouched zero, got %d", got)
	}
	if got := array.Get(5); got != 0 {
		t.Fatalf("index 5: expected untouched zero, got %d", got)
	}
}

func TestPackedArrayOverwriteClearsOldBits(t *testing.T) {
	array, err := NewPackedArray(4)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}
	if err := array.Set(7, 0xF); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := array.Set(7, 1); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := array.Get(7); got != 1 {
		t.Fatalf("expected overwrite to 1, got %d", got)
	}
}

func TestPackedArrayRejectsOversizedValue(t *testing.T) {
	array, err := NewPackedArray(4)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}
	if err := array.Set(0, 16); err == nil {
		t.Fatal("expected error for value wider than 4 bits")
	}
}

func TestPackedArraySingleBitFields(t *testing.T) {
	array, err := NewPackedArray(1)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}
	if err := array.Set(63, 1); err != nil {
		t.Fatalf("set bit 63: %v", err)
	}
	if err := array.Set(64, 1); err != nil {
		t.Fatalf("set bit 64: %v", err)
	}
	if array.Get(63) != 1 || array.Get(64) != 1 {
		t.Fatal("expected bits 63 and 64 set across word boundary")
	}
	if array.Get(62) != 0 || array.Get(65) != 0 {
		t.Fatal("expected neighbouring bits clear")
	}
}

func TestPackedArrayCloneIsIndependent(t *testing.T) {
	array, err := NewPackedArray(4)
	if err != nil {
		t.Fatalf("new packed array: %v", err)
	}
	if err := array.Set(10, 2); err != nil {
		t.Fatalf("set: %v", err)
	}

	clone := array.Clone()
	if err := clone.Set(10, 4); err != nil {
		t.Fatalf("set clone: %v", err)
	}
	if got := array.Get(10); got != 2 {
		t.Fatalf("expected original untouched at 2, got %d", got)
	}
	if got := clone.Get(10); got != 4 {
		t.Fatalf("expected clone at 4, got %d", got)
	}
}

func TestLocateAndInsertHelpers(t *testing.T) {
	wordIndex, shift := Locate(4, 17)
	if wordIndex != 1 || shift != 4 {
		t.Fatalf("expected word 1 shift 4, got word %d shift %d", wordIndex, shift)
	}

	word := Insert(0, shift, 4, 3)
	if got := Extract(word, shift, 4); got != 3 {
		t.Fatalf("expected extract 3, got %d", got)
	}
	if got := Extract(word, 0, 4); got != 0 {
		t.Fatalf("expected neighbouring field zero, got %d", got)
	}
}
