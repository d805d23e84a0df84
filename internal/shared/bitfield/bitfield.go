// Package bitfield packs fixed-width unsigned fields into 64-bit words.
// The allocation strategy stores one 4-bit recipient status per dense index
// and one 1-bit consumed flag per distribution claim this way, so a word
// covers many entries and unset entries read as zero.
package bitfield

import "fmt"

// Locate resolves the word index and bit shift for a 0-based field index.
func Locate(fieldBits uint, index uint64) (wordIndex uint64, shift uint) {
	perWord := uint64(64 / fieldBits)
	return index / perWord, uint(index%perWord) * fieldBits
}

// Extract reads the field at shift out of word.
func Extract(word uint64, shift uint, fieldBits uint) uint64 {
	mask := fieldMask(fieldBits)
	return (word >> shift) & mask
}

// Insert clears the field at shift and ORs in value. Adjacent fields in the
// same word are left untouched.
func Insert(word uint64, shift uint, fieldBits uint, value uint64) uint64 {
	mask := fieldMask(fieldBits)
	return (word &^ (mask << shift)) | ((value & mask) << shift)
}

func fieldMask(fieldBits uint) uint64 {
	if fieldBits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << fieldBits) - 1
}

// PackedArray is a sparse array of fieldBits-wide unsigned values addressed
// by a 0-based index. Words are allocated on first write; absent words read
// as zero for every field they cover.
type PackedArray struct {
	fieldBits uint
	words     map[uint64]uint64
}

// NewPackedArray builds an empty array. fieldBits must evenly divide 64.
func NewPackedArray(fieldBits uint) (*PackedArray, error) {
	if fieldBits == 0 || fieldBits > 64 || 64%fieldBits != 0 {
		return nil, fmt.Errorf("bitfield: field width %d must evenly divide 64", fieldBits)
	}
	return &PackedArray{
		fieldBits: fieldBits,
		words:     make(map[uint64]uint64),
	}, nil
}

// FieldBits reports the configured field width.
func (p *PackedArray) FieldBits() uint {
	return p.fieldBits
}

// Get reads the field at index. Unset fields read as zero.
func (p *PackedArray) Get(index uint64) uint64 {
	wordIndex, shift := Locate(p.fieldBits, index)
	return Extract(p.words[wordIndex], shift, p.fieldBits)
}

// Set writes value into the field at index.
func (p *PackedArray) Set(index uint64, value uint64) error {
	if value > fieldMask(p.fieldBits) {
		return fmt.Errorf("bitfield: value %d does not fit in %d bits", value, p.fieldBits)
	}
	wordIndex, shift := Locate(p.fieldBits, index)
	p.words[wordIndex] = Insert(p.words[wordIndex], shift, p.fieldBits, value)
	return nil
}

// Word returns the raw word at wordIndex.
func (p *PackedArray) Word(wordIndex uint64) uint64 {
	return p.words[wordIndex]
}

// SetWord overwrites the raw word at wordIndex. Used when hydrating the
// array from persisted rows.
func (p *PackedArray) SetWord(wordIndex uint64, word uint64) {
	if word == 0 {
		delete(p.words, wordIndex)
		return
	}
	p.words[wordIndex] = word
}

// Words returns a copy of the non-zero backing words keyed by word index.
func (p *PackedArray) Words() map[uint64]uint64 {
	out := make(map[uint64]uint64, len(p.words))
	for wordIndex, word := range p.words {
		out[wordIndex] = word
	}
	return out
}

// Clone deep-copies the array. Staged transaction state relies on this.
func (p *PackedArray) Clone() *PackedArray {
	return &PackedArray{
		fieldBits: p.fieldBits,
		words:     p.Words(),
	}
}
