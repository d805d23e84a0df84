// Package statusledger keeps the packed per-recipient status fields behind a
// 1-based dense-index API. Index zero is the "never registered" sentinel and
// always reads StatusNone without touching the backing array.
package statusledger

import (
	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	"grantpool/internal/shared/bitfield"
)

type Ledger struct {
	fields *bitfield.PackedArray
}

func New() *Ledger {
	fields, err := bitfield.NewPackedArray(entities.StatusFieldBits)
	if err != nil {
		// 4 evenly divides 64; NewPackedArray cannot fail for this width.
		panic(err)
	}
	return &Ledger{fields: fields}
}

// Status reads the field for a dense index. Index zero reads StatusNone.
func (l *Ledger) Status(index uint64) entities.Status {
	if index == 0 {
		return entities.StatusNone
	}
	return entities.Status(l.fields.Get(index - 1))
}

// SetStatus writes the field for a dense index. Index zero is ignored; the
// registry never hands out that index.
func (l *Ledger) SetStatus(index uint64, status entities.Status) {
	if index == 0 {
		return
	}
	// Status values fit in 4 bits; Set cannot fail for them.
	_ = l.fields.Set(index-1, uint64(status))
}

// Words exposes the non-zero backing words for persistence.
func (l *Ledger) Words() map[uint64]uint64 {
	return l.fields.Words()
}

// SetWord hydrates one backing word from persisted state.
func (l *Ledger) SetWord(wordIndex uint64, word uint64) {
	l.fields.SetWord(wordIndex, word)
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{fields: l.fields.Clone()}
}
