package statusledger

import (
	"testing"

	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
)

func TestStatusOfUnassignedIndexIsNone(t *testing.T) {
	ledger := New()
	if got := ledger.Status(0); got != entities.StatusNone {
		t.Fatalf("index 0: expected none, got %s", got)
	}
	if got := ledger.Status(42); got != entities.StatusNone {
		t.Fatalf("never written index: expected none, got %s", got)
	}
}

func TestSetStatusRoundTrip(t *testing.T) {
	ledger := New()
	ledger.SetStatus(1, entities.StatusPending)
	ledger.SetStatus(2, entities.StatusAccepted)

	if got := ledger.Status(1); got != entities.StatusPending {
		t.Fatalf("index 1: expected pending, got %s", got)
	}
	if got := ledger.Status(2); got != entities.StatusAccepted {
		t.Fatalf("index 2: expected accepted, got %s", got)
	}
}

func TestIndexesSharingAWordDoNotCorruptEachOther(t *testing.T) {
	ledger := New()

	// 16 statuses per 64-bit word: indexes 1..16 share the first word.
	ledger.SetStatus(5, entities.StatusAccepted)
	ledger.SetStatus(6, entities.StatusRejected)

	if got := ledger.Status(5); got != entities.StatusAccepted {
		t.Fatalf("index 5: expected accepted, got %s", got)
	}
	if got := ledger.Status(6); got != entities.StatusRejected {
		t.Fatalf("index 6: expected rejected, got %s", got)
	}
	if got := ledger.Status(4); got != entities.StatusNone {
		t.Fatalf("index 4: expected none, got %s", got)
	}
	if got := ledger.Status(7); got != entities.StatusNone {
		t.Fatalf("index 7: expected none, got %s", got)
	}
}

func TestStatusTransitionOverwrites(t *testing.T) {
	ledger := New()
	ledger.SetStatus(9, entities.StatusRejected)
	ledger.SetStatus(9, entities.StatusAppealed)
	if got := ledger.Status(9); got != entities.StatusAppealed {
		t.Fatalf("expected appealed, got %s", got)
	}
}

func TestWordsHydrationRoundTrip(t *testing.T) {
	ledger := New()
	ledger.SetStatus(1, entities.StatusPending)
	ledger.SetStatus(17, entities.StatusAccepted)

	restored := New()
	for wordIndex, word := range ledger.Words() {
		restored.SetWord(wordIndex, word)
	}
	if got := restored.Status(1); got != entities.StatusPending {
		t.Fatalf("restored index 1: expected pending, got %s", got)
	}
	if got := restored.Status(17); got != entities.StatusAccepted {
		t.Fatalf("restored index 17: expected accepted, got %s", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ledger := New()
	ledger.SetStatus(3, entities.StatusPending)

	clone := ledger.Clone()
	clone.SetStatus(3, entities.StatusRejected)

	if got := ledger.Status(3); got != entities.StatusPending {
		t.Fatalf("original: expected pending, got %s", got)
	}
	if got := clone.Status(3); got != entities.StatusRejected {
		t.Fatalf("clone: expected rejected, got %s", got)
	}
}
