package entities

import "time"

// Status is the recipient lifecycle state, stored as a 4-bit field in the
// packed status ledger. Values above StatusAppealed are unused.
type Status uint8

const (
	StatusNone     Status = 0
	StatusPending  Status = 1
	StatusAccepted Status = 2
	StatusRejected Status = 3
	StatusAppealed Status = 4
)

// StatusFieldBits is the ledger field width for one recipient status.
const StatusFieldBits = 4

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusAppealed:
		return "appealed"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire representation back to a Status.
func ParseStatus(value string) (Status, bool) {
	switch value {
	case "none":
		return StatusNone, true
	case "pending":
		return StatusPending, true
	case "accepted":
		return StatusAccepted, true
	case "rejected":
		return StatusRejected, true
	case "appealed":
		return StatusAppealed, true
	default:
		return StatusNone, false
	}
}

// Recipient is one application in the pool. DenseIndex is assigned once, on
// first registration, and addresses the packed status ledger; zero means the
// recipient was never indexed. Status mirrors the ledger field so distribution
// can check the cached value without a ledger read.
type Recipient struct {
	RecipientID   string
	PayoutAddress string
	DenseIndex    uint64
	Status        Status
	PaidOut       bool
	RegisteredAt  time.Time
	UpdatedAt     time.Time
}

// Asset identifies what a distribution pays out in. The strategy only moves
// the pool's native asset; the treasury adapter rejects anything else.
type Asset struct {
	ID     string
	Native bool
}

// NativeAsset is the single asset reachable through the allocation path.
var NativeAsset = Asset{ID: "native", Native: true}

// DistributionClaim is one payout instruction inside a distribute batch.
// ClaimIndex addresses the 1-bit consumed ledger and is unrelated to the
// recipient dense index.
type DistributionClaim struct {
	RecipientID string
	ClaimIndex  uint64
	Amount      uint64
}

// PayoutSummary is the computed result for one claim. Amount is zeroed when
// the claim index was already consumed.
type PayoutSummary struct {
	RecipientID   string
	PayoutAddress string
	Amount        uint64
}
