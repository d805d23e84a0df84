package ports

import (
	"context"
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	"grantpool/internal/shared/events"
)

// Repository owns the strategy's world state: recipient records, the packed
// status ledger, the consumed-claim bitmap, the dense-index counter and the
// distribution phase latch.
type Repository interface {
	GetRecipient(ctx context.Context, recipientID string) (entities.Recipient, error)
	SaveRecipient(ctx context.Context, recipient entities.Recipient) error
	RecipientsCounter(ctx context.Context) (uint64, error)
	// NextDenseIndex returns the current counter value and advances it.
	// Assigned exactly once per recipient, on first registration.
	NextDenseIndex(ctx context.Context) (uint64, error)

	StatusByIndex(ctx context.Context, denseIndex uint64) (entities.Status, error)
	SetStatusByIndex(ctx context.Context, denseIndex uint64, status entities.Status) error

	ClaimConsumed(ctx context.Context, claimIndex uint64) (bool, error)
	MarkClaimConsumed(ctx context.Context, claimIndex uint64) error

	DistributionStarted(ctx context.Context) (bool, error)
	MarkDistributionStarted(ctx context.Context) error
}

// Transaction is the repository view handed to a Transact callback. The
// module outbox and the asset transfer surface are in scope so events and
// custody debits commit atomically with state: payouts are marked before the
// transfer call and a failed transfer rolls the marks back.
type Transaction interface {
	Repository
	OutboxWriter
	AssetTransfer
}

// TransactionRunner executes fn with all-or-nothing semantics. Any error from
// fn rolls back every state change and outbox append made inside it.
type TransactionRunner interface {
	Transact(ctx context.Context, fn func(tx Transaction) error) error
}

// Store combines repository reads with transactional command execution. Both
// the memory and postgres adapters satisfy it.
type Store interface {
	Repository
	TransactionRunner
}

// ProfileAuthority answers whether a caller may act for the profile anchoring
// a recipient identity. Gates registration.
type ProfileAuthority interface {
	IsAuthorizedMember(ctx context.Context, anchorID string, callerID string) (bool, error)
}

// PoolAuthority answers whether a caller holds pool manager authority. Gates
// distribution and status review.
type PoolAuthority interface {
	IsPoolManager(ctx context.Context, callerID string) (bool, error)
}

// AssetTransfer moves pool funds to a payout address. Implementations return
// domain ErrInsufficientPoolFunds / ErrTransferFailed wrapped errors.
type AssetTransfer interface {
	Transfer(ctx context.Context, asset entities.Asset, destination string, amount uint64) error
}

// PoolConfigSource resolves which asset a pool pays out in.
type PoolConfigSource interface {
	ConfiguredAsset(ctx context.Context, poolID string) (entities.Asset, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical envelope contract.
type EventEnvelope = events.Envelope

// OutboxWriter appends an event row inside the owning transaction.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
