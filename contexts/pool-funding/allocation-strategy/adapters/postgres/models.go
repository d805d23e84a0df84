package postgresadapter

import (
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
)

type recipientModel struct {
	RecipientID   string    `gorm:"column:recipient_id;primaryKey"`
	PayoutAddress string    `gorm:"column:payout_address;not null"`
	DenseIndex    int64     `gorm:"column:dense_index;uniqueIndex;not null"`
	Status        string    `gorm:"column:status;not null"`
	PaidOut       bool      `gorm:"column:paid_out;not null"`
	RegisteredAt  time.Time `gorm:"column:registered_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (recipientModel) TableName() string { return "strategy_recipients" }

func recipientModelFromEntity(recipient entities.Recipient) recipientModel {
	return recipientModel{
		RecipientID:   recipient.RecipientID,
		PayoutAddress: recipient.PayoutAddress,
		DenseIndex:    int64(recipient.DenseIndex),
		Status:        recipient.Status.String(),
		PaidOut:       recipient.PaidOut,
		RegisteredAt:  recipient.RegisteredAt.UTC(),
		UpdatedAt:     recipient.UpdatedAt.UTC(),
	}
}

func (m recipientModel) toEntity() entities.Recipient {
	status, ok := entities.ParseStatus(m.Status)
	if !ok {
		status = entities.StatusNone
	}
	return entities.Recipient{
		RecipientID:   m.RecipientID,
		PayoutAddress: m.PayoutAddress,
		DenseIndex:    uint64(m.DenseIndex),
		Status:        status,
		PaidOut:       m.PaidOut,
		RegisteredAt:  m.RegisteredAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

// statusWordModel holds one packed 64-bit word of the 4-bit status ledger.
type statusWordModel struct {
	WordIndex int64 `gorm:"column:word_index;primaryKey"`
	Bits      int64 `gorm:"column:bits;not null"`
}

func (statusWordModel) TableName() string { return "strategy_status_words" }

// claimWordModel holds one packed 64-bit word of the 1-bit claim ledger.
type claimWordModel struct {
	WordIndex int64 `gorm:"column:word_index;primaryKey"`
	Bits      int64 `gorm:"column:bits;not null"`
}

func (claimWordModel) TableName() string { return "strategy_claim_words" }

// strategyStateModel is a singleton row (id = 1).
type strategyStateModel struct {
	ID                  int       `gorm:"column:id;primaryKey"`
	NextDenseIndex      int64     `gorm:"column:next_dense_index;not null"`
	DistributionStarted bool      `gorm:"column:distribution_started;not null"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (strategyStateModel) TableName() string { return "strategy_state" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type;not null"`
	PartitionKey string     `gorm:"column:partition_key;not null"`
	Payload      []byte     `gorm:"column:payload;not null"`
	Status       string     `gorm:"column:status;not null;index"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "strategy_outbox" }

type profileMemberModel struct {
	AnchorID string `gorm:"column:anchor_id;primaryKey"`
	MemberID string `gorm:"column:member_id;primaryKey"`
}

func (profileMemberModel) TableName() string { return "profile_members" }

type poolManagerModel struct {
	ManagerID string `gorm:"column:manager_id;primaryKey"`
}

func (poolManagerModel) TableName() string { return "pool_managers" }

type poolModel struct {
	PoolID      string `gorm:"column:pool_id;primaryKey"`
	AssetID     string `gorm:"column:asset_id;not null"`
	AssetNative bool   `gorm:"column:asset_native;not null"`
}

func (poolModel) TableName() string { return "pools" }

type poolBalanceModel struct {
	AssetID string `gorm:"column:asset_id;primaryKey"`
	Balance int64  `gorm:"column:balance;not null"`
}

func (poolBalanceModel) TableName() string { return "pool_asset_balances" }

type transferModel struct {
	TransferID  string    `gorm:"column:transfer_id;primaryKey"`
	AssetID     string    `gorm:"column:asset_id;not null"`
	Destination string    `gorm:"column:destination;not null"`
	Amount      int64     `gorm:"column:amount;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (transferModel) TableName() string { return "strategy_transfers" }
