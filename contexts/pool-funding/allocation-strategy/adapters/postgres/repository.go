package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
	"grantpool/internal/shared/bitfield"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	moduleName = "pool-funding/allocation-strategy"

	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	claimFieldBits = 1
	strategyRowID  = 1
)

// Repository persists the strategy state in Postgres. The packed status and
// claim ledgers are stored one 64-bit word per row, written with the same
// mask-clear-then-OR arithmetic the in-memory ledger uses.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates the strategy tables. Dev/bootstrap convenience.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&recipientModel{},
		&statusWordModel{},
		&claimWordModel{},
		&strategyStateModel{},
		&outboxModel{},
		&profileMemberModel{},
		&poolManagerModel{},
		&poolModel{},
		&poolBalanceModel{},
		&transferModel{},
	)
}

func (r *Repository) Transact(ctx context.Context, fn func(tx ports.Transaction) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, logger: r.logger})
	})
}

func (r *Repository) GetRecipient(ctx context.Context, recipientID string) (entities.Recipient, error) {
	var row recipientModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", strings.TrimSpace(recipientID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Recipient{}, domainerrors.ErrRecipientNotFound
		}
		return entities.Recipient{}, r.logError("allocation_repo_get_recipient_failed", err,
			"recipient_id", strings.TrimSpace(recipientID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveRecipient(ctx context.Context, recipient entities.Recipient) error {
	if strings.TrimSpace(recipient.RecipientID) == "" {
		r.logWarn("allocation_repo_save_recipient_invalid_input")
		return domainerrors.ErrInvalidInput
	}
	row := recipientModelFromEntity(recipient)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipient_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
	if err != nil {
		if isUniqueViolation(err) {
			// Dense index collision: another record already claimed the slot.
			r.logWarn("allocation_repo_save_recipient_index_conflict",
				"recipient_id", row.RecipientID,
				"dense_index", row.DenseIndex,
			)
			return domainerrors.ErrInvalidInput
		}
		return r.logError("allocation_repo_save_recipient_failed", err,
			"recipient_id", row.RecipientID,
		)
	}
	return nil
}

func (r *Repository) RecipientsCounter(ctx context.Context) (uint64, error) {
	state, err := r.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(state.NextDenseIndex), nil
}

func (r *Repository) NextDenseIndex(ctx context.Context) (uint64, error) {
	state, err := r.loadStateForUpdate(ctx)
	if err != nil {
		return 0, err
	}
	index := uint64(state.NextDenseIndex)
	err = r.db.WithContext(ctx).
		Model(&strategyStateModel{}).
		Where("id = ?", strategyRowID).
		Update("next_dense_index", state.NextDenseIndex+1).
		Error
	if err != nil {
		return 0, r.logError("allocation_repo_advance_counter_failed", err)
	}
	return index, nil
}

func (r *Repository) StatusByIndex(ctx context.Context, denseIndex uint64) (entities.Status, error) {
	if denseIndex == 0 {
		return entities.StatusNone, nil
	}
	wordIndex, shift := bitfield.Locate(entities.StatusFieldBits, denseIndex-1)
	var row statusWordModel
	err := r.db.WithContext(ctx).
		Where("word_index = ?", int64(wordIndex)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.StatusNone, nil
		}
		return entities.StatusNone, r.logError("allocation_repo_status_read_failed", err,
			"dense_index", denseIndex,
		)
	}
	return entities.Status(bitfield.Extract(uint64(row.Bits), shift, entities.StatusFieldBits)), nil
}

func (r *Repository) SetStatusByIndex(ctx context.Context, denseIndex uint64, status entities.Status) error {
	if denseIndex == 0 {
		return nil
	}
	wordIndex, shift := bitfield.Locate(entities.StatusFieldBits, denseIndex-1)

	var row statusWordModel
	err := r.db.WithContext(ctx).
		Where("word_index = ?", int64(wordIndex)).
		First(&row).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return r.logError("allocation_repo_status_word_read_failed", err,
			"dense_index", denseIndex,
		)
	}

	bits := bitfield.Insert(uint64(row.Bits), shift, entities.StatusFieldBits, uint64(status))
	word := statusWordModel{WordIndex: int64(wordIndex), Bits: int64(bits)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "word_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"bits"}),
		}).
		Create(&word).
		Error
	if err != nil {
		return r.logError("allocation_repo_status_word_write_failed", err,
			"dense_index", denseIndex,
			"word_index", wordIndex,
		)
	}
	return nil
}

func (r *Repository) ClaimConsumed(ctx context.Context, claimIndex uint64) (bool, error) {
	wordIndex, shift := bitfield.Locate(claimFieldBits, claimIndex)
	var row claimWordModel
	err := r.db.WithContext(ctx).
		Where("word_index = ?", int64(wordIndex)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, r.logError("allocation_repo_claim_read_failed", err,
			"claim_index", claimIndex,
		)
	}
	return bitfield.Extract(uint64(row.Bits), shift, claimFieldBits) == 1, nil
}

func (r *Repository) MarkClaimConsumed(ctx context.Context, claimIndex uint64) error {
	wordIndex, shift := bitfield.Locate(claimFieldBits, claimIndex)

	var row claimWordModel
	err := r.db.WithContext(ctx).
		Where("word_index = ?", int64(wordIndex)).
		First(&row).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return r.logError("allocation_repo_claim_word_read_failed", err,
			"claim_index", claimIndex,
		)
	}

	bits := bitfield.Insert(uint64(row.Bits), shift, claimFieldBits, 1)
	word := claimWordModel{WordIndex: int64(wordIndex), Bits: int64(bits)}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "word_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"bits"}),
		}).
		Create(&word).
		Error
	if err != nil {
		return r.logError("allocation_repo_claim_word_write_failed", err,
			"claim_index", claimIndex,
			"word_index", wordIndex,
		)
	}
	return nil
}

func (r *Repository) DistributionStarted(ctx context.Context) (bool, error) {
	state, err := r.loadState(ctx)
	if err != nil {
		return false, err
	}
	return state.DistributionStarted, nil
}

func (r *Repository) MarkDistributionStarted(ctx context.Context) error {
	if _, err := r.loadStateForUpdate(ctx); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Model(&strategyStateModel{}).
		Where("id = ?", strategyRowID).
		Updates(map[string]any{
			"distribution_started": true,
			"updated_at":           time.Now().UTC(),
		}).
		Error
	if err != nil {
		return r.logError("allocation_repo_mark_started_failed", err)
	}
	return nil
}

// Transfer debits the pool balance row and records the custody instruction.
// Runs inside the command transaction so a later batch failure rolls the
// debit back together with the payout marks.
func (r *Repository) Transfer(ctx context.Context, asset entities.Asset, destination string, amount uint64) error {
	if strings.TrimSpace(destination) == "" {
		return domainerrors.ErrTransferFailed
	}

	result := r.db.WithContext(ctx).
		Model(&poolBalanceModel{}).
		Where("asset_id = ?", asset.ID).
		Where("balance >= ?", int64(amount)).
		Update("balance", gorm.Expr("balance - ?", int64(amount)))
	if result.Error != nil {
		return r.logError("allocation_repo_transfer_debit_failed", result.Error,
			"asset_id", asset.ID,
			"destination", strings.TrimSpace(destination),
			"amount", amount,
		)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&poolBalanceModel{}).
			Where("asset_id = ?", asset.ID).
			Count(&count).
			Error; err != nil {
			return r.logError("allocation_repo_transfer_balance_check_failed", err,
				"asset_id", asset.ID,
			)
		}
		if count == 0 {
			r.logWarn("allocation_repo_transfer_unknown_asset", "asset_id", asset.ID)
			return domainerrors.ErrUnknownAsset
		}
		r.logWarn("allocation_repo_transfer_insufficient_funds",
			"asset_id", asset.ID,
			"amount", amount,
		)
		return domainerrors.ErrInsufficientPoolFunds
	}

	row := transferModel{
		TransferID:  uuid.NewString(),
		AssetID:     asset.ID,
		Destination: strings.TrimSpace(destination),
		Amount:      int64(amount),
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("allocation_repo_transfer_record_failed", err,
			"asset_id", asset.ID,
			"destination", row.Destination,
			"amount", amount,
		)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	row := outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAtUTC.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("allocation_repo_append_outbox_failed", err,
			"outbox_id", outboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("allocation_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("allocation_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("allocation_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrInvalidInput
	}
	return nil
}

func (r *Repository) IsAuthorizedMember(ctx context.Context, anchorID string, callerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&profileMemberModel{}).
		Where("anchor_id = ?", strings.TrimSpace(anchorID)).
		Where("member_id = ?", strings.TrimSpace(callerID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("allocation_repo_profile_member_check_failed", err,
			"anchor_id", strings.TrimSpace(anchorID),
			"member_id", strings.TrimSpace(callerID),
		)
	}
	return count > 0, nil
}

func (r *Repository) IsPoolManager(ctx context.Context, callerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poolManagerModel{}).
		Where("manager_id = ?", strings.TrimSpace(callerID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("allocation_repo_pool_manager_check_failed", err,
			"manager_id", strings.TrimSpace(callerID),
		)
	}
	return count > 0, nil
}

func (r *Repository) ConfiguredAsset(ctx context.Context, poolID string) (entities.Asset, error) {
	var row poolModel
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", strings.TrimSpace(poolID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Asset{}, domainerrors.ErrUnknownAsset
		}
		return entities.Asset{}, r.logError("allocation_repo_pool_lookup_failed", err,
			"pool_id", strings.TrimSpace(poolID),
		)
	}
	return entities.Asset{ID: row.AssetID, Native: row.AssetNative}, nil
}

func (r *Repository) loadState(ctx context.Context) (strategyStateModel, error) {
	var state strategyStateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strategyRowID).
		First(&state).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return strategyStateModel{ID: strategyRowID, NextDenseIndex: 1}, nil
		}
		return strategyStateModel{}, r.logError("allocation_repo_state_read_failed", err)
	}
	return state, nil
}

// loadStateForUpdate reads the singleton state row with a row lock, creating
// it on first use.
func (r *Repository) loadStateForUpdate(ctx context.Context) (strategyStateModel, error) {
	var state strategyStateModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strategyRowID).
		First(&state).
		Error
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return strategyStateModel{}, r.logError("allocation_repo_state_lock_failed", err)
	}

	state = strategyStateModel{ID: strategyRowID, NextDenseIndex: 1, UpdatedAt: time.Now().UTC()}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&state).
		Error
	if err != nil {
		return strategyStateModel{}, r.logError("allocation_repo_state_init_failed", err)
	}
	return state, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", moduleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("allocation repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", moduleName,
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("allocation repository warning", fields...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Store = (*Repository)(nil)
var _ ports.Transaction = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.ProfileAuthority = (*Repository)(nil)
var _ ports.PoolAuthority = (*Repository)(nil)
var _ ports.PoolConfigSource = (*Repository)(nil)
