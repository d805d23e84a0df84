package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "grantpool/contexts/pool-funding/allocation-strategy/application"
	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
)

const (
	moduleName    = "pool-funding/allocation-strategy"
	sourceService = "grantpool"

	EventRecipientRegistered   = "recipient.registered"
	EventRegistrationUpdated   = "recipient.registration_updated"
	EventRecipientReviewed     = "recipient.reviewed"
	EventAllocationRecorded    = "allocation.recorded"
	EventPayoutDistributed     = "payout.distributed"
	entityTypeRecipient        = "recipient"
	entityTypeAllocation       = "allocation"
	entityTypePayout           = "payout"
	registrationPayloadVersion = 1
)

type RegisterCommand struct {
	RecipientID   string
	PayoutAddress string
	SubmitterID   string
	Metadata      string
}

type ReviewCommand struct {
	RecipientID string
	Status      entities.Status
	ReviewerID  string
}

type AllocateCommand struct {
	RecipientID    string
	Amount         uint64
	SubmittedValue uint64
	Asset          entities.Asset
}

type DistributeCommand struct {
	PoolID     string
	ExecutorID string
	Claims     []entities.DistributionClaim
}

type UseCase struct {
	Store      ports.Store
	Profiles   ports.ProfileAuthority
	Pool       ports.PoolAuthority
	PoolConfig ports.PoolConfigSource
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

type registeredPayload struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	DenseIndex    uint64 `json:"dense_index"`
	Metadata      string `json:"metadata,omitempty"`
}

type registrationUpdatedPayload struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	Status        string `json:"status"`
	Metadata      string `json:"metadata,omitempty"`
}

type reviewedPayload struct {
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	ReviewerID  string `json:"reviewer_id"`
}

type allocationPayload struct {
	RecipientID string `json:"recipient_id"`
	Amount      uint64 `json:"amount"`
	AssetID     string `json:"asset_id"`
}

type distributedPayload struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	Amount        uint64 `json:"amount"`
	ClaimIndex    uint64 `json:"claim_index"`
	AssetID       string `json:"asset_id"`
}

// Register creates a recipient record on first call and re-applies on later
// calls. Re-registration moves Accepted back to Pending and Rejected to
// Appealed; Pending and Appealed stay put. The payout address is always
// overwritten. Registration is refused once the distribution phase latch is
// set.
func (uc UseCase) Register(ctx context.Context, cmd RegisterCommand) (entities.Recipient, error) {
	logger := application.ResolveLogger(uc.Logger)
	recipientID := strings.TrimSpace(cmd.RecipientID)
	submitterID := strings.TrimSpace(cmd.SubmitterID)
	payoutAddress := strings.TrimSpace(cmd.PayoutAddress)

	if recipientID == "" || submitterID == "" {
		logger.Warn("registration invalid input",
			"event", "allocation_register_invalid_input",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"submitter_id", submitterID,
		)
		return entities.Recipient{}, domainerrors.ErrInvalidInput
	}

	authorized, err := uc.Profiles.IsAuthorizedMember(ctx, recipientID, submitterID)
	if err != nil {
		logger.Error("registration profile authority check failed",
			"event", "allocation_register_authority_check_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"submitter_id", submitterID,
			"error", err.Error(),
		)
		return entities.Recipient{}, err
	}
	if !authorized {
		logger.Warn("registration submitter not a profile member",
			"event", "allocation_register_unauthorized",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"submitter_id", submitterID,
		)
		return entities.Recipient{}, domainerrors.ErrUnauthorizedProfileMember
	}
	if isZeroAddress(payoutAddress) {
		logger.Warn("registration payout address missing",
			"event", "allocation_register_zero_address",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
		)
		return entities.Recipient{}, domainerrors.ErrInvalidRecipientAddress
	}

	now := uc.now()
	var registered entities.Recipient
	err = uc.Store.Transact(ctx, func(tx ports.Transaction) error {
		started, err := tx.DistributionStarted(ctx)
		if err != nil {
			return err
		}
		if started {
			return domainerrors.ErrRegistrationClosed
		}

		recipient, err := tx.GetRecipient(ctx, recipientID)
		switch {
		case err == domainerrors.ErrRecipientNotFound:
			denseIndex, err := tx.NextDenseIndex(ctx)
			if err != nil {
				return err
			}
			recipient = entities.Recipient{
				RecipientID:   recipientID,
				PayoutAddress: payoutAddress,
				DenseIndex:    denseIndex,
				Status:        entities.StatusPending,
				RegisteredAt:  now,
				UpdatedAt:     now,
			}
			if err := tx.SetStatusByIndex(ctx, denseIndex, entities.StatusPending); err != nil {
				return err
			}
			if err := tx.SaveRecipient(ctx, recipient); err != nil {
				return err
			}
			envelope, err := uc.envelope(ctx, EventRecipientRegistered, entityTypeRecipient, recipientID, registeredPayload{
				RecipientID:   recipientID,
				PayoutAddress: payoutAddress,
				DenseIndex:    denseIndex,
				Metadata:      strings.TrimSpace(cmd.Metadata),
			})
			if err != nil {
				return err
			}
			if err := tx.AppendOutbox(ctx, envelope); err != nil {
				return err
			}
			registered = recipient
			return nil
		case err != nil:
			return err
		}

		// Re-registration: only Accepted and Rejected change status; the
		// address update and event fire regardless.
		newStatus := recipient.Status
		switch recipient.Status {
		case entities.StatusAccepted:
			newStatus = entities.StatusPending
		case entities.StatusRejected:
			newStatus = entities.StatusAppealed
		}
		if newStatus != recipient.Status {
			if err := tx.SetStatusByIndex(ctx, recipient.DenseIndex, newStatus); err != nil {
				return err
			}
		}
		recipient.Status = newStatus
		recipient.PayoutAddress = payoutAddress
		recipient.UpdatedAt = now
		if err := tx.SaveRecipient(ctx, recipient); err != nil {
			return err
		}
		envelope, err := uc.envelope(ctx, EventRegistrationUpdated, entityTypeRecipient, recipientID, registrationUpdatedPayload{
			RecipientID:   recipientID,
			PayoutAddress: payoutAddress,
			Status:        newStatus.String(),
			Metadata:      strings.TrimSpace(cmd.Metadata),
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
		registered = recipient
		return nil
	})
	if err != nil {
		if err == domainerrors.ErrRegistrationClosed {
			logger.Warn("registration refused after distribution start",
				"event", "allocation_register_closed",
				"module", moduleName,
				"layer", "application",
				"recipient_id", recipientID,
			)
			return entities.Recipient{}, err
		}
		logger.Error("registration transaction failed",
			"event", "allocation_register_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"error", err.Error(),
		)
		return entities.Recipient{}, err
	}

	logger.Info("recipient registration applied",
		"event", "allocation_register_applied",
		"module", moduleName,
		"layer", "application",
		"recipient_id", registered.RecipientID,
		"dense_index", registered.DenseIndex,
		"status", registered.Status.String(),
	)
	return registered, nil
}

// Review is the single authoritative status write. Only pool managers may
// move a recipient to Accepted or Rejected.
func (uc UseCase) Review(ctx context.Context, cmd ReviewCommand) (entities.Recipient, error) {
	logger := application.ResolveLogger(uc.Logger)
	recipientID := strings.TrimSpace(cmd.RecipientID)
	reviewerID := strings.TrimSpace(cmd.ReviewerID)

	if recipientID == "" || reviewerID == "" {
		return entities.Recipient{}, domainerrors.ErrInvalidInput
	}
	if cmd.Status != entities.StatusAccepted && cmd.Status != entities.StatusRejected {
		logger.Warn("review status out of range",
			"event", "allocation_review_invalid_status",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"status", cmd.Status.String(),
		)
		return entities.Recipient{}, domainerrors.ErrInvalidReviewStatus
	}

	manager, err := uc.Pool.IsPoolManager(ctx, reviewerID)
	if err != nil {
		logger.Error("review pool authority check failed",
			"event", "allocation_review_authority_check_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"reviewer_id", reviewerID,
			"error", err.Error(),
		)
		return entities.Recipient{}, err
	}
	if !manager {
		logger.Warn("review caller lacks pool manager authority",
			"event", "allocation_review_unauthorized",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"reviewer_id", reviewerID,
		)
		return entities.Recipient{}, domainerrors.ErrUnauthorizedPoolManager
	}

	now := uc.now()
	var reviewed entities.Recipient
	err = uc.Store.Transact(ctx, func(tx ports.Transaction) error {
		recipient, err := tx.GetRecipient(ctx, recipientID)
		if err != nil {
			return err
		}
		if err := tx.SetStatusByIndex(ctx, recipient.DenseIndex, cmd.Status); err != nil {
			return err
		}
		recipient.Status = cmd.Status
		recipient.UpdatedAt = now
		if err := tx.SaveRecipient(ctx, recipient); err != nil {
			return err
		}
		envelope, err := uc.envelope(ctx, EventRecipientReviewed, entityTypeRecipient, recipientID, reviewedPayload{
			RecipientID: recipientID,
			Status:      cmd.Status.String(),
			ReviewerID:  reviewerID,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, envelope); err != nil {
			return err
		}
		reviewed = recipient
		return nil
	})
	if err != nil {
		logger.Warn("review transaction failed",
			"event", "allocation_review_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"error", err.Error(),
		)
		return entities.Recipient{}, err
	}

	logger.Info("recipient review applied",
		"event", "allocation_review_applied",
		"module", moduleName,
		"layer", "application",
		"recipient_id", reviewed.RecipientID,
		"status", reviewed.Status.String(),
	)
	return reviewed, nil
}

// Allocate validates an allocation against the recipient status and the
// amount/value pairing. It records the event but moves no funds and mutates
// no ledger.
func (uc UseCase) Allocate(ctx context.Context, cmd AllocateCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	recipientID := strings.TrimSpace(cmd.RecipientID)
	if recipientID == "" {
		return domainerrors.ErrInvalidInput
	}

	asset := cmd.Asset
	if asset == (entities.Asset{}) {
		asset = entities.NativeAsset
	}

	recipient, err := uc.Store.GetRecipient(ctx, recipientID)
	if err != nil {
		if err == domainerrors.ErrRecipientNotFound {
			logger.Warn("allocation for unknown recipient",
				"event", "allocation_allocate_unknown_recipient",
				"module", moduleName,
				"layer", "application",
				"recipient_id", recipientID,
			)
			return domainerrors.ErrRecipientNotAccepted
		}
		return err
	}

	status, err := uc.Store.StatusByIndex(ctx, recipient.DenseIndex)
	if err != nil {
		return err
	}
	if status != entities.StatusAccepted {
		logger.Warn("allocation refused for non-accepted recipient",
			"event", "allocation_allocate_not_accepted",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"status", status.String(),
		)
		return domainerrors.ErrRecipientNotAccepted
	}

	if asset.Native {
		if cmd.SubmittedValue != cmd.Amount {
			logger.Warn("allocation native value mismatch",
				"event", "allocation_allocate_value_mismatch",
				"module", moduleName,
				"layer", "application",
				"recipient_id", recipientID,
				"amount", cmd.Amount,
				"submitted_value", cmd.SubmittedValue,
			)
			return domainerrors.ErrAmountValueMismatch
		}
	} else if cmd.SubmittedValue != 0 {
		logger.Warn("allocation carried native value for non-native asset",
			"event", "allocation_allocate_unexpected_value",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"asset_id", asset.ID,
			"submitted_value", cmd.SubmittedValue,
		)
		return domainerrors.ErrUnexpectedNativeValue
	}

	err = uc.Store.Transact(ctx, func(tx ports.Transaction) error {
		envelope, err := uc.envelope(ctx, EventAllocationRecorded, entityTypeAllocation, recipientID, allocationPayload{
			RecipientID: recipientID,
			Amount:      cmd.Amount,
			AssetID:     asset.ID,
		})
		if err != nil {
			return err
		}
		return tx.AppendOutbox(ctx, envelope)
	})
	if err != nil {
		logger.Error("allocation event append failed",
			"event", "allocation_allocate_event_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", recipientID,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("allocation recorded",
		"event", "allocation_allocate_recorded",
		"module", moduleName,
		"layer", "application",
		"recipient_id", recipientID,
		"amount", cmd.Amount,
		"asset_id", asset.ID,
	)
	return nil
}

// Distribute pays each claim in order, exactly once per recipient, and closes
// registration by latching the distribution phase. The batch is atomic: any
// refused claim or failed transfer rolls back the whole call.
func (uc UseCase) Distribute(ctx context.Context, cmd DistributeCommand) ([]entities.PayoutSummary, error) {
	logger := application.ResolveLogger(uc.Logger)
	executorID := strings.TrimSpace(cmd.ExecutorID)
	poolID := strings.TrimSpace(cmd.PoolID)
	if executorID == "" || poolID == "" {
		return nil, domainerrors.ErrInvalidInput
	}

	manager, err := uc.Pool.IsPoolManager(ctx, executorID)
	if err != nil {
		logger.Error("distribution pool authority check failed",
			"event", "allocation_distribute_authority_check_failed",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"executor_id", executorID,
			"error", err.Error(),
		)
		return nil, err
	}
	if !manager {
		logger.Warn("distribution caller lacks pool manager authority",
			"event", "allocation_distribute_unauthorized",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"executor_id", executorID,
		)
		return nil, domainerrors.ErrUnauthorizedPoolManager
	}

	asset, err := uc.PoolConfig.ConfiguredAsset(ctx, poolID)
	if err != nil {
		logger.Error("distribution pool asset lookup failed",
			"event", "allocation_distribute_asset_lookup_failed",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"error", err.Error(),
		)
		return nil, err
	}

	summaries := make([]entities.PayoutSummary, 0, len(cmd.Claims))
	err = uc.Store.Transact(ctx, func(tx ports.Transaction) error {
		for _, claim := range cmd.Claims {
			summary, err := uc.payClaim(ctx, tx, asset, claim)
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}

		started, err := tx.DistributionStarted(ctx)
		if err != nil {
			return err
		}
		if !started {
			if err := tx.MarkDistributionStarted(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("distribution batch aborted",
			"event", "allocation_distribute_aborted",
			"module", moduleName,
			"layer", "application",
			"pool_id", poolID,
			"claim_count", len(cmd.Claims),
			"error", err.Error(),
		)
		return nil, err
	}

	logger.Info("distribution batch completed",
		"event", "allocation_distribute_completed",
		"module", moduleName,
		"layer", "application",
		"pool_id", poolID,
		"paid_count", len(summaries),
	)
	return summaries, nil
}

func (uc UseCase) payClaim(
	ctx context.Context,
	tx ports.Transaction,
	asset entities.Asset,
	claim entities.DistributionClaim,
) (entities.PayoutSummary, error) {
	recipientID := strings.TrimSpace(claim.RecipientID)
	recipient, err := tx.GetRecipient(ctx, recipientID)
	if err != nil {
		return entities.PayoutSummary{}, err
	}

	consumed, err := tx.ClaimConsumed(ctx, claim.ClaimIndex)
	if err != nil {
		return entities.PayoutSummary{}, err
	}
	amount := claim.Amount
	if consumed {
		amount = 0
	}

	if recipient.PaidOut {
		return entities.PayoutSummary{}, domainerrors.ErrRecipientAlreadyPaid
	}
	if recipient.Status != entities.StatusAccepted {
		return entities.PayoutSummary{}, domainerrors.ErrRecipientNotAccepted
	}
	if amount == 0 {
		return entities.PayoutSummary{}, domainerrors.ErrZeroPayout
	}

	// Mark before transferring so a re-entrant transfer path can never pay
	// twice; a transfer failure aborts the call and rolls the marks back.
	recipient.PaidOut = true
	recipient.UpdatedAt = uc.now()
	if err := tx.SaveRecipient(ctx, recipient); err != nil {
		return entities.PayoutSummary{}, err
	}
	if err := tx.MarkClaimConsumed(ctx, claim.ClaimIndex); err != nil {
		return entities.PayoutSummary{}, err
	}
	if err := tx.Transfer(ctx, asset, recipient.PayoutAddress, amount); err != nil {
		return entities.PayoutSummary{}, err
	}

	envelope, err := uc.envelope(ctx, EventPayoutDistributed, entityTypePayout, recipientID, distributedPayload{
		RecipientID:   recipientID,
		PayoutAddress: recipient.PayoutAddress,
		Amount:        amount,
		ClaimIndex:    claim.ClaimIndex,
		AssetID:       asset.ID,
	})
	if err != nil {
		return entities.PayoutSummary{}, err
	}
	if err := tx.AppendOutbox(ctx, envelope); err != nil {
		return entities.PayoutSummary{}, err
	}

	return entities.PayoutSummary{
		RecipientID:   recipientID,
		PayoutAddress: recipient.PayoutAddress,
		Amount:        amount,
	}, nil
}

func (uc UseCase) envelope(
	ctx context.Context,
	eventType string,
	entityType string,
	entityID string,
	payload any,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  sourceService,
		OccurredAtUTC:  uc.now(),
		EntityType:     entityType,
		EntityID:       entityID,
		PartitionKey:   entityID,
		PayloadVersion: registrationPayloadVersion,
		Payload:        payload,
	}, nil
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func isZeroAddress(address string) bool {
	if address == "" {
		return true
	}
	trimmed := strings.TrimPrefix(strings.ToLower(address), "0x")
	if trimmed == "" {
		return true
	}
	for _, r := range trimmed {
		if r != '0' {
			return false
		}
	}
	return true
}
