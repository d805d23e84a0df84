package queries

import (
	"context"
	"log/slog"
	"strings"

	application "grantpool/contexts/pool-funding/allocation-strategy/application"
	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
)

const moduleName = "pool-funding/allocation-strategy"

type UseCase struct {
	Store  ports.Store
	Logger *slog.Logger
}

// StrategyState is the read-only snapshot exposed to callers.
type StrategyState struct {
	RecipientsCounter   uint64
	DistributionStarted bool
}

// GetRecipient returns the full recipient record.
func (uc UseCase) GetRecipient(ctx context.Context, recipientID string) (entities.Recipient, error) {
	logger := application.ResolveLogger(uc.Logger)
	normalizedID := strings.TrimSpace(recipientID)
	recipient, err := uc.Store.GetRecipient(ctx, normalizedID)
	if err != nil {
		logger.Warn("recipient lookup failed",
			"event", "allocation_query_get_recipient_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", normalizedID,
			"error", err.Error(),
		)
		return entities.Recipient{}, err
	}
	return recipient, nil
}

// GetStatus reads the effective status through the packed ledger. Recipients
// that never registered read StatusNone.
func (uc UseCase) GetStatus(ctx context.Context, recipientID string) (entities.Status, error) {
	recipient, err := uc.Store.GetRecipient(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		if err == domainerrors.ErrRecipientNotFound {
			return entities.StatusNone, nil
		}
		return entities.StatusNone, err
	}
	return uc.Store.StatusByIndex(ctx, recipient.DenseIndex)
}

// IsAccepted reports whether the recipient currently holds Accepted status.
func (uc UseCase) IsAccepted(ctx context.Context, recipientID string) (bool, error) {
	status, err := uc.GetStatus(ctx, recipientID)
	if err != nil {
		return false, err
	}
	return status == entities.StatusAccepted, nil
}

// ComputePayout resolves the payout address and amount for one claim. An
// already-consumed claim index zeroes the amount but still resolves the
// address; the claimed amount is otherwise passed through unchecked, matching
// the reference behavior.
func (uc UseCase) ComputePayout(
	ctx context.Context,
	claimIndex uint64,
	recipientID string,
	claimedAmount uint64,
) (entities.PayoutSummary, error) {
	logger := application.ResolveLogger(uc.Logger)
	normalizedID := strings.TrimSpace(recipientID)

	recipient, err := uc.Store.GetRecipient(ctx, normalizedID)
	if err != nil {
		logger.Warn("payout preview recipient lookup failed",
			"event", "allocation_query_compute_payout_failed",
			"module", moduleName,
			"layer", "application",
			"recipient_id", normalizedID,
			"claim_index", claimIndex,
			"error", err.Error(),
		)
		return entities.PayoutSummary{}, err
	}

	consumed, err := uc.Store.ClaimConsumed(ctx, claimIndex)
	if err != nil {
		return entities.PayoutSummary{}, err
	}
	amount := claimedAmount
	if consumed {
		amount = 0
	}
	return entities.PayoutSummary{
		RecipientID:   normalizedID,
		PayoutAddress: recipient.PayoutAddress,
		Amount:        amount,
	}, nil
}

// PaidOut reports whether the recipient's one-time payout already executed.
func (uc UseCase) PaidOut(ctx context.Context, recipientID string) (bool, error) {
	recipient, err := uc.Store.GetRecipient(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		return false, err
	}
	return recipient.PaidOut, nil
}

// State returns the counters and phase flags.
func (uc UseCase) State(ctx context.Context) (StrategyState, error) {
	logger := application.ResolveLogger(uc.Logger)
	counter, err := uc.Store.RecipientsCounter(ctx)
	if err != nil {
		logger.Error("strategy state counter read failed",
			"event", "allocation_query_state_failed",
			"module", moduleName,
			"layer", "application",
			"error", err.Error(),
		)
		return StrategyState{}, err
	}
	started, err := uc.Store.DistributionStarted(ctx)
	if err != nil {
		return StrategyState{}, err
	}
	return StrategyState{
		RecipientsCounter:   counter,
		DistributionStarted: started,
	}, nil
}
