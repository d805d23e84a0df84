package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "grantpool/contexts/pool-funding/allocation-strategy/application"
	"grantpool/contexts/pool-funding/allocation-strategy/application/commands"
	"grantpool/contexts/pool-funding/allocation-strategy/application/queries"
	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	httptransport "grantpool/contexts/pool-funding/allocation-strategy/transport/http"
)

const moduleName = "pool-funding/allocation-strategy"

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) RegisterHandler(
	ctx context.Context,
	submitterID string,
	req httptransport.RegisterRequest,
) (httptransport.RecipientDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	recipient, err := h.Commands.Register(ctx, commands.RegisterCommand{
		RecipientID:   req.RecipientID,
		PayoutAddress: req.PayoutAddress,
		SubmitterID:   submitterID,
		Metadata:      req.Metadata,
	})
	if err != nil {
		logger.Warn("allocation http register failed",
			"event", "allocation_http_register_failed",
			"module", moduleName,
			"layer", "adapter",
			"recipient_id", strings.TrimSpace(req.RecipientID),
			"submitter_id", strings.TrimSpace(submitterID),
			"error", err.Error(),
		)
		return httptransport.RecipientDTO{}, err
	}
	logger.Info("allocation http register completed",
		"event", "allocation_http_register_completed",
		"module", moduleName,
		"layer", "adapter",
		"recipient_id", recipient.RecipientID,
		"dense_index", recipient.DenseIndex,
	)
	return recipientDTO(recipient), nil
}

func (h Handler) ReviewHandler(
	ctx context.Context,
	reviewerID string,
	recipientID string,
	req httptransport.ReviewRequest,
) (httptransport.RecipientDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	status, ok := entities.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		return httptransport.RecipientDTO{}, domainerrors.ErrInvalidReviewStatus
	}
	recipient, err := h.Commands.Review(ctx, commands.ReviewCommand{
		RecipientID: recipientID,
		Status:      status,
		ReviewerID:  reviewerID,
	})
	if err != nil {
		logger.Warn("allocation http review failed",
			"event", "allocation_http_review_failed",
			"module", moduleName,
			"layer", "adapter",
			"recipient_id", strings.TrimSpace(recipientID),
			"reviewer_id", strings.TrimSpace(reviewerID),
			"status", status.String(),
			"error", err.Error(),
		)
		return httptransport.RecipientDTO{}, err
	}
	logger.Info("allocation http review completed",
		"event", "allocation_http_review_completed",
		"module", moduleName,
		"layer", "adapter",
		"recipient_id", recipient.RecipientID,
		"status", recipient.Status.String(),
	)
	return recipientDTO(recipient), nil
}

func (h Handler) AllocateHandler(
	ctx context.Context,
	req httptransport.AllocateRequest,
) error {
	logger := application.ResolveLogger(h.Logger)
	asset := entities.Asset{}
	if assetID := strings.TrimSpace(req.AssetID); assetID != "" && assetID != entities.NativeAsset.ID {
		asset = entities.Asset{ID: assetID}
	}
	if err := h.Commands.Allocate(ctx, commands.AllocateCommand{
		RecipientID:    req.RecipientID,
		Amount:         req.Amount,
		SubmittedValue: req.SubmittedValue,
		Asset:          asset,
	}); err != nil {
		logger.Warn("allocation http allocate failed",
			"event", "allocation_http_allocate_failed",
			"module", moduleName,
			"layer", "adapter",
			"recipient_id", strings.TrimSpace(req.RecipientID),
			"amount", req.Amount,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("allocation http allocate completed",
		"event", "allocation_http_allocate_completed",
		"module", moduleName,
		"layer", "adapter",
		"recipient_id", strings.TrimSpace(req.RecipientID),
		"amount", req.Amount,
	)
	return nil
}

func (h Handler) DistributeHandler(
	ctx context.Context,
	executorID string,
	req httptransport.DistributeRequest,
) (httptransport.DistributeResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	claims := make([]entities.DistributionClaim, 0, len(req.Claims))
	for _, claim := range req.Claims {
		claims = append(claims, entities.DistributionClaim{
			RecipientID: claim.RecipientID,
			ClaimIndex:  claim.ClaimIndex,
			Amount:      claim.Amount,
		})
	}
	summaries, err := h.Commands.Distribute(ctx, commands.DistributeCommand{
		PoolID:     req.PoolID,
		ExecutorID: executorID,
		Claims:     claims,
	})
	if err != nil {
		logger.Warn("allocation http distribute failed",
			"event", "allocation_http_distribute_failed",
			"module", moduleName,
			"layer", "adapter",
			"pool_id", strings.TrimSpace(req.PoolID),
			"executor_id", strings.TrimSpace(executorID),
			"claim_count", len(req.Claims),
			"error", err.Error(),
		)
		return httptransport.DistributeResponse{}, err
	}

	payouts := make([]httptransport.PayoutDTO, 0, len(summaries))
	for _, summary := range summaries {
		payouts = append(payouts, httptransport.PayoutDTO{
			RecipientID:   summary.RecipientID,
			PayoutAddress: summary.PayoutAddress,
			Amount:        summary.Amount,
		})
	}
	logger.Info("allocation http distribute completed",
		"event", "allocation_http_distribute_completed",
		"module", moduleName,
		"layer", "adapter",
		"pool_id", strings.TrimSpace(req.PoolID),
		"paid_count", len(payouts),
	)
	return httptransport.DistributeResponse{Payouts: payouts}, nil
}

func (h Handler) GetRecipientHandler(ctx context.Context, recipientID string) (httptransport.RecipientDTO, error) {
	recipient, err := h.Queries.GetRecipient(ctx, recipientID)
	if err != nil {
		return httptransport.RecipientDTO{}, err
	}
	return recipientDTO(recipient), nil
}

func (h Handler) GetStatusHandler(ctx context.Context, recipientID string) (httptransport.StatusResponse, error) {
	status, err := h.Queries.GetStatus(ctx, recipientID)
	if err != nil {
		return httptransport.StatusResponse{}, err
	}
	return httptransport.StatusResponse{
		RecipientID: strings.TrimSpace(recipientID),
		Status:      status.String(),
		Accepted:    status == entities.StatusAccepted,
	}, nil
}

func (h Handler) PayoutPreviewHandler(
	ctx context.Context,
	claimIndex uint64,
	recipientID string,
	claimedAmount uint64,
) (httptransport.PayoutPreviewResponse, error) {
	summary, err := h.Queries.ComputePayout(ctx, claimIndex, recipientID, claimedAmount)
	if err != nil {
		return httptransport.PayoutPreviewResponse{}, err
	}
	return httptransport.PayoutPreviewResponse{
		RecipientID:   summary.RecipientID,
		PayoutAddress: summary.PayoutAddress,
		ClaimIndex:    claimIndex,
		Amount:        summary.Amount,
	}, nil
}

func (h Handler) StateHandler(ctx context.Context) (httptransport.StrategyStateResponse, error) {
	state, err := h.Queries.State(ctx)
	if err != nil {
		return httptransport.StrategyStateResponse{}, err
	}
	return httptransport.StrategyStateResponse{
		RecipientsCounter:   state.RecipientsCounter,
		DistributionStarted: state.DistributionStarted,
	}, nil
}

func recipientDTO(recipient entities.Recipient) httptransport.RecipientDTO {
	dto := httptransport.RecipientDTO{
		RecipientID:   recipient.RecipientID,
		PayoutAddress: recipient.PayoutAddress,
		DenseIndex:    recipient.DenseIndex,
		Status:        recipient.Status.String(),
		PaidOut:       recipient.PaidOut,
	}
	if !recipient.RegisteredAt.IsZero() {
		dto.RegisteredAt = recipient.RegisteredAt.UTC().Format(time.RFC3339)
	}
	if !recipient.UpdatedAt.IsZero() {
		dto.UpdatedAt = recipient.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
