package commands

import (
	"context"
	"fmt"
	"testing"
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/adapters/memory"
	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type seqIDGen struct {
	next int
}

func (g *seqIDGen) NewID(_ context.Context) (string, error) {
	g.next++
	return fmt.Sprintf("evt-%d", g.next), nil
}

func newTestUseCase(seed memory.Seed) (UseCase, *memory.Store) {
	store := memory.NewStore(seed)
	return UseCase{
		Store:      store,
		Profiles:   store,
		Pool:       store,
		PoolConfig: store,
		Clock:      fixedClock{now: time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)},
		IDGen:      &seqIDGen{},
	}, store
}

func fundedSeed() memory.Seed {
	return memory.Seed{
		ProfileMembers: map[string][]string{
			"profile-1": {"member-1"},
			"profile-2": {"member-2"},
		},
		PoolManagers: []string{"manager-1"},
		PoolAssets:   map[string]entities.Asset{"pool-1": entities.NativeAsset},
		AssetBalances: map[string]uint64{
			entities.NativeAsset.ID: 1_000,
		},
	}
}

func register(t *testing.T, uc UseCase, recipientID, address, submitterID string) entities.Recipient {
	t.Helper()
	recipient, err := uc.Register(context.Background(), RegisterCommand{
		RecipientID:   recipientID,
		PayoutAddress: address,
		SubmitterID:   submitterID,
	})
	if err != nil {
		t.Fatalf("register %s: %v", recipientID, err)
	}
	return recipient
}

func review(t *testing.T, uc UseCase, recipientID string, status entities.Status) {
	t.Helper()
	if _, err := uc.Review(context.Background(), ReviewCommand{
		RecipientID: recipientID,
		Status:      status,
		ReviewerID:  "manager-1",
	}); err != nil {
		t.Fatalf("review %s to %s: %v", recipientID, status, err)
	}
}

func accept(t *testing.T, uc UseCase, recipientID string) {
	t.Helper()
	review(t, uc, recipientID, entities.StatusAccepted)
}

func TestFirstRegistrationAssignsSequentialIndexesAndPending(t *testing.T) {
	uc, store := newTestUseCase(fundedSeed())
	ctx := context.Background()

	first := register(t, uc, "profile-1", "addr-1", "member-1")
	if first.Status != entities.StatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}
	if first.DenseIndex != 1 {
		t.Fatalf("expected dense index 1, got %d", first.DenseIndex)
	}

	second := register(t, uc, "profile-2", "addr-2", "member-2")
	if second.DenseIndex != 2 {
		t.Fatalf("expected dense index 2, got %d", second.DenseIndex)
	}

	counter, err := store.RecipientsCounter(ctx)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter != 3 {
		t.Fatalf("expected counter 3 after two registrations, got %d", counter)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected two registered events, got %d", len(pending))
	}
	if pending[0].EventType != EventRecipientRegistered {
		t.Fatalf("expected %s, got %s", EventRecipientRegistered, pending[0].EventType)
	}
}

func TestRegisterRejectsNonProfileMember(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	_, err := uc.Register(context.Background(), RegisterCommand{
		RecipientID:   "profile-1",
		PayoutAddress: "addr-1",
		SubmitterID:   "stranger",
	})
	if err != domainerrors.ErrUnauthorizedProfileMember {
		t.Fatalf("expected unauthorized profile member, got %v", err)
	}
}

func TestRegisterRejectsZeroAddress(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	for _, address := range []string{"", "0x0000000000000000000000000000000000000000", "0x0"} {
		_, err := uc.Register(context.Background(), RegisterCommand{
			RecipientID:   "profile-1",
			PayoutAddress: address,
			SubmitterID:   "member-1",
		})
		if err != domainerrors.ErrInvalidRecipientAddress {
			t.Fatalf("address %q: expected invalid recipient address, got %v", address, err)
		}
	}
}

func TestReRegistrationStatusTransitions(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, uc UseCase)
		after entities.Status
	}{
		{
			name: "accepted back to pending",
			setup: func(t *testing.T, uc UseCase) {
				review(t, uc, "profile-1", entities.StatusAccepted)
			},
			after: entities.StatusPending,
		},
		{
			name: "rejected becomes appealed",
			setup: func(t *testing.T, uc UseCase) {
				review(t, uc, "profile-1", entities.StatusRejected)
			},
			after: entities.StatusAppealed,
		},
		{
			name:  "pending unchanged",
			setup: func(t *testing.T, uc UseCase) {},
			after: entities.StatusPending,
		},
		{
			name: "appealed unchanged",
			setup: func(t *testing.T, uc UseCase) {
				review(t, uc, "profile-1", entities.StatusRejected)
				register(t, uc, "profile-1", "addr-appeal", "member-1")
			},
			after: entities.StatusAppealed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc, store := newTestUseCase(fundedSeed())
			ctx := context.Background()

			register(t, uc, "profile-1", "addr-1", "member-1")
			tc.setup(t, uc)

			updated := register(t, uc, "profile-1", "addr-updated", "member-1")
			if updated.Status != tc.after {
				t.Fatalf("expected %s, got %s", tc.after, updated.Status)
			}
			if updated.PayoutAddress != "addr-updated" {
				t.Fatalf("expected address overwritten, got %q", updated.PayoutAddress)
			}
			if updated.DenseIndex != 1 {
				t.Fatalf("dense index must never change, got %d", updated.DenseIndex)
			}

			status, err := store.StatusByIndex(ctx, updated.DenseIndex)
			if err != nil {
				t.Fatalf("ledger status: %v", err)
			}
			if status != tc.after {
				t.Fatalf("ledger out of sync: expected %s, got %s", tc.after, status)
			}
		})
	}
}

func TestReviewRequiresPoolManagerAndValidStatus(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	register(t, uc, "profile-1", "addr-1", "member-1")

	_, err := uc.Review(context.Background(), ReviewCommand{
		RecipientID: "profile-1",
		Status:      entities.StatusAccepted,
		ReviewerID:  "member-1",
	})
	if err != domainerrors.ErrUnauthorizedPoolManager {
		t.Fatalf("expected unauthorized pool manager, got %v", err)
	}

	_, err = uc.Review(context.Background(), ReviewCommand{
		RecipientID: "profile-1",
		Status:      entities.StatusAppealed,
		ReviewerID:  "manager-1",
	})
	if err != domainerrors.ErrInvalidReviewStatus {
		t.Fatalf("expected invalid review status, got %v", err)
	}
}

func TestAllocateValidatesStatusAndValuePairing(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	ctx := context.Background()
	register(t, uc, "profile-1", "addr-1", "member-1")

	err := uc.Allocate(ctx, AllocateCommand{RecipientID: "profile-1", Amount: 100, SubmittedValue: 100})
	if err != domainerrors.ErrRecipientNotAccepted {
		t.Fatalf("pending recipient: expected not accepted, got %v", err)
	}

	accept(t, uc, "profile-1")

	err = uc.Allocate(ctx, AllocateCommand{RecipientID: "profile-1", Amount: 100, SubmittedValue: 99})
	if err != domainerrors.ErrAmountValueMismatch {
		t.Fatalf("expected amount/value mismatch, got %v", err)
	}

	err = uc.Allocate(ctx, AllocateCommand{
		RecipientID:    "profile-1",
		Amount:         100,
		SubmittedValue: 100,
		Asset:          entities.Asset{ID: "erc20-x"},
	})
	if err != domainerrors.ErrUnexpectedNativeValue {
		t.Fatalf("expected unexpected native value, got %v", err)
	}

	if err := uc.Allocate(ctx, AllocateCommand{RecipientID: "profile-1", Amount: 100, SubmittedValue: 100}); err != nil {
		t.Fatalf("valid allocation: %v", err)
	}

	err = uc.Allocate(ctx, AllocateCommand{RecipientID: "profile-unknown", Amount: 1, SubmittedValue: 1})
	if err != domainerrors.ErrRecipientNotAccepted {
		t.Fatalf("unknown recipient: expected not accepted, got %v", err)
	}
}

func TestDistributePaysOnceAndLatchesRegistration(t *testing.T) {
	uc, store := newTestUseCase(fundedSeed())
	ctx := context.Background()

	register(t, uc, "profile-1", "addr-1", "member-1")
	accept(t, uc, "profile-1")

	summaries, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 0, Amount: 100},
		},
	})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Amount != 100 || summaries[0].PayoutAddress != "addr-1" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
	if got := store.AssetBalance(entities.NativeAsset.ID); got != 900 {
		t.Fatalf("expected pool debited to 900, got %d", got)
	}

	recipient, err := store.GetRecipient(ctx, "profile-1")
	if err != nil {
		t.Fatalf("get recipient: %v", err)
	}
	if !recipient.PaidOut {
		t.Fatal("expected recipient marked paid out")
	}
	started, err := store.DistributionStarted(ctx)
	if err != nil {
		t.Fatalf("distribution started: %v", err)
	}
	if !started {
		t.Fatal("expected distribution latch set")
	}

	// Second payout for the same recipient must refuse, even on a fresh claim index.
	_, err = uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 1, Amount: 50},
		},
	})
	if err != domainerrors.ErrRecipientAlreadyPaid {
		t.Fatalf("expected already paid, got %v", err)
	}

	// Registration is permanently closed, even for brand-new recipients.
	_, err = uc.Register(ctx, RegisterCommand{
		RecipientID:   "profile-2",
		PayoutAddress: "addr-2",
		SubmitterID:   "member-2",
	})
	if err != domainerrors.ErrRegistrationClosed {
		t.Fatalf("expected registration closed, got %v", err)
	}
}

func TestDistributeRequiresPoolManager(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	_, err := uc.Distribute(context.Background(), DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "member-1",
	})
	if err != domainerrors.ErrUnauthorizedPoolManager {
		t.Fatalf("expected unauthorized pool manager, got %v", err)
	}
}

func TestDistributeRefusesRecipientEditedBackToPending(t *testing.T) {
	uc, _ := newTestUseCase(fundedSeed())
	ctx := context.Background()

	register(t, uc, "profile-1", "addr-1", "member-1")
	accept(t, uc, "profile-1")
	// Re-registering an accepted recipient forces re-review.
	register(t, uc, "profile-1", "addr-1b", "member-1")

	_, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 0, Amount: 100},
		},
	})
	if err != domainerrors.ErrRecipientNotAccepted {
		t.Fatalf("expected not accepted, got %v", err)
	}
}

func TestDistributeRefusesConsumedClaimIndex(t *testing.T) {
	uc, store := newTestUseCase(fundedSeed())
	ctx := context.Background()

	register(t, uc, "profile-1", "addr-1", "member-1")
	accept(t, uc, "profile-1")
	if err := store.MarkClaimConsumed(ctx, 5); err != nil {
		t.Fatalf("mark claim: %v", err)
	}

	_, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 5, Amount: 100},
		},
	})
	if err != domainerrors.ErrZeroPayout {
		t.Fatalf("expected zero payout, got %v", err)
	}
}

func TestDistributeBatchIsAtomic(t *testing.T) {
	uc, store := newTestUseCase(fundedSeed())
	ctx := context.Background()

	register(t, uc, "profile-1", "addr-1", "member-1")
	accept(t, uc, "profile-1")
	register(t, uc, "profile-2", "addr-2", "member-2")
	// profile-2 stays pending, so the second claim must sink the batch.

	_, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 0, Amount: 100},
			{RecipientID: "profile-2", ClaimIndex: 1, Amount: 100},
		},
	})
	if err != domainerrors.ErrRecipientNotAccepted {
		t.Fatalf("expected not accepted, got %v", err)
	}

	recipient, err := store.GetRecipient(ctx, "profile-1")
	if err != nil {
		t.Fatalf("get recipient: %v", err)
	}
	if recipient.PaidOut {
		t.Fatal("expected first claim rolled back with the batch")
	}
	if got := store.AssetBalance(entities.NativeAsset.ID); got != 1_000 {
		t.Fatalf("expected pool untouched, got %d", got)
	}
	started, err := store.DistributionStarted(ctx)
	if err != nil {
		t.Fatalf("distribution started: %v", err)
	}
	if started {
		t.Fatal("expected latch rolled back with the batch")
	}
}

func TestDistributeRollsBackOnTransferFailure(t *testing.T) {
	seed := fundedSeed()
	seed.AssetBalances[entities.NativeAsset.ID] = 50
	uc, store := newTestUseCase(seed)
	ctx := context.Background()

	register(t, uc, "profile-1", "addr-1", "member-1")
	accept(t, uc, "profile-1")

	_, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
		Claims: []entities.DistributionClaim{
			{RecipientID: "profile-1", ClaimIndex: 0, Amount: 100},
		},
	})
	if err != domainerrors.ErrInsufficientPoolFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	recipient, err := store.GetRecipient(ctx, "profile-1")
	if err != nil {
		t.Fatalf("get recipient: %v", err)
	}
	if recipient.PaidOut {
		t.Fatal("expected paid-out mark rolled back after transfer failure")
	}
	consumed, err := store.ClaimConsumed(ctx, 0)
	if err != nil {
		t.Fatalf("claim consumed: %v", err)
	}
	if consumed {
		t.Fatal("expected claim mark rolled back after transfer failure")
	}
}

func TestEmptyDistributeStillClosesRegistration(t *testing.T) {
	uc, store := newTestUseCase(fundedSeed())
	ctx := context.Background()

	summaries, err := uc.Distribute(ctx, DistributeCommand{
		PoolID:     "pool-1",
		ExecutorID: "manager-1",
	})
	if err != nil {
		t.Fatalf("empty distribute: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no payouts, got %d", len(summaries))
	}
	started, err := store.DistributionStarted(ctx)
	if err != nil {
		t.Fatalf("distribution started: %v", err)
	}
	if !started {
		t.Fatal("expected latch set by empty batch")
	}
}
