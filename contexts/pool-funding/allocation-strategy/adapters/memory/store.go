package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"grantpool/contexts/pool-funding/allocation-strategy/domain/entities"
	domainerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	"grantpool/contexts/pool-funding/allocation-strategy/domain/statusledger"
	"grantpool/contexts/pool-funding/allocation-strategy/ports"
	"grantpool/internal/shared/bitfield"

	"github.com/google/uuid"
)

type outboxRecord struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// Seed primes the store for dev and test wiring.
type Seed struct {
	Recipients     []entities.Recipient
	ProfileMembers map[string][]string
	PoolManagers   []string
	PoolAssets     map[string]entities.Asset
	AssetBalances  map[string]uint64
}

// strategyState is everything a command transaction may mutate. Transact
// stages a deep copy and swaps it in on success.
type strategyState struct {
	recipients map[string]entities.Recipient
	statuses   *statusledger.Ledger
	claims     *bitfield.PackedArray
	nextIndex  uint64
	started    bool
	balances   map[string]uint64
	outbox     map[string]outboxRecord
}

func newStrategyState() *strategyState {
	claims, err := bitfield.NewPackedArray(1)
	if err != nil {
		panic(err)
	}
	return &strategyState{
		recipients: make(map[string]entities.Recipient),
		statuses:   statusledger.New(),
		claims:     claims,
		nextIndex:  1,
		balances:   make(map[string]uint64),
		outbox:     make(map[string]outboxRecord),
	}
}

func (st *strategyState) clone() *strategyState {
	recipients := make(map[string]entities.Recipient, len(st.recipients))
	for id, recipient := range st.recipients {
		recipients[id] = recipient
	}
	balances := make(map[string]uint64, len(st.balances))
	for assetID, balance := range st.balances {
		balances[assetID] = balance
	}
	outbox := make(map[string]outboxRecord, len(st.outbox))
	for id, row := range st.outbox {
		outbox[id] = row
	}
	return &strategyState{
		recipients: recipients,
		statuses:   st.statuses.Clone(),
		claims:     st.claims.Clone(),
		nextIndex:  st.nextIndex,
		started:    st.started,
		balances:   balances,
		outbox:     outbox,
	}
}

func (st *strategyState) getRecipient(recipientID string) (entities.Recipient, error) {
	recipient, ok := st.recipients[strings.TrimSpace(recipientID)]
	if !ok {
		return entities.Recipient{}, domainerrors.ErrRecipientNotFound
	}
	return recipient, nil
}

func (st *strategyState) saveRecipient(recipient entities.Recipient) error {
	if strings.TrimSpace(recipient.RecipientID) == "" {
		return domainerrors.ErrInvalidInput
	}
	st.recipients[recipient.RecipientID] = recipient
	return nil
}

func (st *strategyState) nextDenseIndex() uint64 {
	index := st.nextIndex
	st.nextIndex++
	return index
}

func (st *strategyState) transfer(asset entities.Asset, destination string, amount uint64) error {
	if strings.TrimSpace(destination) == "" {
		return domainerrors.ErrTransferFailed
	}
	balance, ok := st.balances[asset.ID]
	if !ok {
		return domainerrors.ErrUnknownAsset
	}
	if balance < amount {
		return domainerrors.ErrInsufficientPoolFunds
	}
	st.balances[asset.ID] = balance - amount
	return nil
}

func (st *strategyState) appendOutbox(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := st.outbox[outboxID]; exists {
		return nil
	}
	st.outbox[outboxID] = outboxRecord{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    envelope.OccurredAtUTC.UTC(),
	}
	return nil
}

// Store keeps the whole strategy state in process. It backs unit tests, the
// httpserver tests, and local development without Postgres.
type Store struct {
	mu    sync.RWMutex
	state *strategyState

	members  map[string]map[string]bool
	managers map[string]bool
	assets   map[string]entities.Asset
}

func NewStore(seed Seed) *Store {
	state := newStrategyState()
	for _, recipient := range seed.Recipients {
		if strings.TrimSpace(recipient.RecipientID) == "" {
			continue
		}
		state.recipients[recipient.RecipientID] = recipient
		if recipient.DenseIndex > 0 {
			state.statuses.SetStatus(recipient.DenseIndex, recipient.Status)
			if recipient.DenseIndex >= state.nextIndex {
				state.nextIndex = recipient.DenseIndex + 1
			}
		}
	}
	for assetID, balance := range seed.AssetBalances {
		state.balances[assetID] = balance
	}

	members := make(map[string]map[string]bool, len(seed.ProfileMembers))
	for anchorID, callerIDs := range seed.ProfileMembers {
		set := make(map[string]bool, len(callerIDs))
		for _, callerID := range callerIDs {
			set[strings.TrimSpace(callerID)] = true
		}
		members[strings.TrimSpace(anchorID)] = set
	}
	managers := make(map[string]bool, len(seed.PoolManagers))
	for _, managerID := range seed.PoolManagers {
		managers[strings.TrimSpace(managerID)] = true
	}
	assets := make(map[string]entities.Asset, len(seed.PoolAssets))
	for poolID, asset := range seed.PoolAssets {
		assets[strings.TrimSpace(poolID)] = asset
	}

	return &Store{
		state:    state,
		members:  members,
		managers: managers,
		assets:   assets,
	}
}

// txSession is the staged view handed to Transact callbacks. The store lock
// is held for the whole callback, so the session itself does not lock.
type txSession struct {
	state *strategyState
}

func (s *Store) Transact(ctx context.Context, fn func(tx ports.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&txSession{state: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) GetRecipient(_ context.Context, recipientID string) (entities.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getRecipient(recipientID)
}

func (s *Store) SaveRecipient(_ context.Context, recipient entities.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.saveRecipient(recipient)
}

func (s *Store) RecipientsCounter(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.nextIndex, nil
}

func (s *Store) NextDenseIndex(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.nextDenseIndex(), nil
}

func (s *Store) StatusByIndex(_ context.Context, denseIndex uint64) (entities.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.statuses.Status(denseIndex), nil
}

func (s *Store) SetStatusByIndex(_ context.Context, denseIndex uint64, status entities.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.statuses.SetStatus(denseIndex, status)
	return nil
}

func (s *Store) ClaimConsumed(_ context.Context, claimIndex uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.claims.Get(claimIndex) == 1, nil
}

func (s *Store) MarkClaimConsumed(_ context.Context, claimIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.claims.Set(claimIndex, 1)
}

func (s *Store) DistributionStarted(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.started, nil
}

func (s *Store) MarkDistributionStarted(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.started = true
	return nil
}

func (s *Store) Transfer(_ context.Context, asset entities.Asset, destination string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.transfer(asset, destination, amount)
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.appendOutbox(envelope)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.state.outbox))
	for _, row := range s.state.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
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

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(outboxID)
	row, ok := s.state.outbox[key]
	if !ok {
		return domainerrors.ErrInvalidInput
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.state.outbox[key] = row
	return nil
}

func (s *Store) IsAuthorizedMember(_ context.Context, anchorID string, callerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.members[strings.TrimSpace(anchorID)]
	if !ok {
		return false, nil
	}
	return set[strings.TrimSpace(callerID)], nil
}

func (s *Store) IsPoolManager(_ context.Context, callerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.managers[strings.TrimSpace(callerID)], nil
}

func (s *Store) ConfiguredAsset(_ context.Context, poolID string) (entities.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[strings.TrimSpace(poolID)]
	if !ok {
		return entities.Asset{}, domainerrors.ErrUnknownAsset
	}
	return asset, nil
}

// AssetBalance reports the remaining pool balance for an asset. Test hook.
func (s *Store) AssetBalance(assetID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[assetID]
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (t *txSession) GetRecipient(_ context.Context, recipientID string) (entities.Recipient, error) {
	return t.state.getRecipient(recipientID)
}

func (t *txSession) SaveRecipient(_ context.Context, recipient entities.Recipient) error {
	return t.state.saveRecipient(recipient)
}

func (t *txSession) RecipientsCounter(_ context.Context) (uint64, error) {
	return t.state.nextIndex, nil
}

func (t *txSession) NextDenseIndex(_ context.Context) (uint64, error) {
	return t.state.nextDenseIndex(), nil
}

func (t *txSession) StatusByIndex(_ context.Context, denseIndex uint64) (entities.Status, error) {
	return t.state.statuses.Status(denseIndex), nil
}

func (t *txSession) SetStatusByIndex(_ context.Context, denseIndex uint64, status entities.Status) error {
	t.state.statuses.SetStatus(denseIndex, status)
	return nil
}

func (t *txSession) ClaimConsumed(_ context.Context, claimIndex uint64) (bool, error) {
	return t.state.claims.Get(claimIndex) == 1, nil
}

func (t *txSession) MarkClaimConsumed(_ context.Context, claimIndex uint64) error {
	return t.state.claims.Set(claimIndex, 1)
}

func (t *txSession) DistributionStarted(_ context.Context) (bool, error) {
	return t.state.started, nil
}

func (t *txSession) MarkDistributionStarted(_ context.Context) error {
	t.state.started = true
	return nil
}

func (t *txSession) Transfer(_ context.Context, asset entities.Asset, destination string, amount uint64) error {
	return t.state.transfer(asset, destination, amount)
}

func (t *txSession) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	return t.state.appendOutbox(envelope)
}

var _ ports.Store = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.ProfileAuthority = (*Store)(nil)
var _ ports.PoolAuthority = (*Store)(nil)
var _ ports.PoolConfigSource = (*Store)(nil)
var _ ports.AssetTransfer = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.Transaction = (*txSession)(nil)
