package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RegisterRequest struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	Metadata      string `json:"metadata,omitempty"`
}

type ReviewRequest struct {
	Status string `json:"status"`
}

type AllocateRequest struct {
	RecipientID    string `json:"recipient_id"`
	Amount         uint64 `json:"amount"`
	SubmittedValue uint64 `json:"submitted_value"`
	AssetID        string `json:"asset_id,omitempty"`
}

type DistributionClaimDTO struct {
	RecipientID string `json:"recipient_id"`
	ClaimIndex  uint64 `json:"claim_index"`
	Amount      uint64 `json:"amount"`
}

type DistributeRequest struct {
	PoolID string                 `json:"pool_id"`
	Claims []DistributionClaimDTO `json:"claims"`
}

type RecipientDTO struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	DenseIndex    uint64 `json:"dense_index"`
	Status        string `json:"status"`
	PaidOut       bool   `json:"paid_out"`
	RegisteredAt  string `json:"registered_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

type StatusResponse struct {
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Accepted    bool   `json:"accepted"`
}

type PayoutPreviewResponse struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	ClaimIndex    uint64 `json:"claim_index"`
	Amount        uint64 `json:"amount"`
}

type PayoutDTO struct {
	RecipientID   string `json:"recipient_id"`
	PayoutAddress string `json:"payout_address"`
	Amount        uint64 `json:"amount"`
}

type DistributeResponse struct {
	Payouts []PayoutDTO `json:"payouts"`
}

type StrategyStateResponse struct {
	RecipientsCounter   uint64 `json:"recipients_counter"`
	DistributionStarted bool   `json:"distribution_started"`
}
