package dto

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}

type CreditRequest struct {
	UserID         string            `json:"userId"`
	AmountCents    int64             `json:"amount_cents"`
	Type           string            `json:"type"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	MatchID        string            `json:"matchId,omitempty"`
	UseBonus       bool              `json:"use_bonus,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type DebitRequest struct {
	UserID         string            `json:"userId"`
	AmountCents    int64             `json:"amount_cents"`
	Type           string            `json:"type"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	MatchID        string            `json:"matchId,omitempty"`
	PreferBonus    bool              `json:"prefer_bonus,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type RefundRequest struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	IdempotencyKey        string `json:"idempotency_key"`
}
