package dto

import "time"

type WalletResponse struct {
	UserID     string `json:"userId"`
	WalletID   string `json:"walletId"`
	PaidCents  int64  `json:"paid_cents"`
	BonusCents int64  `json:"bonus_cents"`
	TotalCents int64  `json:"total_cents"`
	Version    int64  `json:"version"`
}

type TransactionResponse struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	Type               string            `json:"type"`
	AmountCents        int64             `json:"amount_cents"`
	PaidCents          int64             `json:"paid_cents"`
	BonusCents         int64             `json:"bonus_cents"`
	BalanceBeforeCents int64             `json:"balance_before_cents"`
	BalanceAfterCents  int64             `json:"balance_after_cents"`
	MatchID            string            `json:"matchId,omitempty"`
	IdempotencyKey     string            `json:"idempotency_key,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
