package repo

import "time"

// Tipos de transação do ledger.
type TxType string

const (
	TxDeposit     TxType = "DEPOSIT"
	TxWithdrawal  TxType = "WITHDRAWAL"
	TxMatchEntry  TxType = "MATCH_ENTRY"
	TxMatchWin    TxType = "MATCH_WIN"
	TxMatchRefund TxType = "MATCH_REFUND"
	TxRakeFee     TxType = "RAKE_FEE"
	TxBonus       TxType = "BONUS"
)

// Wallet é a carteira persistida no Postgres. Saldos em centavos (int64),
// sempre >= 0; version protege escrita concorrente (lock otimista).
type Wallet struct {
	ID                     string
	UserID                 string
	PaidCents              int64
	BonusCents             int64
	LifetimeDepositedCents int64
	LifetimeWonCents       int64
	LifetimeLostCents      int64
	LifetimeRakeCents      int64
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TotalCents é o saldo combinado (pago + bônus)
func (w Wallet) TotalCents() int64 { return w.PaidCents + w.BonusCents }

// Transaction é o registro imutável de uma mutação do ledger.
// AmountCents é assinado (crédito > 0, débito < 0) e sempre igual a
// PaidCents + BonusCents da própria transação.
type Transaction struct {
	ID                 string
	WalletID           string
	UserID             string
	Type               TxType
	AmountCents        int64
	PaidCents          int64
	BonusCents         int64
	BalanceBeforeCents int64
	BalanceAfterCents  int64
	MatchID            *string
	IdempotencyKey     *string
	Metadata           map[string]string
	CreatedAt          time.Time
}

// CreditParams são os parâmetros de um crédito no ledger.
type CreditParams struct {
	UserID         string
	AmountCents    int64
	Type           TxType
	IdempotencyKey string // vazio = sem idempotência (apenas tipos não sensíveis)
	MatchID        string
	UseBonus       bool
	Metadata       map[string]string
}

// DebitParams são os parâmetros de um débito no ledger.
type DebitParams struct {
	UserID         string
	AmountCents    int64
	Type           TxType
	IdempotencyKey string
	MatchID        string
	PreferBonus    bool // true drena bônus primeiro, resto sai do saldo pago
	Metadata       map[string]string
}
