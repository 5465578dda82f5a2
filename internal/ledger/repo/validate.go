package repo

import (
	"errors"
	"fmt"
)

// Taxonomia de erros do ledger. Validação e not-found rejeitam antes de tocar
// estado; conflito de versão é sempre seguro de repetir do zero; integridade
// nunca é clampada silenciosamente.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrIntegrity         = errors.New("integrity error")
)

// Limites de sanidade por transação e por carteira (centavos).
const (
	MaxTransactionCents int64 = 100_000_000    // 1M de unidades
	MaxWalletCents      int64 = 10_000_000_000 // 100M de unidades
)

// matchScoped indica tipos que exigem matchId.
func matchScoped(t TxType) bool {
	switch t {
	case TxMatchEntry, TxMatchWin, TxMatchRefund, TxRakeFee:
		return true
	}
	return false
}

// financiallySensitive indica tipos que exigem chave de idempotência
// (operações que um retry pode reexecutar).
func financiallySensitive(t TxType) bool {
	switch t {
	case TxMatchEntry, TxMatchWin, TxMatchRefund, TxWithdrawal:
		return true
	}
	return false
}

func knownType(t TxType) bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxMatchEntry, TxMatchWin, TxMatchRefund, TxRakeFee, TxBonus:
		return true
	}
	return false
}

// validateOp valida os campos comuns de crédito/débito antes de qualquer mutação.
// Estados ilegais (ex.: DEPOSIT com matchId) são barrados aqui.
func validateOp(amount int64, t TxType, idemKey, matchID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount > MaxTransactionCents {
		return fmt.Errorf("%w: amount exceeds per-transaction cap", ErrValidation)
	}
	if !knownType(t) {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t)
	}
	if matchScoped(t) && matchID == "" {
		return fmt.Errorf("%w: matchId required for type %q", ErrValidation, t)
	}
	if !matchScoped(t) && matchID != "" {
		return fmt.Errorf("%w: matchId not allowed for type %q", ErrValidation, t)
	}
	if financiallySensitive(t) && idemKey == "" {
		return fmt.Errorf("%w: idempotency key required for type %q", ErrValidation, t)
	}
	return nil
}

// splitDebit resolve quanto sai de cada saldo em um débito.
// preferBonus drena o bônus primeiro e o restante sai do saldo pago;
// caso contrário o inverso. Nunca produz saldo negativo.
func splitDebit(paid, bonus, amount int64, preferBonus bool) (fromPaid, fromBonus int64, err error) {
	if paid < 0 || bonus < 0 {
		return 0, 0, fmt.Errorf("%w: negative balance on wallet", ErrIntegrity)
	}
	if paid+bonus < amount {
		return 0, 0, ErrInsufficientFunds
	}
	if preferBonus {
		fromBonus = min64(bonus, amount)
		fromPaid = amount - fromBonus
	} else {
		fromPaid = min64(paid, amount)
		fromBonus = amount - fromPaid
	}
	return fromPaid, fromBonus, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
