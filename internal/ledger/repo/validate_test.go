package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateOpAmountBounds(t *testing.T) {
	require.ErrorIs(t, validateOp(0, TxDeposit, "", ""), ErrValidation)
	require.ErrorIs(t, validateOp(-100, TxDeposit, "", ""), ErrValidation)
	require.ErrorIs(t, validateOp(MaxTransactionCents+1, TxDeposit, "", ""), ErrValidation)
	require.NoError(t, validateOp(MaxTransactionCents, TxDeposit, "", ""))
}

func TestValidateOpUnknownType(t *testing.T) {
	require.ErrorIs(t, validateOp(100, TxType("LOYALTY_POINTS"), "", ""), ErrValidation)
}

func TestValidateOpMatchScope(t *testing.T) {
	// tipos de partida exigem matchId
	require.ErrorIs(t, validateOp(100, TxMatchEntry, "k", ""), ErrValidation)
	require.NoError(t, validateOp(100, TxMatchEntry, "k", "m1"))

	// depósito com matchId é estado ilegal
	require.ErrorIs(t, validateOp(100, TxDeposit, "", "m1"), ErrValidation)
	require.NoError(t, validateOp(100, TxDeposit, "", ""))
}

func TestValidateOpIdempotencyKeyRequired(t *testing.T) {
	for _, tt := range []TxType{TxMatchEntry, TxMatchWin, TxMatchRefund} {
		require.ErrorIs(t, validateOp(100, tt, "", "m1"), ErrValidation, string(tt))
	}
	require.ErrorIs(t, validateOp(100, TxWithdrawal, "", ""), ErrValidation)

	// rake é match-scoped mas não exige chave
	require.NoError(t, validateOp(100, TxRakeFee, "", "m1"))
}

func TestSplitDebitPrefersPaidByDefault(t *testing.T) {
	fromPaid, fromBonus, err := splitDebit(800, 500, 600, false)
	require.NoError(t, err)
	require.Equal(t, int64(600), fromPaid)
	require.Equal(t, int64(0), fromBonus)
}

func TestSplitDebitSpillsIntoBonus(t *testing.T) {
	fromPaid, fromBonus, err := splitDebit(400, 500, 600, false)
	require.NoError(t, err)
	require.Equal(t, int64(400), fromPaid)
	require.Equal(t, int64(200), fromBonus)
}

func TestSplitDebitPreferBonusDrainsBonusFirst(t *testing.T) {
	fromPaid, fromBonus, err := splitDebit(800, 500, 600, true)
	require.NoError(t, err)
	require.Equal(t, int64(100), fromPaid)
	require.Equal(t, int64(500), fromBonus)
}

func TestSplitDebitInsufficientFunds(t *testing.T) {
	_, _, err := splitDebit(100, 100, 201, false)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// exatamente o saldo total passa
	fromPaid, fromBonus, err := splitDebit(100, 100, 200, false)
	require.NoError(t, err)
	require.Equal(t, int64(200), fromPaid+fromBonus)
}

func TestSplitDebitRejectsNegativeBalance(t *testing.T) {
	_, _, err := splitDebit(-1, 100, 50, false)
	require.ErrorIs(t, err, ErrIntegrity)
}
