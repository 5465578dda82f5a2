package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/pvp-settlement-platform/internal/ledger/dto"
	"github.com/radieske/pvp-settlement-platform/internal/ledger/repo"
)

type fakeRepo struct {
	wallet     *repo.Wallet
	tx         *repo.Transaction
	err        error
	lastCredit repo.CreditParams
	lastDebit  repo.DebitParams
}

func (f *fakeRepo) GetOrCreateWallet(ctx context.Context, userID string) (*repo.Wallet, error) {
	return f.wallet, f.err
}

func (f *fakeRepo) Credit(ctx context.Context, in repo.CreditParams) (*repo.Transaction, error) {
	f.lastCredit = in
	return f.tx, f.err
}

func (f *fakeRepo) Debit(ctx context.Context, in repo.DebitParams) (*repo.Transaction, error) {
	f.lastDebit = in
	return f.tx, f.err
}

func (f *fakeRepo) Refund(ctx context.Context, originalTxID, idemKey string) (*repo.Transaction, error) {
	return f.tx, f.err
}

func (f *fakeRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*repo.Transaction, error) {
	if f.tx == nil {
		return nil, f.err
	}
	return []*repo.Transaction{f.tx}, f.err
}

func newTestServer(f *fakeRepo) http.Handler {
	return NewServer(zap.NewNop(), f).Router()
}

func sampleTx() *repo.Transaction {
	matchID := "m1"
	key := "settlement:m1:payout:u1"
	return &repo.Transaction{
		ID:                 "tx-1",
		WalletID:           "w1",
		UserID:             "u1",
		Type:               repo.TxMatchWin,
		AmountCents:        9500,
		PaidCents:          9500,
		BalanceBeforeCents: 500,
		BalanceAfterCents:  10000,
		MatchID:            &matchID,
		IdempotencyKey:     &key,
	}
}

func TestGetWallet(t *testing.T) {
	f := &fakeRepo{wallet: &repo.Wallet{ID: "w1", UserID: "u1", PaidCents: 800, BonusCents: 200, Version: 4}}
	srv := newTestServer(f)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet?userId=u1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, int64(1000), out.TotalCents)
	require.Equal(t, int64(4), out.Version)
}

func TestGetWalletRequiresUserID(t *testing.T) {
	srv := newTestServer(&fakeRepo{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreditPassesIdempotencyKey(t *testing.T) {
	f := &fakeRepo{tx: sampleTx()}
	srv := newTestServer(f)

	body, _ := json.Marshal(dto.CreditRequest{
		UserID:         "u1",
		AmountCents:    9500,
		Type:           "MATCH_WIN",
		IdempotencyKey: "settlement:m1:payout:u1",
		MatchID:        "m1",
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallet/credit", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "settlement:m1:payout:u1", f.lastCredit.IdempotencyKey)
	require.Equal(t, repo.TxMatchWin, f.lastCredit.Type)

	var out dto.TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "tx-1", out.ID)
	require.Equal(t, "m1", out.MatchID)
}

func TestCreditRejectsInvalidPayload(t *testing.T) {
	srv := newTestServer(&fakeRepo{})
	body, _ := json.Marshal(dto.CreditRequest{UserID: "u1", AmountCents: 0, Type: "DEPOSIT"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallet/credit", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorTaxonomyMapsToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{repo.ErrValidation, http.StatusBadRequest},
		{repo.ErrNotFound, http.StatusNotFound},
		{repo.ErrVersionConflict, http.StatusConflict},
		{repo.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{repo.ErrIntegrity, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := &fakeRepo{err: tc.err}
		srv := newTestServer(f)
		body, _ := json.Marshal(dto.DebitRequest{UserID: "u1", AmountCents: 100, Type: "MATCH_ENTRY", IdempotencyKey: "k", MatchID: "m1"})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallet/debit", bytes.NewReader(body)))
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestRefundRequiresBothFields(t *testing.T) {
	srv := newTestServer(&fakeRepo{tx: sampleTx()})
	body, _ := json.Marshal(dto.RefundRequest{OriginalTransactionID: "tx-1"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wallet/refund", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTransactions(t *testing.T) {
	srv := newTestServer(&fakeRepo{tx: sampleTx()})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/transactions?userId=u1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []dto.TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, int64(9500), out[0].AmountCents)
}
