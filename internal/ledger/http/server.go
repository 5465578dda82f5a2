package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/pvp-settlement-platform/internal/ledger/dto"
	"github.com/radieske/pvp-settlement-platform/internal/ledger/repo"
)

// Repo define as operações de ledger usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (*repo.Wallet, error)
	Credit(ctx context.Context, in repo.CreditParams) (*repo.Transaction, error)
	Debit(ctx context.Context, in repo.DebitParams) (*repo.Transaction, error)
	Refund(ctx context.Context, originalTxID, idemKey string) (*repo.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*repo.Transaction, error)
}

// Server expõe endpoints HTTP para operações do ledger
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP do ledger
func NewServer(log *zap.Logger, r Repo) *Server { return &Server{log: log, repo: r} }

// Router retorna o mux HTTP com as rotas da API do ledger
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet", s.getWallet)                   // GET ?userId=...
	mux.HandleFunc("/wallet/deposit", s.deposit)             // POST
	mux.HandleFunc("/wallet/credit", s.credit)               // POST
	mux.HandleFunc("/wallet/debit", s.debit)                 // POST
	mux.HandleFunc("/wallet/refund", s.refund)               // POST
	mux.HandleFunc("/wallet/transactions", s.listTransactions) // GET ?userId=...
	return mux
}

// getWallet retorna (ou cria) a carteira do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	wal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.WalletResponse{
		UserID:     wal.UserID,
		WalletID:   wal.ID,
		PaidCents:  wal.PaidCents,
		BonusCents: wal.BonusCents,
		TotalCents: wal.TotalCents(),
		Version:    wal.Version,
	})
}

// deposit é o atalho de crédito tipo DEPOSIT no saldo pago
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	t, err := s.repo.Credit(r.Context(), repo.CreditParams{
		UserID:      req.UserID,
		AmountCents: req.AmountCents,
		Type:        repo.TxDeposit,
		Metadata:    map[string]string{"external_ref": req.ExternalRef},
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, txResponse(t))
}

// credit executa um crédito genérico no ledger
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 || req.Type == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	t, err := s.repo.Credit(r.Context(), repo.CreditParams{
		UserID:         req.UserID,
		AmountCents:    req.AmountCents,
		Type:           repo.TxType(req.Type),
		IdempotencyKey: req.IdempotencyKey,
		MatchID:        req.MatchID,
		UseBonus:       req.UseBonus,
		Metadata:       req.Metadata,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, txResponse(t))
}

// debit executa um débito genérico no ledger
func (s *Server) debit(w http.ResponseWriter, r *http.Request) {
	var req dto.DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 || req.Type == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	t, err := s.repo.Debit(r.Context(), repo.DebitParams{
		UserID:         req.UserID,
		AmountCents:    req.AmountCents,
		Type:           repo.TxType(req.Type),
		IdempotencyKey: req.IdempotencyKey,
		MatchID:        req.MatchID,
		PreferBonus:    req.PreferBonus,
		Metadata:       req.Metadata,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, txResponse(t))
}

// refund devolve um débito com o split exato pago/bônus original
func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.OriginalTransactionID == "" || req.IdempotencyKey == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	t, err := s.repo.Refund(r.Context(), req.OriginalTransactionID, req.IdempotencyKey)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, txResponse(t))
}

// listTransactions retorna o extrato recente do usuário
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	txs, err := s.repo.ListTransactions(r.Context(), userID, 50)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, txResponse(t))
	}
	writeJSON(w, out)
}

// fail mapeia a taxonomia de erros do ledger para status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repo.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.log.Error("ledger op failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func txResponse(t *repo.Transaction) dto.TransactionResponse {
	out := dto.TransactionResponse{
		ID:                 t.ID,
		UserID:             t.UserID,
		Type:               string(t.Type),
		AmountCents:        t.AmountCents,
		PaidCents:          t.PaidCents,
		BonusCents:         t.BonusCents,
		BalanceBeforeCents: t.BalanceBeforeCents,
		BalanceAfterCents:  t.BalanceAfterCents,
		Metadata:           t.Metadata,
		CreatedAt:          t.CreatedAt,
	}
	if t.MatchID != nil {
		out.MatchID = *t.MatchID
	}
	if t.IdempotencyKey != nil {
		out.IdempotencyKey = *t.IdempotencyKey
	}
	return out
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
