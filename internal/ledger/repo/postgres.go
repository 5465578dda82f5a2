package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres implementa o ledger financeiro em banco.
// Toda mutação roda em transação; escrita de carteira usa lock otimista
// (UPDATE condicionado à version lida) e o registro no ledger é append-only.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const walletCols = `id, user_id, paid_cents, bonus_cents,
	lifetime_deposited_cents, lifetime_won_cents, lifetime_lost_cents, lifetime_rake_cents,
	version, created_at, updated_at`

const txCols = `id, wallet_id, user_id, tx_type, amount_cents, paid_cents, bonus_cents,
	balance_before_cents, balance_after_cents, match_id, idempotency_key, metadata, created_at`

// GetOrCreateWallet retorna a carteira do usuário, criando-a zerada se não existir.
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (*Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := scanWallet(tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE user_id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		id := uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, paid_cents, bonus_cents,
				lifetime_deposited_cents, lifetime_won_cents, lifetime_lost_cents, lifetime_rake_cents,
				version, created_at, updated_at)
			 VALUES($1,$2,0,0,0,0,0,0,1,NOW(),NOW())`, id, userID); err != nil {
			return nil, err
		}
		w, err = scanWallet(tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE id=$1`, id))
	}
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

// GetTransaction carrega uma transação pelo id.
func (p *Postgres) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTx(p.db.QueryRowContext(ctx, `SELECT `+txCols+` FROM wallet_transactions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return t, err
}

// ListTransactions retorna as transações mais recentes de um usuário.
func (p *Postgres) ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txCols+` FROM wallet_transactions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Credit adiciona saldo (pago ou bônus) e registra a transação.
// Se a chave de idempotência já existir, devolve a transação original sem
// mutar saldo nenhum — esse lookup é a fronteira de idempotência do sistema.
func (p *Postgres) Credit(ctx context.Context, in CreditParams) (*Transaction, error) {
	if err := validateOp(in.AmountCents, in.Type, in.IdempotencyKey, in.MatchID); err != nil {
		return nil, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if in.IdempotencyKey != "" {
		existing, err := findByIdemKey(ctx, tx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	w, err := walletByUser(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}

	newPaid, newBonus := w.PaidCents, w.BonusCents
	var toPaid, toBonus int64
	if in.UseBonus {
		newBonus += in.AmountCents
		toBonus = in.AmountCents
	} else {
		newPaid += in.AmountCents
		toPaid = in.AmountCents
	}
	if newPaid+newBonus > MaxWalletCents {
		return nil, fmt.Errorf("%w: wallet cap exceeded", ErrValidation)
	}

	deposited, won, lost, rake := w.LifetimeDepositedCents, w.LifetimeWonCents, w.LifetimeLostCents, w.LifetimeRakeCents
	switch in.Type {
	case TxDeposit:
		deposited += in.AmountCents
	case TxMatchWin:
		won += in.AmountCents
	case TxMatchRefund:
		// estorna a entrada contabilizada como perda
		lost -= in.AmountCents
		if lost < 0 {
			lost = 0
		}
	}

	if err := updateWalletGuarded(ctx, tx, w, newPaid, newBonus, deposited, won, lost, rake); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:                 uuid.NewString(),
		WalletID:           w.ID,
		UserID:             in.UserID,
		Type:               in.Type,
		AmountCents:        in.AmountCents,
		PaidCents:          toPaid,
		BonusCents:         toBonus,
		BalanceBeforeCents: w.TotalCents(),
		BalanceAfterCents:  newPaid + newBonus,
		Metadata:           in.Metadata,
	}
	setOptional(t, in.MatchID, in.IdempotencyKey)

	if err := p.insertTx(ctx, tx, t); err != nil {
		return p.recoverIdempotent(ctx, in.IdempotencyKey, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Debit remove saldo respeitando a ordem de dedução configurada.
// Exige saldo combinado suficiente; a transação registra o split exato
// pago/bônus efetivamente debitado.
func (p *Postgres) Debit(ctx context.Context, in DebitParams) (*Transaction, error) {
	if err := validateOp(in.AmountCents, in.Type, in.IdempotencyKey, in.MatchID); err != nil {
		return nil, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if in.IdempotencyKey != "" {
		existing, err := findByIdemKey(ctx, tx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	w, err := walletByUser(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}

	fromPaid, fromBonus, err := splitDebit(w.PaidCents, w.BonusCents, in.AmountCents, in.PreferBonus)
	if err != nil {
		return nil, err
	}
	newPaid := w.PaidCents - fromPaid
	newBonus := w.BonusCents - fromBonus

	deposited, won, lost, rake := w.LifetimeDepositedCents, w.LifetimeWonCents, w.LifetimeLostCents, w.LifetimeRakeCents
	switch in.Type {
	case TxMatchEntry:
		lost += in.AmountCents
	case TxRakeFee:
		rake += in.AmountCents
	}

	if err := updateWalletGuarded(ctx, tx, w, newPaid, newBonus, deposited, won, lost, rake); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:                 uuid.NewString(),
		WalletID:           w.ID,
		UserID:             in.UserID,
		Type:               in.Type,
		AmountCents:        -in.AmountCents,
		PaidCents:          -fromPaid,
		BonusCents:         -fromBonus,
		BalanceBeforeCents: w.TotalCents(),
		BalanceAfterCents:  newPaid + newBonus,
		Metadata:           in.Metadata,
	}
	setOptional(t, in.MatchID, in.IdempotencyKey)

	if err := p.insertTx(ctx, tx, t); err != nil {
		return p.recoverIdempotent(ctx, in.IdempotencyKey, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Refund devolve um débito creditando de volta o split exato pago/bônus
// registrado na transação original. Nunca recombina o total: um depósito
// marcado indevidamente como bônus não pode vazar para o saldo sacável.
func (p *Postgres) Refund(ctx context.Context, originalTxID, idemKey string) (*Transaction, error) {
	if originalTxID == "" || idemKey == "" {
		return nil, fmt.Errorf("%w: originalTransactionId and idempotencyKey required", ErrValidation)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := findByIdemKey(ctx, tx, idemKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	orig, err := scanTx(tx.QueryRowContext(ctx, `SELECT `+txCols+` FROM wallet_transactions WHERE id=$1`, originalTxID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, originalTxID)
	}
	if err != nil {
		return nil, err
	}

	if orig.AmountCents >= 0 {
		return nil, fmt.Errorf("%w: cannot refund a credit", ErrValidation)
	}
	if orig.Metadata["refunded_by"] != "" {
		return nil, fmt.Errorf("%w: transaction already refunded", ErrValidation)
	}

	w, err := scanWallet(tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE id=$1`, orig.WalletID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, orig.WalletID)
	}
	if err != nil {
		return nil, err
	}

	backPaid := -orig.PaidCents
	backBonus := -orig.BonusCents
	newPaid := w.PaidCents + backPaid
	newBonus := w.BonusCents + backBonus
	if newPaid+newBonus > MaxWalletCents {
		return nil, fmt.Errorf("%w: wallet cap exceeded", ErrValidation)
	}

	deposited, won, lost, rake := w.LifetimeDepositedCents, w.LifetimeWonCents, w.LifetimeLostCents, w.LifetimeRakeCents
	if orig.Type == TxMatchEntry {
		lost -= backPaid + backBonus
		if lost < 0 {
			lost = 0
		}
	}

	if err := updateWalletGuarded(ctx, tx, w, newPaid, newBonus, deposited, won, lost, rake); err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:                 uuid.NewString(),
		WalletID:           w.ID,
		UserID:             orig.UserID,
		Type:               TxMatchRefund,
		AmountCents:        backPaid + backBonus,
		PaidCents:          backPaid,
		BonusCents:         backBonus,
		BalanceBeforeCents: w.TotalCents(),
		BalanceAfterCents:  newPaid + newBonus,
		MatchID:            orig.MatchID,
		Metadata:           map[string]string{"refund_of": orig.ID},
	}
	t.IdempotencyKey = &idemKey

	if err := p.insertTx(ctx, tx, t); err != nil {
		return p.recoverIdempotent(ctx, idemKey, err)
	}

	// Back-reference na original impede reembolso duplo mesmo com chave nova
	if _, err = tx.ExecContext(ctx,
		`UPDATE wallet_transactions
		 SET metadata = COALESCE(metadata,'{}'::jsonb) || jsonb_build_object('refunded_by', $1::text)
		 WHERE id=$2`, t.ID, orig.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// --- helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanWallet(r rowScanner) (*Wallet, error) {
	var w Wallet
	err := r.Scan(&w.ID, &w.UserID, &w.PaidCents, &w.BonusCents,
		&w.LifetimeDepositedCents, &w.LifetimeWonCents, &w.LifetimeLostCents, &w.LifetimeRakeCents,
		&w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTx(r rowScanner) (*Transaction, error) {
	var t Transaction
	var matchID, idemKey sql.NullString
	var meta []byte
	err := r.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Type, &t.AmountCents, &t.PaidCents, &t.BonusCents,
		&t.BalanceBeforeCents, &t.BalanceAfterCents, &matchID, &idemKey, &meta, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if matchID.Valid {
		t.MatchID = &matchID.String
	}
	if idemKey.Valid {
		t.IdempotencyKey = &idemKey.String
	}
	t.Metadata = map[string]string{}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &t.Metadata)
	}
	return &t, nil
}

func walletByUser(ctx context.Context, tx *sql.Tx, userID string) (*Wallet, error) {
	w, err := scanWallet(tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE user_id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet for user %s", ErrNotFound, userID)
	}
	return w, err
}

func findByIdemKey(ctx context.Context, tx *sql.Tx, key string) (*Transaction, error) {
	t, err := scanTx(tx.QueryRowContext(ctx, `SELECT `+txCols+` FROM wallet_transactions WHERE idempotency_key=$1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// updateWalletGuarded grava os novos saldos condicionados à version lida.
// Zero linhas afetadas = escrita concorrente venceu; o chamador refaz do zero.
func updateWalletGuarded(ctx context.Context, tx *sql.Tx, w *Wallet, paid, bonus, deposited, won, lost, rake int64) error {
	if paid < 0 || bonus < 0 {
		return fmt.Errorf("%w: negative balance result", ErrIntegrity)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET paid_cents=$1, bonus_cents=$2,
			lifetime_deposited_cents=$3, lifetime_won_cents=$4,
			lifetime_lost_cents=$5, lifetime_rake_cents=$6,
			version=version+1, updated_at=NOW()
		WHERE id=$7 AND version=$8`,
		paid, bonus, deposited, won, lost, rake, w.ID, w.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: wallet %s", ErrVersionConflict, w.ID)
	}
	return nil
}

func (p *Postgres) insertTx(ctx context.Context, tx *sql.Tx, t *Transaction) error {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return err
	}
	var matchID, idemKey any
	if t.MatchID != nil {
		matchID = *t.MatchID
	}
	if t.IdempotencyKey != nil {
		idemKey = *t.IdempotencyKey
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions(id, wallet_id, user_id, tx_type, amount_cents, paid_cents, bonus_cents,
			balance_before_cents, balance_after_cents, match_id, idempotency_key, metadata, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())`,
		t.ID, t.WalletID, t.UserID, t.Type, t.AmountCents, t.PaidCents, t.BonusCents,
		t.BalanceBeforeCents, t.BalanceAfterCents, matchID, idemKey, meta)
	return err
}

// recoverIdempotent trata corrida de insert: se a unique da chave de
// idempotência estourou, outra tentativa inseriu primeiro — devolve a dela.
// "insert if absent, else return existing" sem janela de check-then-act.
func (p *Postgres) recoverIdempotent(ctx context.Context, idemKey string, insertErr error) (*Transaction, error) {
	if idemKey == "" || !isUniqueViolation(insertErr) {
		return nil, insertErr
	}
	t, err := scanTx(p.db.QueryRowContext(ctx, `SELECT `+txCols+` FROM wallet_transactions WHERE idempotency_key=$1`, idemKey))
	if err != nil {
		return nil, insertErr
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func setOptional(t *Transaction, matchID, idemKey string) {
	if matchID != "" {
		t.MatchID = &matchID
	}
	if idemKey != "" {
		t.IdempotencyKey = &idemKey
	}
}
