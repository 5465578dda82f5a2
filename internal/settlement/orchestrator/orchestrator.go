package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	ldto "github.com/radieske/pvp-settlement-platform/internal/ledger/dto"
	lrepo "github.com/radieske/pvp-settlement-platform/internal/ledger/repo"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/idem"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
)

// ErrNotEligible indica partida fora das condições de liquidação automática.
var ErrNotEligible = errors.New("match not eligible for settlement")

// Store define a persistência usada pela liquidação.
type Store interface {
	GetMatch(ctx context.Context, id string) (*repo.Match, error)
	GetSlips(ctx context.Context, matchID string) ([]*repo.Slip, error)
	GetEventOutcomes(ctx context.Context, eventIDs []string) (map[string]engine.EventOutcome, error)
	SettleMatch(ctx context.Context, up repo.SettleUpdate) error
	AttachTransactionIDs(ctx context.Context, matchID string, settlementTxID string, refundTxIDs []string) error
}

// Ledger define a superfície financeira consumida pela liquidação.
// Só crédito: a liquidação nunca debita (as entradas já foram debitadas na
// criação da partida, fora deste fluxo).
type Ledger interface {
	Credit(ctx context.Context, in ldto.CreditRequest) (*ldto.TransactionResponse, error)
}

// Result é o resultado (externo) de uma liquidação.
type Result struct {
	MatchID        string    `json:"matchId"`
	Status         string    `json:"status"`
	WinnerID       string    `json:"winnerId,omitempty"`
	IsDraw         bool      `json:"isDraw"`
	CreatorPoints  int64     `json:"creatorPoints"`
	OpponentPoints int64     `json:"opponentPoints"`
	TotalPotCents  int64     `json:"totalPotCents"`
	RakeCents      int64     `json:"rakeCents"`
	PayoutCents    int64     `json:"payoutCents"`
	SettlementTxID string    `json:"settlementTxId,omitempty"`
	RefundTxIDs    []string  `json:"refundTxIds,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	SettledAt      time.Time `json:"settledAt"`
}

// Readiness é a resposta da consulta de prontidão.
type Readiness struct {
	IsReady       bool   `json:"isReady"`
	Reason        string `json:"reason"`
	PendingEvents int    `json:"pendingEvents"`
	TotalEvents   int    `json:"totalEvents"`
}

// Orchestrator coordena avaliação -> score -> arbitragem, persiste o desfecho
// em uma transação e aciona o ledger fora dela.
type Orchestrator struct {
	log    *zap.Logger
	store  Store
	ledger Ledger
}

func New(log *zap.Logger, store Store, ledger Ledger) *Orchestrator {
	return &Orchestrator{log: log, store: store, ledger: ledger}
}

// Settle liquida uma partida. Pode ser chamado repetidamente: para partida já
// terminal devolve o desfecho persistido (releitura de verificação); uma nova
// tentativa após falha reexecuta tudo com as mesmas chaves de idempotência.
func (o *Orchestrator) Settle(ctx context.Context, matchID string) (*Result, error) {
	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != repo.MatchActive {
		// Releitura de verificação; completa efeito financeiro pendente se a
		// tentativa anterior caiu entre o commit do status e o ledger
		return o.ensureFinancials(ctx, m)
	}
	if m.OpponentID == nil {
		return nil, fmt.Errorf("%w: match has no opponent", ErrNotEligible)
	}

	creatorSlip, opponentSlip, err := o.loadSlips(ctx, m)
	if err != nil {
		return nil, err
	}

	outcomes, cls, err := o.classify(ctx, creatorSlip, opponentSlip)
	if err != nil {
		return nil, err
	}
	if cls.Decision != engine.DecideSettle {
		return nil, fmt.Errorf("%w: events not final (%s)", ErrNotEligible, cls.Decision)
	}

	creatorScore, creatorPicks, err := evaluateSlip(creatorSlip, outcomes)
	if err != nil {
		return nil, err
	}
	opponentScore, opponentPicks, err := evaluateSlip(opponentSlip, outcomes)
	if err != nil {
		return nil, err
	}

	arb := engine.Arbitrate(m.CreatorID, creatorScore, *m.OpponentID, opponentScore)

	pot, rake, payout := engine.ComputePayout(m.StakeCents, m.RakePercent)
	status := repo.MatchSettled
	if arb.IsDraw {
		status = repo.MatchDraw
		rake, payout = 0, 0
	}

	up := repo.SettleUpdate{
		MatchID:         m.ID,
		ExpectedVersion: m.Version,
		Status:          status,
		CreatorPoints:   creatorScore.PointsEarned,
		OpponentPoints:  opponentScore.PointsEarned,
		PotCents:        pot,
		RakeCents:       rake,
		PayoutCents:     payout,
		Method:          "auto",
		Reason:          arb.Reason,
		Slips: []repo.SlipUpdate{
			slipUpdate(creatorSlip.ID, creatorScore),
			slipUpdate(opponentSlip.ID, opponentScore),
		},
		Picks: append(creatorPicks, opponentPicks...),
		Stats: statUpdates(m, arb, creatorScore, opponentScore),
		Audit: repo.AuditEntry{
			MatchID:   m.ID,
			Action:    "settle",
			Actor:     "system",
			ActorRole: "system",
			Reason:    arb.Reason,
			BeforeState: map[string]any{
				"status": m.Status, "version": m.Version,
			},
			AfterState: map[string]any{
				"status": status, "winnerId": arb.WinnerID, "isDraw": arb.IsDraw,
				"potCents": pot, "rakeCents": rake, "payoutCents": payout,
			},
		},
	}
	if !arb.IsDraw {
		up.WinnerID = &arb.WinnerID
	}

	// Transação de persistência: conflito de versão aborta sem estado parcial
	if err := o.store.SettleMatch(ctx, up); err != nil {
		return nil, err
	}

	// Fora da transação: efeitos financeiros, idempotentes por usuário
	settlementTxID, refundTxIDs, err := o.applyFinancials(ctx, m, arb, payout)
	if err != nil {
		o.log.Error("ledger call failed after settlement commit",
			zap.String("matchId", m.ID), zap.Error(err))
		return nil, err
	}

	if err := o.store.AttachTransactionIDs(ctx, m.ID, settlementTxID, refundTxIDs); err != nil {
		return nil, err
	}

	res := &Result{
		MatchID:        m.ID,
		Status:         string(status),
		WinnerID:       arb.WinnerID,
		IsDraw:         arb.IsDraw,
		CreatorPoints:  creatorScore.PointsEarned,
		OpponentPoints: opponentScore.PointsEarned,
		TotalPotCents:  pot,
		RakeCents:      rake,
		PayoutCents:    payout,
		SettlementTxID: settlementTxID,
		RefundTxIDs:    refundTxIDs,
		Reason:         arb.Reason,
		SettledAt:      time.Now().UTC(),
	}
	o.log.Info("match settled",
		zap.String("matchId", m.ID),
		zap.String("status", res.Status),
		zap.String("winnerId", res.WinnerID),
		zap.Int64("payoutCents", res.PayoutCents))
	return res, nil
}

// CheckReadiness classifica os eventos da partida sem efeito colateral.
func (o *Orchestrator) CheckReadiness(ctx context.Context, matchID string) (*Readiness, error) {
	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != repo.MatchActive {
		return &Readiness{IsReady: false, Reason: "match already " + string(m.Status)}, nil
	}
	if m.OpponentID == nil {
		return &Readiness{IsReady: false, Reason: "match has no opponent"}, nil
	}

	creatorSlip, opponentSlip, err := o.loadSlips(ctx, m)
	if err != nil {
		return nil, err
	}
	_, cls, err := o.classify(ctx, creatorSlip, opponentSlip)
	if err != nil {
		return nil, err
	}

	r := &Readiness{
		IsReady:       cls.Decision == engine.DecideSettle,
		PendingEvents: cls.Postponed + cls.InProgress + cls.Unknown,
		TotalEvents:   cls.Total,
	}
	switch cls.Decision {
	case engine.DecideSettle:
		r.Reason = "all events finalized"
	case engine.DecideVoid:
		r.Reason = "all events cancelled"
	default:
		r.Reason = "events pending"
	}
	return r, nil
}

func (o *Orchestrator) loadSlips(ctx context.Context, m *repo.Match) (creator, opponent *repo.Slip, err error) {
	slips, err := o.store.GetSlips(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range slips {
		switch s.UserID {
		case m.CreatorID:
			creator = s
		case *m.OpponentID:
			opponent = s
		}
	}
	if creator == nil || opponent == nil {
		return nil, nil, fmt.Errorf("%w: both slips required", ErrNotEligible)
	}
	return creator, opponent, nil
}

func (o *Orchestrator) classify(ctx context.Context, creator, opponent *repo.Slip) (map[string]engine.EventOutcome, engine.EventClassification, error) {
	eventIDs := collectEventIDs(creator, opponent)
	outcomes, err := o.store.GetEventOutcomes(ctx, eventIDs)
	if err != nil {
		return nil, engine.EventClassification{}, err
	}
	return outcomes, engine.ClassifyEvents(eventIDs, outcomes), nil
}

// applyFinancials executa os créditos no ledger com chaves determinísticas.
// Retry de uma liquidação reencontra a transação original pela chave.
func (o *Orchestrator) applyFinancials(ctx context.Context, m *repo.Match, arb engine.Arbitration, payout int64) (settlementTxID string, refundTxIDs []string, err error) {
	if arb.IsDraw {
		for _, userID := range []string{m.CreatorID, *m.OpponentID} {
			t, err := o.ledger.Credit(ctx, ldto.CreditRequest{
				UserID:         userID,
				AmountCents:    m.StakeCents,
				Type:           string(lrepo.TxMatchRefund),
				IdempotencyKey: idem.RefundKey(m.ID, userID),
				MatchID:        m.ID,
				Metadata:       map[string]string{"reason": arb.Reason},
			})
			if err != nil {
				return "", refundTxIDs, err
			}
			refundTxIDs = append(refundTxIDs, t.ID)
		}
		return "", refundTxIDs, nil
	}

	t, err := o.ledger.Credit(ctx, ldto.CreditRequest{
		UserID:         arb.WinnerID,
		AmountCents:    payout,
		Type:           string(lrepo.TxMatchWin),
		IdempotencyKey: idem.PayoutKey(m.ID, arb.WinnerID),
		MatchID:        m.ID,
		Metadata:       map[string]string{"reason": arb.Reason},
	})
	if err != nil {
		return "", nil, err
	}
	return t.ID, nil, nil
}

// ensureFinancials completa os créditos de uma partida já terminal cujos ids
// de transação nunca foram anexados: a tentativa anterior liquidou o status
// mas falhou no ledger. As chaves determinísticas tornam a repetição inócua
// para qualquer perna que já passou.
func (o *Orchestrator) ensureFinancials(ctx context.Context, m *repo.Match) (*Result, error) {
	res := resultFromMatch(m)

	switch m.Status {
	case repo.MatchSettled:
		if m.SettlementTxID != nil || m.WinnerID == nil {
			return res, nil
		}
		keyFn := idem.PayoutKey
		if m.SettleMethod == "manual" {
			keyFn = idem.ManualPayoutKey
		}
		t, err := o.ledger.Credit(ctx, ldto.CreditRequest{
			UserID:         *m.WinnerID,
			AmountCents:    m.PayoutCents,
			Type:           string(lrepo.TxMatchWin),
			IdempotencyKey: keyFn(m.ID, *m.WinnerID),
			MatchID:        m.ID,
			Metadata:       map[string]string{"reason": m.SettleReason},
		})
		if err != nil {
			return nil, err
		}
		if err := o.store.AttachTransactionIDs(ctx, m.ID, t.ID, m.RefundTxIDs); err != nil {
			return nil, err
		}
		res.SettlementTxID = t.ID

	case repo.MatchDraw, repo.MatchVoided:
		if len(m.RefundTxIDs) > 0 || m.OpponentID == nil {
			return res, nil
		}
		keyFn := idem.RefundKey
		if m.Status == repo.MatchVoided {
			keyFn = idem.VoidRefundKey
		}
		if m.SettleMethod == "manual" {
			keyFn = idem.ManualRefundKey
		}
		var refundTxIDs []string
		for _, userID := range []string{m.CreatorID, *m.OpponentID} {
			t, err := o.ledger.Credit(ctx, ldto.CreditRequest{
				UserID:         userID,
				AmountCents:    m.StakeCents,
				Type:           string(lrepo.TxMatchRefund),
				IdempotencyKey: keyFn(m.ID, userID),
				MatchID:        m.ID,
				Metadata:       map[string]string{"reason": m.SettleReason},
			})
			if err != nil {
				return nil, err
			}
			refundTxIDs = append(refundTxIDs, t.ID)
		}
		if err := o.store.AttachTransactionIDs(ctx, m.ID, "", refundTxIDs); err != nil {
			return nil, err
		}
		res.RefundTxIDs = refundTxIDs
	}

	return res, nil
}

func evaluateSlip(s *repo.Slip, outcomes map[string]engine.EventOutcome) (engine.SlipScore, []repo.PickUpdate, error) {
	outs := make([]engine.PickOutcome, 0, len(s.Picks))
	updates := make([]repo.PickUpdate, 0, len(s.Picks))
	for _, pk := range s.Picks {
		res := engine.EvaluatePick(pk.Engine(), outcomes[pk.EventID])
		outs = append(outs, engine.PickOutcome{Status: res.Status, PointValue: pk.PointValue})
		updates = append(updates, repo.PickUpdate{
			PickID:        pk.ID,
			Status:        res.Status,
			ResolvedValue: res.ResolvedValue,
			Reason:        res.Reason,
		})
	}
	score, err := engine.ScoreSlip(outs)
	if err != nil {
		return engine.SlipScore{}, nil, err
	}
	return score, updates, nil
}

func slipUpdate(slipID string, score engine.SlipScore) repo.SlipUpdate {
	return repo.SlipUpdate{
		SlipID:       slipID,
		Status:       score.Status,
		PointsEarned: score.PointsEarned,
		CorrectPicks: score.CorrectPicks,
		ValidPicks:   score.ValidPicks,
	}
}

func statUpdates(m *repo.Match, arb engine.Arbitration, creator, opponent engine.SlipScore) []repo.StatUpdate {
	if arb.IsDraw {
		return []repo.StatUpdate{
			{UserID: m.CreatorID, Outcome: "draw", Points: creator.PointsEarned},
			{UserID: *m.OpponentID, Outcome: "draw", Points: opponent.PointsEarned},
		}
	}
	winner, loser := m.CreatorID, *m.OpponentID
	winnerPoints, loserPoints := creator.PointsEarned, opponent.PointsEarned
	if arb.WinnerID == *m.OpponentID {
		winner, loser = loser, winner
		winnerPoints, loserPoints = loserPoints, winnerPoints
	}
	return []repo.StatUpdate{
		{UserID: winner, Outcome: "win", Points: winnerPoints},
		{UserID: loser, Outcome: "loss", Points: loserPoints},
	}
}

func collectEventIDs(slips ...*repo.Slip) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range slips {
		for _, pk := range s.Picks {
			if _, ok := seen[pk.EventID]; !ok {
				seen[pk.EventID] = struct{}{}
				out = append(out, pk.EventID)
			}
		}
	}
	return out
}

func resultFromMatch(m *repo.Match) *Result {
	res := &Result{
		MatchID:        m.ID,
		Status:         string(m.Status),
		IsDraw:         m.Status == repo.MatchDraw,
		CreatorPoints:  m.CreatorPoints,
		OpponentPoints: m.OpponentPoints,
		TotalPotCents:  m.PotCents,
		RakeCents:      m.RakeCents,
		PayoutCents:    m.PayoutCents,
		RefundTxIDs:    m.RefundTxIDs,
		Reason:         m.SettleReason,
	}
	if m.WinnerID != nil {
		res.WinnerID = *m.WinnerID
	}
	if m.SettlementTxID != nil {
		res.SettlementTxID = *m.SettlementTxID
	}
	if m.SettledAt != nil {
		res.SettledAt = *m.SettledAt
	}
	return res
}
