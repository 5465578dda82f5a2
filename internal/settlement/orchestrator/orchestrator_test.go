package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ldto "github.com/radieske/pvp-settlement-platform/internal/ledger/dto"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
)

type attachCall struct {
	matchID        string
	settlementTxID string
	refundTxIDs    []string
}

type mockStore struct {
	match     *repo.Match
	slips     []*repo.Slip
	outcomes  map[string]engine.EventOutcome
	settleErr error

	settled  []repo.SettleUpdate
	attached []attachCall
}

func (s *mockStore) GetMatch(ctx context.Context, id string) (*repo.Match, error) {
	if s.match == nil || s.match.ID != id {
		return nil, repo.ErrNotFound
	}
	cp := *s.match
	return &cp, nil
}

func (s *mockStore) GetSlips(ctx context.Context, matchID string) ([]*repo.Slip, error) {
	return s.slips, nil
}

func (s *mockStore) GetEventOutcomes(ctx context.Context, eventIDs []string) (map[string]engine.EventOutcome, error) {
	out := map[string]engine.EventOutcome{}
	for _, id := range eventIDs {
		if o, ok := s.outcomes[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (s *mockStore) SettleMatch(ctx context.Context, up repo.SettleUpdate) error {
	if s.settleErr != nil {
		return s.settleErr
	}
	s.settled = append(s.settled, up)
	return nil
}

func (s *mockStore) AttachTransactionIDs(ctx context.Context, matchID, settlementTxID string, refundTxIDs []string) error {
	s.attached = append(s.attached, attachCall{matchID, settlementTxID, refundTxIDs})
	return nil
}

type mockLedger struct {
	calls []ldto.CreditRequest
	err   error
}

func (l *mockLedger) Credit(ctx context.Context, in ldto.CreditRequest) (*ldto.TransactionResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.calls = append(l.calls, in)
	return &ldto.TransactionResponse{
		ID:             fmt.Sprintf("tx-%d", len(l.calls)),
		UserID:         in.UserID,
		Type:           in.Type,
		AmountCents:    in.AmountCents,
		IdempotencyKey: in.IdempotencyKey,
	}, nil
}

func ptr[T any](v T) *T { return &v }

func activeMatch() *repo.Match {
	return &repo.Match{
		ID:          "m1",
		CreatorID:   "creator",
		OpponentID:  ptr("opponent"),
		StakeCents:  5000,
		RakePercent: 5,
		Status:      repo.MatchActive,
		Version:     3,
	}
}

func moneylinePick(id, eventID, selection string, points int64) repo.PickRow {
	return repo.PickRow{
		ID:         id,
		EventID:    eventID,
		Type:       engine.Moneyline,
		Selection:  selection,
		PointValue: points,
	}
}

func finalOutcome(home, away int64) engine.EventOutcome {
	return engine.EventOutcome{HomeScore: ptr(home), AwayScore: ptr(away), Status: engine.EventFinal}
}

// Cenário completo: criador faz 300 pontos (2 acertos, 1 erro), oponente 150
// (1 acerto, 1 erro). Ambos os slips perdem seus picks decisivos, mas o
// criador vence a partida nos pontos.
func bothLostScenario() *mockStore {
	return &mockStore{
		match: activeMatch(),
		slips: []*repo.Slip{
			{ID: "slip-c", MatchID: "m1", UserID: "creator", Picks: []repo.PickRow{
				moneylinePick("p1", "ev1", "home", 100),
				moneylinePick("p2", "ev2", "home", 200),
				moneylinePick("p3", "ev3", "home", 500),
			}},
			{ID: "slip-o", MatchID: "m1", UserID: "opponent", Picks: []repo.PickRow{
				moneylinePick("p4", "ev2", "home", 150),
				moneylinePick("p5", "ev3", "home", 400),
			}},
		},
		outcomes: map[string]engine.EventOutcome{
			"ev1": finalOutcome(2, 1), // home vence
			"ev2": finalOutcome(3, 0), // home vence
			"ev3": finalOutcome(0, 1), // away vence
		},
	}
}

func newTestOrchestrator(store *mockStore, ledger *mockLedger) *Orchestrator {
	return New(zap.NewNop(), store, ledger)
}

func TestSettleWinnerOnPoints(t *testing.T) {
	store := bothLostScenario()
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)

	require.Equal(t, "settled", res.Status)
	require.Equal(t, "creator", res.WinnerID)
	require.False(t, res.IsDraw)
	require.Equal(t, int64(300), res.CreatorPoints)
	require.Equal(t, int64(150), res.OpponentPoints)
	require.Equal(t, int64(10000), res.TotalPotCents)
	require.Equal(t, int64(500), res.RakeCents)
	require.Equal(t, int64(9500), res.PayoutCents)
	require.Equal(t, engine.ReasonHigherPoints, res.Reason)

	// persistência em uma unidade: status, slips, picks, stats, auditoria
	require.Len(t, store.settled, 1)
	up := store.settled[0]
	require.Equal(t, repo.MatchSettled, up.Status)
	require.Equal(t, int64(3), up.ExpectedVersion)
	require.Equal(t, "creator", *up.WinnerID)
	require.Equal(t, "auto", up.Method)
	require.Len(t, up.Slips, 2)
	require.Equal(t, engine.SlipLost, up.Slips[0].Status)
	require.Equal(t, engine.SlipLost, up.Slips[1].Status)
	require.Len(t, up.Picks, 5)
	require.Equal(t, []repo.StatUpdate{
		{UserID: "creator", Outcome: "win", Points: 300},
		{UserID: "opponent", Outcome: "loss", Points: 150},
	}, up.Stats)
	require.Equal(t, "settle", up.Audit.Action)

	// efeito financeiro fora da transação, com chave determinística
	require.Len(t, ledger.calls, 1)
	call := ledger.calls[0]
	require.Equal(t, "creator", call.UserID)
	require.Equal(t, int64(9500), call.AmountCents)
	require.Equal(t, "MATCH_WIN", call.Type)
	require.Equal(t, "settlement:m1:payout:creator", call.IdempotencyKey)

	require.Len(t, store.attached, 1)
	require.Equal(t, "tx-1", store.attached[0].settlementTxID)
	require.Equal(t, "tx-1", res.SettlementTxID)
}

func TestSettleDrawRefundsBothStakes(t *testing.T) {
	store := bothLostScenario()
	// oponente espelha o slip do criador: mesmos pontos, mesmos picks válidos
	store.slips[1].Picks = []repo.PickRow{
		moneylinePick("p4", "ev1", "home", 100),
		moneylinePick("p5", "ev2", "home", 200),
		moneylinePick("p6", "ev3", "home", 500),
	}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)

	require.Equal(t, "draw", res.Status)
	require.True(t, res.IsDraw)
	require.Empty(t, res.WinnerID)
	require.Equal(t, int64(0), res.RakeCents)
	require.Equal(t, int64(0), res.PayoutCents)
	require.Equal(t, int64(10000), res.TotalPotCents)

	require.Len(t, ledger.calls, 2)
	require.Equal(t, "settlement:m1:refund:creator", ledger.calls[0].IdempotencyKey)
	require.Equal(t, "settlement:m1:refund:opponent", ledger.calls[1].IdempotencyKey)
	for _, c := range ledger.calls {
		require.Equal(t, int64(5000), c.AmountCents)
		require.Equal(t, "MATCH_REFUND", c.Type)
	}

	up := store.settled[0]
	require.Nil(t, up.WinnerID)
	require.Equal(t, []repo.StatUpdate{
		{UserID: "creator", Outcome: "draw", Points: 300},
		{UserID: "opponent", Outcome: "draw", Points: 300},
	}, up.Stats)

	require.Equal(t, []string{"tx-1", "tx-2"}, res.RefundTxIDs)
}

func TestSettleNotEligibleWhileEventPending(t *testing.T) {
	store := bothLostScenario()
	store.outcomes["ev3"] = engine.EventOutcome{Status: engine.EventLive}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	_, err := o.Settle(context.Background(), "m1")
	require.ErrorIs(t, err, ErrNotEligible)
	require.Empty(t, store.settled)
	require.Empty(t, ledger.calls)
}

func TestSettleNoOpponentNotEligible(t *testing.T) {
	store := bothLostScenario()
	store.match.OpponentID = nil
	o := newTestOrchestrator(store, &mockLedger{})

	_, err := o.Settle(context.Background(), "m1")
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestSettleVersionConflictSkipsLedger(t *testing.T) {
	store := bothLostScenario()
	store.settleErr = repo.ErrVersionConflict
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	_, err := o.Settle(context.Background(), "m1")
	require.ErrorIs(t, err, repo.ErrVersionConflict)
	require.Empty(t, ledger.calls)
	require.Empty(t, store.attached)
}

func TestSettleLedgerFailureSurfacesWithoutAttach(t *testing.T) {
	store := bothLostScenario()
	ledger := &mockLedger{err: errors.New("ledger unavailable")}
	o := newTestOrchestrator(store, ledger)

	_, err := o.Settle(context.Background(), "m1")
	require.Error(t, err)
	require.Len(t, store.settled, 1)
	require.Empty(t, store.attached)
}

func TestSettleTerminalMatchIsReadOnly(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchSettled
	m.WinnerID = ptr("creator")
	m.PayoutCents = 9500
	m.SettlementTxID = ptr("tx-old")
	store := &mockStore{match: m}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, "settled", res.Status)
	require.Equal(t, "tx-old", res.SettlementTxID)
	require.Empty(t, ledger.calls)
	require.Empty(t, store.settled)
	require.Empty(t, store.attached)
}

// Uma tentativa anterior commitou o status mas caiu antes do ledger: a
// repetição completa o pagamento com a mesma chave determinística.
func TestSettleRetryCompletesPendingPayout(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchSettled
	m.WinnerID = ptr("creator")
	m.PayoutCents = 9500
	m.SettleMethod = "auto"
	store := &mockStore{match: m}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)

	require.Len(t, ledger.calls, 1)
	require.Equal(t, "settlement:m1:payout:creator", ledger.calls[0].IdempotencyKey)
	require.Equal(t, int64(9500), ledger.calls[0].AmountCents)
	require.Len(t, store.attached, 1)
	require.Equal(t, "tx-1", res.SettlementTxID)
}

func TestSettleRetryCompletesPendingManualPayout(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchSettled
	m.WinnerID = ptr("opponent")
	m.PayoutCents = 9500
	m.SettleMethod = "manual"
	store := &mockStore{match: m}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	_, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, ledger.calls, 1)
	require.Equal(t, "manual:m1:payout:opponent", ledger.calls[0].IdempotencyKey)
}

func TestSettleRetryCompletesPendingRefunds(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchVoided
	m.SettleMethod = "auto"
	store := &mockStore{match: m}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)

	require.Len(t, ledger.calls, 2)
	require.Equal(t, "void:m1:refund:creator", ledger.calls[0].IdempotencyKey)
	require.Equal(t, "void:m1:refund:opponent", ledger.calls[1].IdempotencyKey)
	require.Equal(t, []string{"tx-1", "tx-2"}, res.RefundTxIDs)
}

func TestSettleRetryDrawRefundsAlreadyDone(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchDraw
	m.RefundTxIDs = []string{"tx-a", "tx-b"}
	store := &mockStore{match: m}
	ledger := &mockLedger{}
	o := newTestOrchestrator(store, ledger)

	res, err := o.Settle(context.Background(), "m1")
	require.NoError(t, err)
	require.Empty(t, ledger.calls)
	require.Equal(t, []string{"tx-a", "tx-b"}, res.RefundTxIDs)
}

func TestSettleMatchNotFound(t *testing.T) {
	o := newTestOrchestrator(&mockStore{}, &mockLedger{})
	_, err := o.Settle(context.Background(), "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCheckReadinessPendingEvents(t *testing.T) {
	store := bothLostScenario()
	store.outcomes["ev2"] = engine.EventOutcome{Status: engine.EventPostponed}
	delete(store.outcomes, "ev3")
	o := newTestOrchestrator(store, &mockLedger{})

	r, err := o.CheckReadiness(context.Background(), "m1")
	require.NoError(t, err)
	require.False(t, r.IsReady)
	require.Equal(t, 2, r.PendingEvents)
	require.Equal(t, 3, r.TotalEvents)
	require.Equal(t, "events pending", r.Reason)
}

func TestCheckReadinessAllFinal(t *testing.T) {
	store := bothLostScenario()
	o := newTestOrchestrator(store, &mockLedger{})

	r, err := o.CheckReadiness(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, r.IsReady)
	require.Equal(t, 0, r.PendingEvents)
	require.Equal(t, "all events finalized", r.Reason)
}

func TestCheckReadinessTerminalMatch(t *testing.T) {
	m := activeMatch()
	m.Status = repo.MatchSettled
	m.SettlementTxID = ptr("tx-old")
	m.WinnerID = ptr("creator")
	store := &mockStore{match: m}
	o := newTestOrchestrator(store, &mockLedger{})

	r, err := o.CheckReadiness(context.Background(), "m1")
	require.NoError(t, err)
	require.False(t, r.IsReady)
	require.Equal(t, "match already settled", r.Reason)
}
