package edgecase

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

var (
	ErrForbidden = errors.New("insufficient role")
	// Justificativa mínima para ação manual; ambient trust não conta
	MinJustificationLen = 10
)

// Store define a persistência usada pelos fluxos de exceção.
type Store interface {
	GetMatch(ctx context.Context, id string) (*repo.Match, error)
	GetSlips(ctx context.Context, matchID string) ([]*repo.Slip, error)
	GetEventOutcomes(ctx context.Context, eventIDs []string) (map[string]engine.EventOutcome, error)
	GetEventOutcome(ctx context.Context, eventID string) (engine.EventOutcome, time.Time, error)
	SettleMatch(ctx context.Context, up repo.SettleUpdate) error
	AttachTransactionIDs(ctx context.Context, matchID string, settlementTxID string, refundTxIDs []string) error
	MarkEventStatus(ctx context.Context, eventID string, status engine.EventStatus) error
	VoidPendingPicks(ctx context.Context, eventID, reason string) error
	ActiveMatchIDsByEvent(ctx context.Context, eventID string) ([]string, error)
	FlagPostponed(ctx context.Context, matchID string, nextCheck time.Time) error
	ClearPostponed(ctx context.Context, matchID string) error
	PostponedDue(ctx context.Context, now time.Time, limit int) ([]*repo.Match, error)
	InsertAudit(ctx context.Context, a repo.AuditEntry) error
}

// Ledger é a superfície financeira usada nos reembolsos e liquidação manual.
type Ledger interface {
	Credit(ctx context.Context, in ldto.CreditRequest) (*ldto.TransactionResponse, error)
}

// ManualRequest é uma ação administrativa sobre uma partida.
// WinnerID vazio indica anulação com reembolso integral.
type ManualRequest struct {
	MatchID       string
	WinnerID      string
	ActorID       string
	ActorRole     Role
	Justification string
	IP            string
	UserAgent     string
}

// Handler implementa a máquina de estados de cancelamento/adiamento e a
// liquidação manual, compartilhando o ledger com o orquestrador.
type Handler struct {
	log             *zap.Logger
	store           Store
	ledger          Ledger
	postponeTimeout time.Duration
	recheckInterval time.Duration
}

func New(log *zap.Logger, store Store, ledger Ledger, postponeTimeout, recheckInterval time.Duration) *Handler {
	return &Handler{
		log:             log,
		store:           store,
		ledger:          ledger,
		postponeTimeout: postponeTimeout,
		recheckInterval: recheckInterval,
	}
}

// CancelEvent marca o evento como cancelado, anula os picks pendentes e trata
// cada partida afetada: slip totalmente void anula a partida inteira com
// reembolso; caso contrário a partida segue com os picks restantes.
func (h *Handler) CancelEvent(ctx context.Context, eventID, reason string) error {
	if err := h.store.MarkEventStatus(ctx, eventID, engine.EventCancelled); err != nil {
		return err
	}
	voidReason := "event cancelled"
	if reason != "" {
		voidReason = "event cancelled: " + reason
	}
	if err := h.store.VoidPendingPicks(ctx, eventID, voidReason); err != nil {
		return err
	}

	// Partidas afetadas vêm da consulta por evento, não do conjunto de picks
	// recém-anulados: um retry depois de falha parcial (picks já VOID, partida
	// ainda ativa) reencontra as mesmas partidas e completa a anulação.
	matchIDs, err := h.store.ActiveMatchIDsByEvent(ctx, eventID)
	if err != nil {
		return err
	}

	for _, matchID := range matchIDs {
		if err := h.handleAffectedMatch(ctx, matchID, voidReason); err != nil {
			h.log.Error("cancel: affected match", zap.String("matchId", matchID), zap.Error(err))
			return err
		}
	}
	h.log.Info("event cancelled", zap.String("eventId", eventID), zap.Int("affectedMatches", len(matchIDs)))
	return nil
}

func (h *Handler) handleAffectedMatch(ctx context.Context, matchID, reason string) error {
	m, err := h.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Status != repo.MatchActive {
		return nil
	}
	slips, err := h.store.GetSlips(ctx, matchID)
	if err != nil {
		return err
	}

	anyFullyVoid := false
	for _, s := range slips {
		if fullyVoid(s) {
			anyFullyVoid = true
			break
		}
	}

	if !anyFullyVoid {
		// Anulação parcial: a partida continua com os picks restantes
		return h.store.InsertAudit(ctx, repo.AuditEntry{
			MatchID:   matchID,
			Action:    "partial_void",
			Actor:     "system",
			ActorRole: "system",
			Reason:    reason,
			BeforeState: map[string]any{"status": m.Status, "version": m.Version},
			AfterState:  map[string]any{"status": m.Status},
		})
	}

	return h.voidMatch(ctx, m, slips, "auto", reason, repo.AuditEntry{
		MatchID:     matchID,
		Action:      "void",
		Actor:       "system",
		ActorRole:   "system",
		Reason:      reason,
		BeforeState: map[string]any{"status": m.Status, "version": m.Version},
		AfterState:  map[string]any{"status": repo.MatchVoided},
	}, idem.VoidRefundKey)
}

// voidMatch anula a partida (lock otimista) e reembolsa os dois lados depois
// da transação de status, cada crédito com chave determinística.
func (h *Handler) voidMatch(ctx context.Context, m *repo.Match, slips []*repo.Slip, method, reason string, audit repo.AuditEntry, refundKey func(matchID, userID string) string) error {
	up := repo.SettleUpdate{
		MatchID:         m.ID,
		ExpectedVersion: m.Version,
		Status:          repo.MatchVoided,
		PotCents:        2 * m.StakeCents,
		Method:          method,
		Reason:          reason,
		Audit:           audit,
	}
	if method == "manual" {
		up.ManualFlag = true
		up.ManualActor = audit.Actor
	}
	for _, s := range slips {
		up.Slips = append(up.Slips, repo.SlipUpdate{SlipID: s.ID, Status: engine.SlipVoid})
	}

	if err := h.store.SettleMatch(ctx, up); err != nil {
		return err
	}

	var refundTxIDs []string
	participants := []string{m.CreatorID}
	if m.OpponentID != nil {
		participants = append(participants, *m.OpponentID)
	}
	for _, userID := range participants {
		t, err := h.ledger.Credit(ctx, ldto.CreditRequest{
			UserID:         userID,
			AmountCents:    m.StakeCents,
			Type:           string(lrepo.TxMatchRefund),
			IdempotencyKey: refundKey(m.ID, userID),
			MatchID:        m.ID,
			Metadata:       map[string]string{"reason": reason},
		})
		if err != nil {
			return err
		}
		refundTxIDs = append(refundTxIDs, t.ID)
	}
	return h.store.AttachTransactionIDs(ctx, m.ID, "", refundTxIDs)
}

// PostponeEvent marca o evento como adiado e flaga as partidas ativas
// afetadas com a próxima checagem agendada.
func (h *Handler) PostponeEvent(ctx context.Context, eventID string) error {
	if err := h.store.MarkEventStatus(ctx, eventID, engine.EventPostponed); err != nil {
		return err
	}
	matchIDs, err := h.store.ActiveMatchIDsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	next := time.Now().UTC().Add(h.recheckInterval)
	for _, id := range matchIDs {
		if err := h.store.FlagPostponed(ctx, id, next); err != nil {
			return err
		}
	}
	h.log.Info("event postponed", zap.String("eventId", eventID), zap.Int("flaggedMatches", len(matchIDs)))
	return nil
}

// Sweep reexamina partidas flagadas: limpa a flag se nada mais está adiado,
// auto-cancela eventos adiados além do timeout, ou reagenda a checagem.
func (h *Handler) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := h.store.PostponedDue(ctx, now, 100)
	if err != nil {
		return err
	}

	for _, m := range due {
		if err := h.sweepMatch(ctx, m, now); err != nil {
			h.log.Error("sweep match", zap.String("matchId", m.ID), zap.Error(err))
		}
	}
	return nil
}

func (h *Handler) sweepMatch(ctx context.Context, m *repo.Match, now time.Time) error {
	slips, err := h.store.GetSlips(ctx, m.ID)
	if err != nil {
		return err
	}
	eventIDs := eventIDsOf(slips)

	stillPostponed := []string{}
	for _, eventID := range eventIDs {
		out, updatedAt, err := h.store.GetEventOutcome(ctx, eventID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return err
		}
		if out.Status != engine.EventPostponed {
			continue
		}
		if now.Sub(updatedAt) > h.postponeTimeout {
			// Adiamento estourou o prazo: reusa o caminho de cancelamento
			if err := h.CancelEvent(ctx, eventID, "postponement timeout"); err != nil {
				return err
			}
			continue
		}
		stillPostponed = append(stillPostponed, eventID)
	}

	if len(stillPostponed) == 0 {
		return h.store.ClearPostponed(ctx, m.ID)
	}
	return h.store.FlagPostponed(ctx, m.ID, now.Add(h.recheckInterval))
}

// Eligibility classifica os eventos dos picks da partida e devolve a decisão
// settle/void/wait com as contagens.
func (h *Handler) Eligibility(ctx context.Context, matchID string) (engine.EventClassification, error) {
	slips, err := h.store.GetSlips(ctx, matchID)
	if err != nil {
		return engine.EventClassification{}, err
	}
	eventIDs := eventIDsOf(slips)
	outcomes, err := h.store.GetEventOutcomes(ctx, eventIDs)
	if err != nil {
		return engine.EventClassification{}, err
	}
	return engine.ClassifyEvents(eventIDs, outcomes), nil
}

// ManualSettle força um vencedor (pote cheio menos rake, mesma matemática da
// liquidação automática) ou anula com reembolso integral quando WinnerID vem
// vazio. Exige papel admin e justificativa mínima; tudo vai para a auditoria.
func (h *Handler) ManualSettle(ctx context.Context, req ManualRequest) error {
	if !req.ActorRole.AtLeast(RoleAdmin) {
		return fmt.Errorf("%w: role %q", ErrForbidden, req.ActorRole)
	}
	if len(req.Justification) < MinJustificationLen {
		return fmt.Errorf("%w: justification too short", repo.ErrValidation)
	}

	m, err := h.store.GetMatch(ctx, req.MatchID)
	if err != nil {
		return err
	}
	if m.Status != repo.MatchActive {
		return fmt.Errorf("%w: match already %s", repo.ErrValidation, m.Status)
	}
	slips, err := h.store.GetSlips(ctx, req.MatchID)
	if err != nil {
		return err
	}

	audit := repo.AuditEntry{
		MatchID:     req.MatchID,
		Action:      "manual_void",
		Actor:       req.ActorID,
		ActorRole:   string(req.ActorRole),
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Reason:      req.Justification,
		BeforeState: map[string]any{"status": m.Status, "version": m.Version},
	}

	if req.WinnerID == "" {
		audit.AfterState = map[string]any{"status": repo.MatchVoided}
		return h.voidMatch(ctx, m, slips, "manual", req.Justification, audit, idem.ManualRefundKey)
	}

	// Vencedor forçado exige os dois lados: o pote é 2x a entrada e só existe
	// com as duas entradas debitadas. Partida sem oponente só pode ser anulada.
	if m.OpponentID == nil {
		return fmt.Errorf("%w: match has no opponent", repo.ErrValidation)
	}
	if req.WinnerID != m.CreatorID && req.WinnerID != *m.OpponentID {
		return fmt.Errorf("%w: winner is not a participant", repo.ErrValidation)
	}

	pot, rake, payout := engine.ComputePayout(m.StakeCents, m.RakePercent)
	audit.Action = "manual_settle"
	audit.AfterState = map[string]any{
		"status": repo.MatchSettled, "winnerId": req.WinnerID,
		"potCents": pot, "rakeCents": rake, "payoutCents": payout,
	}

	loser := *m.OpponentID
	if req.WinnerID == *m.OpponentID {
		loser = m.CreatorID
	}
	up := repo.SettleUpdate{
		MatchID:         m.ID,
		ExpectedVersion: m.Version,
		Status:          repo.MatchSettled,
		WinnerID:        &req.WinnerID,
		PotCents:        pot,
		RakeCents:       rake,
		PayoutCents:     payout,
		Method:          "manual",
		Reason:          req.Justification,
		ManualFlag:      true,
		ManualActor:     req.ActorID,
		Stats: []repo.StatUpdate{
			{UserID: req.WinnerID, Outcome: "win"},
			{UserID: loser, Outcome: "loss"},
		},
		Audit: audit,
	}
	if err := h.store.SettleMatch(ctx, up); err != nil {
		return err
	}

	t, err := h.ledger.Credit(ctx, ldto.CreditRequest{
		UserID:         req.WinnerID,
		AmountCents:    payout,
		Type:           string(lrepo.TxMatchWin),
		IdempotencyKey: idem.ManualPayoutKey(m.ID, req.WinnerID),
		MatchID:        m.ID,
		Metadata:       map[string]string{"reason": "manual settlement", "actor": req.ActorID},
	})
	if err != nil {
		return err
	}
	h.log.Info("manual settlement",
		zap.String("matchId", m.ID),
		zap.String("actor", req.ActorID),
		zap.String("winnerId", req.WinnerID))
	return h.store.AttachTransactionIDs(ctx, m.ID, t.ID, nil)
}

func fullyVoid(s *repo.Slip) bool {
	if len(s.Picks) == 0 {
		return false
	}
	for _, pk := range s.Picks {
		if pk.Status != engine.PickVoid {
			return false
		}
	}
	return true
}

func eventIDsOf(slips []*repo.Slip) []string {
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
