package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrValidation      = errors.New("validation error")
)

// Postgres implementa a persistência de partidas, slips, picks, snapshots de
// eventos, estatísticas e auditoria da liquidação.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const matchCols = `id, creator_id, opponent_id, stake_cents, rake_percent, status, version,
	winner_id, creator_points, opponent_points, pot_cents, rake_cents, payout_cents,
	settle_method, settle_reason, manual_flag, manual_actor,
	has_postponed, next_postpone_check, settlement_tx_id, refund_tx_ids,
	settled_at, created_at, updated_at`

// GetMatch carrega uma partida pelo id.
func (p *Postgres) GetMatch(ctx context.Context, id string) (*Match, error) {
	m, err := scanMatch(p.db.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match %s", ErrNotFound, id)
	}
	return m, err
}

// GetSlips carrega os slips de uma partida com seus picks, na ordem de criação.
func (p *Postgres) GetSlips(ctx context.Context, matchID string) ([]*Slip, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, match_id, user_id, status, points_earned, correct_picks, valid_picks
		FROM slips WHERE match_id=$1 ORDER BY created_at`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slips []*Slip
	for rows.Next() {
		var s Slip
		if err := rows.Scan(&s.ID, &s.MatchID, &s.UserID, &s.Status, &s.PointsEarned, &s.CorrectPicks, &s.ValidPicks); err != nil {
			return nil, err
		}
		slips = append(slips, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range slips {
		picks, err := p.picksBySlip(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Picks = picks
	}
	return slips, nil
}

func (p *Postgres) picksBySlip(ctx context.Context, slipID string) ([]PickRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slip_id, event_id, pick_type, selection, line_hundredths, point_value,
			status, resolved_value, result_reason
		FROM picks WHERE slip_id=$1 ORDER BY created_at`, slipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PickRow
	for rows.Next() {
		var pk PickRow
		var line sql.NullInt64
		if err := rows.Scan(&pk.ID, &pk.SlipID, &pk.EventID, &pk.Type, &pk.Selection, &line,
			&pk.PointValue, &pk.Status, &pk.ResolvedValue, &pk.ResultReason); err != nil {
			return nil, err
		}
		if line.Valid {
			pk.LineHundredths = &line.Int64
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

// GetEventOutcome retorna o snapshot de um evento e quando foi atualizado.
func (p *Postgres) GetEventOutcome(ctx context.Context, eventID string) (engine.EventOutcome, time.Time, error) {
	var out engine.EventOutcome
	var home, away sql.NullInt64
	var updatedAt time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id, home_score, away_score, status, updated_at FROM event_outcomes WHERE id=$1`,
		eventID).Scan(&out.ID, &home, &away, &out.Status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return out, updatedAt, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return out, updatedAt, err
	}
	if home.Valid {
		out.HomeScore = &home.Int64
	}
	if away.Valid {
		out.AwayScore = &away.Int64
	}
	return out, updatedAt, nil
}

// GetEventOutcomes retorna snapshots por id; eventos desconhecidos ficam fora do mapa.
func (p *Postgres) GetEventOutcomes(ctx context.Context, eventIDs []string) (map[string]engine.EventOutcome, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, home_score, away_score, status FROM event_outcomes WHERE id = ANY($1)`,
		pq.Array(eventIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]engine.EventOutcome, len(eventIDs))
	for rows.Next() {
		var e engine.EventOutcome
		var home, away sql.NullInt64
		if err := rows.Scan(&e.ID, &home, &away, &e.Status); err != nil {
			return nil, err
		}
		if home.Valid {
			e.HomeScore = &home.Int64
		}
		if away.Valid {
			e.AwayScore = &away.Int64
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

// UpsertEventOutcome grava/atualiza o snapshot de um evento vindo do feed.
func (p *Postgres) UpsertEventOutcome(ctx context.Context, e engine.EventOutcome) error {
	var home, away any
	if e.HomeScore != nil {
		home = *e.HomeScore
	}
	if e.AwayScore != nil {
		away = *e.AwayScore
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO event_outcomes(id, home_score, away_score, status, updated_at)
		VALUES($1,$2,$3,$4,NOW())
		ON CONFLICT (id) DO UPDATE
		SET home_score=EXCLUDED.home_score, away_score=EXCLUDED.away_score,
			status=EXCLUDED.status, updated_at=NOW()`,
		e.ID, home, away, e.Status)
	return err
}

// MarkEventStatus grava só o status do snapshot. Escrita exclusiva do
// edge-case handler (cancelamento/adiamento); o feed nunca passa por aqui.
// Upsert: cancelar um evento nunca visto cria o snapshot sem placar.
func (p *Postgres) MarkEventStatus(ctx context.Context, eventID string, status engine.EventStatus) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO event_outcomes(id, home_score, away_score, status, updated_at)
		VALUES($1,NULL,NULL,$2,NOW())
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, updated_at=NOW()`,
		eventID, status)
	return err
}

// SettleMatch aplica o script de liquidação em uma única transação:
// partida (condicionada à version), slips, picks, estatísticas por usuário,
// agregado de ranking e entrada de auditoria. Conflito de versão aborta tudo.
func (p *Postgres) SettleMatch(ctx context.Context, up SettleUpdate) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var winner any
	if up.WinnerID != nil {
		winner = *up.WinnerID
	}
	var actor any
	if up.ManualActor != "" {
		actor = up.ManualActor
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE matches
		SET status=$1, winner_id=$2, creator_points=$3, opponent_points=$4,
			pot_cents=$5, rake_cents=$6, payout_cents=$7,
			settle_method=$8, settle_reason=$9, manual_flag=$10, manual_actor=$11,
			has_postponed=FALSE, next_postpone_check=NULL,
			settled_at=NOW(), version=version+1, updated_at=NOW()
		WHERE id=$12 AND version=$13 AND status='active'`,
		up.Status, winner, up.CreatorPoints, up.OpponentPoints,
		up.PotCents, up.RakeCents, up.PayoutCents,
		up.Method, up.Reason, up.ManualFlag, actor,
		up.MatchID, up.ExpectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: match %s", ErrVersionConflict, up.MatchID)
	}

	for _, s := range up.Slips {
		if _, err := tx.ExecContext(ctx, `
			UPDATE slips SET status=$1, points_earned=$2, correct_picks=$3, valid_picks=$4, updated_at=NOW()
			WHERE id=$5`,
			s.Status, s.PointsEarned, s.CorrectPicks, s.ValidPicks, s.SlipID); err != nil {
			return err
		}
	}
	for _, pk := range up.Picks {
		if _, err := tx.ExecContext(ctx, `
			UPDATE picks SET status=$1, resolved_value=$2, result_reason=$3, updated_at=NOW()
			WHERE id=$4`,
			pk.Status, pk.ResolvedValue, pk.Reason, pk.PickID); err != nil {
			return err
		}
	}

	for _, st := range up.Stats {
		if err := applyStat(ctx, tx, st); err != nil {
			return err
		}
		if err := applyLeaderboard(ctx, tx, st); err != nil {
			return err
		}
	}

	if err := insertAudit(ctx, tx, up.Audit); err != nil {
		return err
	}

	return tx.Commit()
}

// applyStat atualiza a estatística corrente do usuário.
// Vitória incrementa streak e mantém best_streak como máximo corrente;
// derrota zera o streak; empate não toca o streak.
func applyStat(ctx context.Context, tx *sql.Tx, st StatUpdate) error {
	switch st.Outcome {
	case "win":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_stats(user_id, matches_played, matches_won, matches_lost, matches_drawn, points_total, win_streak, best_streak)
			VALUES($1,1,1,0,0,$2,1,1)
			ON CONFLICT (user_id) DO UPDATE SET
				matches_played=user_stats.matches_played+1,
				matches_won=user_stats.matches_won+1,
				points_total=user_stats.points_total+$2,
				win_streak=user_stats.win_streak+1,
				best_streak=GREATEST(user_stats.best_streak, user_stats.win_streak+1),
				updated_at=NOW()`,
			st.UserID, st.Points)
		return err
	case "loss":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_stats(user_id, matches_played, matches_won, matches_lost, matches_drawn, points_total, win_streak, best_streak)
			VALUES($1,1,0,1,0,$2,0,0)
			ON CONFLICT (user_id) DO UPDATE SET
				matches_played=user_stats.matches_played+1,
				matches_lost=user_stats.matches_lost+1,
				points_total=user_stats.points_total+$2,
				win_streak=0,
				updated_at=NOW()`,
			st.UserID, st.Points)
		return err
	case "draw":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_stats(user_id, matches_played, matches_won, matches_lost, matches_drawn, points_total, win_streak, best_streak)
			VALUES($1,1,0,0,1,$2,0,0)
			ON CONFLICT (user_id) DO UPDATE SET
				matches_played=user_stats.matches_played+1,
				matches_drawn=user_stats.matches_drawn+1,
				points_total=user_stats.points_total+$2,
				updated_at=NOW()`,
			st.UserID, st.Points)
		return err
	default:
		return fmt.Errorf("%w: unknown stat outcome %q", ErrValidation, st.Outcome)
	}
}

// applyLeaderboard mantém o agregado de ranking consumido pelo leaderboard.
// A fórmula de pontuação do leaderboard em si fica fora deste core.
func applyLeaderboard(ctx context.Context, tx *sql.Tx, st StatUpdate) error {
	season := fmt.Sprintf("%d", time.Now().UTC().Year())
	wins := int64(0)
	if st.Outcome == "win" {
		wins = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leaderboard_entries(user_id, season, wins, points)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (user_id, season) DO UPDATE SET
			wins=leaderboard_entries.wins+$3,
			points=leaderboard_entries.points+$4,
			updated_at=NOW()`,
		st.UserID, season, wins, st.Points)
	return err
}

func insertAudit(ctx context.Context, tx *sql.Tx, a AuditEntry) error {
	before, err := json.Marshal(a.BeforeState)
	if err != nil {
		return err
	}
	after, err := json.Marshal(a.AfterState)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_audit(id, match_id, action, actor, actor_role, ip, user_agent, reason, before_state, after_state, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		uuid.NewString(), a.MatchID, a.Action, a.Actor, a.ActorRole, a.IP, a.UserAgent, a.Reason, before, after)
	return err
}

// InsertAudit grava uma entrada de auditoria fora da transação de liquidação
// (ex.: anulação parcial por cancelamento de evento).
func (p *Postgres) InsertAudit(ctx context.Context, a AuditEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertAudit(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachTransactionIDs anexa os ids de transação do ledger à partida já
// liquidada. Única mutação permitida após estado terminal.
func (p *Postgres) AttachTransactionIDs(ctx context.Context, matchID string, settlementTxID string, refundTxIDs []string) error {
	var settleTx any
	if settlementTxID != "" {
		settleTx = settlementTxID
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET settlement_tx_id=$1, refund_tx_ids=$2, updated_at=NOW()
		WHERE id=$3 AND status <> 'active'`,
		settleTx, pq.Array(refundTxIDs), matchID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: settled match %s", ErrNotFound, matchID)
	}
	return nil
}

// VoidPendingPicks anula todos os picks ainda pendentes de um evento.
// Idempotente: um retry sem picks pendentes é um UPDATE de zero linhas.
// As partidas afetadas são sempre consultadas à parte (ActiveMatchIDsByEvent),
// nunca derivadas daqui.
func (p *Postgres) VoidPendingPicks(ctx context.Context, eventID, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE picks SET status='VOID', result_reason=$1, updated_at=NOW()
		WHERE event_id=$2 AND status='PENDING'`, reason, eventID)
	return err
}

// ActiveMatchIDsByEvent retorna partidas ativas com algum pick no evento.
func (p *Postgres) ActiveMatchIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT m.id
		FROM matches m
		JOIN slips s ON s.match_id = m.id
		JOIN picks pk ON pk.slip_id = s.id
		WHERE pk.event_id=$1 AND m.status='active'`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// FlagPostponed marca a partida com evento adiado e agenda a próxima checagem.
func (p *Postgres) FlagPostponed(ctx context.Context, matchID string, nextCheck time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE matches SET has_postponed=TRUE, next_postpone_check=$1, updated_at=NOW()
		WHERE id=$2 AND status='active'`, nextCheck, matchID)
	return err
}

// ClearPostponed limpa a flag quando o evento deixou de estar adiado.
func (p *Postgres) ClearPostponed(ctx context.Context, matchID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE matches SET has_postponed=FALSE, next_postpone_check=NULL, updated_at=NOW()
		WHERE id=$1`, matchID)
	return err
}

// PostponedDue lista partidas flagadas cuja próxima checagem venceu.
func (p *Postgres) PostponedDue(ctx context.Context, now time.Time, limit int) ([]*Match, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+matchCols+` FROM matches
		WHERE status='active' AND has_postponed=TRUE AND next_postpone_check <= $1
		ORDER BY next_postpone_check LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMatch(r interface{ Scan(...any) error }) (*Match, error) {
	var m Match
	var opponent, winner, method, reason, actor, settleTx sql.NullString
	var nextCheck, settledAt sql.NullTime
	err := r.Scan(&m.ID, &m.CreatorID, &opponent, &m.StakeCents, &m.RakePercent, &m.Status, &m.Version,
		&winner, &m.CreatorPoints, &m.OpponentPoints, &m.PotCents, &m.RakeCents, &m.PayoutCents,
		&method, &reason, &m.ManualFlag, &actor,
		&m.HasPostponed, &nextCheck, &settleTx, pq.Array(&m.RefundTxIDs),
		&settledAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if opponent.Valid {
		m.OpponentID = &opponent.String
	}
	if winner.Valid {
		m.WinnerID = &winner.String
	}
	m.SettleMethod = method.String
	m.SettleReason = reason.String
	if actor.Valid {
		m.ManualActor = &actor.String
	}
	if nextCheck.Valid {
		m.NextPostponeCheck = &nextCheck.Time
	}
	if settleTx.Valid {
		m.SettlementTxID = &settleTx.String
	}
	if settledAt.Valid {
		m.SettledAt = &settledAt.Time
	}
	return &m, nil
}
