package repo

import (
	"time"

	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
)

// Status de uma partida. Transições monotônicas: active -> exatamente um
// estado terminal; depois disso só os ids de transação podem ser anexados.
type MatchStatus string

const (
	MatchActive  MatchStatus = "active"
	MatchSettled MatchStatus = "settled"
	MatchDraw    MatchStatus = "draw"
	MatchVoided  MatchStatus = "voided"
)

// Match é o confronto 1x1 persistido no Postgres.
type Match struct {
	ID                string
	CreatorID         string
	OpponentID        *string
	StakeCents        int64
	RakePercent       int64
	Status            MatchStatus
	Version           int64
	WinnerID          *string
	CreatorPoints     int64
	OpponentPoints    int64
	PotCents          int64
	RakeCents         int64
	PayoutCents       int64
	SettleMethod      string
	SettleReason      string
	ManualFlag        bool
	ManualActor       *string
	HasPostponed      bool
	NextPostponeCheck *time.Time
	SettlementTxID    *string
	RefundTxIDs       []string
	SettledAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Slip é o conjunto de picks de um participante em uma partida.
type Slip struct {
	ID           string
	MatchID      string
	UserID       string
	Status       engine.SlipStatus
	PointsEarned int64
	CorrectPicks int
	ValidPicks   int
	Picks        []PickRow
}

// PickRow é um pick persistido, com os campos resolvidos na liquidação.
type PickRow struct {
	ID             string
	SlipID         string
	EventID        string
	Type           engine.PickType
	Selection      string
	LineHundredths *int64
	PointValue     int64
	Status         engine.PickStatus
	ResolvedValue  int64
	ResultReason   string
}

// Engine converte o pick persistido para a entrada do avaliador puro.
func (p PickRow) Engine() engine.Pick {
	return engine.Pick{
		ID:             p.ID,
		EventID:        p.EventID,
		Type:           p.Type,
		Selection:      p.Selection,
		LineHundredths: p.LineHundredths,
		PointValue:     p.PointValue,
	}
}

// SlipUpdate carrega o resultado agregado de um slip para persistência.
type SlipUpdate struct {
	SlipID       string
	Status       engine.SlipStatus
	PointsEarned int64
	CorrectPicks int
	ValidPicks   int
}

// PickUpdate carrega o resultado de um pick para persistência.
type PickUpdate struct {
	PickID        string
	Status        engine.PickStatus
	ResolvedValue int64
	Reason        string
}

// StatUpdate atualiza a estatística corrente de um usuário dentro da
// transação de liquidação. Outcome: "win" | "loss" | "draw".
type StatUpdate struct {
	UserID  string
	Outcome string
	Points  int64
}

// AuditEntry é uma linha do log de auditoria de liquidação.
type AuditEntry struct {
	MatchID     string
	Action      string
	Actor       string
	ActorRole   string
	IP          string
	UserAgent   string
	Reason      string
	BeforeState any
	AfterState  any
}

// SettleUpdate é o script da transação de liquidação: todas as mutações de
// registro mais uma entrada de auditoria, aplicadas em uma unidade atômica
// condicionada à version lida na checagem de elegibilidade.
type SettleUpdate struct {
	MatchID         string
	ExpectedVersion int64
	Status          MatchStatus
	WinnerID        *string
	CreatorPoints   int64
	OpponentPoints  int64
	PotCents        int64
	RakeCents       int64
	PayoutCents     int64
	Method          string
	Reason          string
	ManualFlag      bool
	ManualActor     string
	Slips           []SlipUpdate
	Picks           []PickUpdate
	Stats           []StatUpdate
	Audit           AuditEntry
}
