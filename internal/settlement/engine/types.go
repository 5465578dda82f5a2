package engine

// Status possíveis de um pick após avaliação.
type PickStatus string

const (
	PickPending PickStatus = "PENDING"
	PickHit     PickStatus = "HIT"
	PickMiss    PickStatus = "MISS"
	PickPush    PickStatus = "PUSH"
	PickVoid    PickStatus = "VOID"
)

// Tipos de mercado suportados.
type PickType string

const (
	Moneyline PickType = "MONEYLINE"
	Spread    PickType = "SPREAD"
	Total     PickType = "TOTAL"
	Prop      PickType = "PROP"
)

// Status agregado de um slip.
type SlipStatus string

const (
	SlipActive SlipStatus = "ACTIVE"
	SlipWon    SlipStatus = "WON"
	SlipLost   SlipStatus = "LOST"
	SlipVoid   SlipStatus = "VOID"
)

// Status de um evento esportivo conforme o feed.
type EventStatus string

const (
	EventScheduled EventStatus = "SCHEDULED"
	EventLive      EventStatus = "LIVE"
	EventFinal     EventStatus = "FINAL"
	EventCancelled EventStatus = "CANCELLED"
	EventPostponed EventStatus = "POSTPONED"
)

// EventOutcome é o snapshot (somente leitura) de um evento no momento da avaliação.
// Scores são ponteiros: eventos cancelados/adiados podem não ter placar.
type EventOutcome struct {
	ID        string
	HomeScore *int64
	AwayScore *int64
	Status    EventStatus
}

// Pick é uma proposição apostada dentro de um slip.
// LineHundredths guarda a linha multiplicada por 100 (ex.: -350 = -3.5),
// sempre na perspectiva do mandante em spreads. Aritmética exata, sem float.
type Pick struct {
	ID             string
	EventID        string
	Type           PickType
	Selection      string
	LineHundredths *int64
	PointValue     int64
}

// PickResult é o resultado da avaliação de um pick contra um evento.
type PickResult struct {
	Status        PickStatus
	ResolvedValue int64
	Reason        string
}

// PickOutcome é a entrada mínima do scorer: status avaliado + valor em pontos.
type PickOutcome struct {
	Status     PickStatus
	PointValue int64
}

// SlipScore é o agregado de um slip após avaliação de todos os picks.
type SlipScore struct {
	PointsEarned int64
	CorrectPicks int
	ValidPicks   int
	Status       SlipStatus
}

// Arbitration é a decisão final entre os dois slips de uma partida.
// WinnerID vazio indica empate.
type Arbitration struct {
	WinnerID string
	IsDraw   bool
	Reason   string
}
