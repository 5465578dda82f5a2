package events

import "time"

// Evento emitido após a liquidação de uma partida (worker ou liquidação manual).
type MatchSettled struct {
	MatchID        string    `json:"matchId"`
	Status         string    `json:"status"` // "settled" | "draw" | "voided"
	WinnerID       string    `json:"winnerId,omitempty"`
	IsDraw         bool      `json:"isDraw"`
	CreatorPoints  int64     `json:"creatorPoints"`
	OpponentPoints int64     `json:"opponentPoints"`
	TotalPotCents  int64     `json:"totalPotCents"`
	RakeCents      int64     `json:"rakeCents"`
	PayoutCents    int64     `json:"payoutCents"`
	Reason         string    `json:"reason,omitempty"`
	Ts             time.Time `json:"ts"`
}
