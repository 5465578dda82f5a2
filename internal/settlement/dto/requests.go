package dto

type SettleRequest struct {
	MatchID string `json:"matchId"`
}

type ManualSettleRequest struct {
	MatchID       string `json:"matchId"`
	WinnerID      string `json:"winnerId,omitempty"` // vazio em anulação manual
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	Justification string `json:"justification"`
}

type EventActionRequest struct {
	EventID string `json:"eventId"`
	Reason  string `json:"reason,omitempty"`
}
