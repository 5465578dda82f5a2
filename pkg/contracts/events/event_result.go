package events

// Evento publicado no tópico "event_results" pelo feed upstream.
// Scores são ponteiros: eventos cancelados/adiados podem vir sem placar.
type EventResult struct {
	EventID   string `json:"event_id"`
	HomeScore *int64 `json:"home_score"`
	AwayScore *int64 `json:"away_score"`
	Status    string `json:"status"` // "SCHEDULED" | "LIVE" | "FINAL" | "CANCELLED" | "POSTPONED"
	Source    string `json:"source"`
	TsUnixMs  int64  `json:"ts_unix_ms"`
}
