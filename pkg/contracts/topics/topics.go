package topics

const (
	// Feed de resultados de eventos esportivos
	EventResults = "event_results"

	// Liquidação de partidas
	MatchSettled = "match_settled"

	// DLQs
	EventResultsDLQ = "event_results_dlq"
)
