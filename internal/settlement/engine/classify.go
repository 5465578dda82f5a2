package engine

// Decisão de elegibilidade de uma partida.
type EligibilityDecision string

const (
	DecideSettle EligibilityDecision = "settle"
	DecideVoid   EligibilityDecision = "void"
	DecideWait   EligibilityDecision = "wait"
)

// EventClassification resume a situação dos eventos referenciados pelos picks
// de uma partida.
type EventClassification struct {
	Completed  int
	Cancelled  int
	Postponed  int
	InProgress int
	Unknown    int
	Total      int
	Decision   EligibilityDecision
}

// ClassifyEvents classifica os eventos de uma partida e decide:
// settle (todos finalizados), void (todos cancelados), wait (qualquer coisa
// adiada, ao vivo ou desconhecida).
func ClassifyEvents(eventIDs []string, outcomes map[string]EventOutcome) EventClassification {
	c := EventClassification{Total: len(eventIDs)}
	for _, id := range eventIDs {
		out, ok := outcomes[id]
		if !ok {
			c.Unknown++
			continue
		}
		switch out.Status {
		case EventFinal:
			c.Completed++
		case EventCancelled:
			c.Cancelled++
		case EventPostponed:
			c.Postponed++
		default:
			c.InProgress++
		}
	}

	switch {
	case c.Postponed > 0 || c.InProgress > 0 || c.Unknown > 0:
		c.Decision = DecideWait
	case c.Cancelled == c.Total && c.Total > 0:
		c.Decision = DecideVoid
	default:
		c.Decision = DecideSettle
	}
	return c
}
