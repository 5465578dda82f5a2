package engine

import "strings"

// EvaluatePick avalia um pick contra o snapshot do evento.
// Função pura e determinística: mesma entrada produz sempre a mesma saída,
// requisito para a liquidação idempotente poder reexecutar a avaliação.
func EvaluatePick(p Pick, out EventOutcome) PickResult {
	if out.Status == EventCancelled || out.Status == EventPostponed {
		return PickResult{Status: PickVoid, Reason: "event " + strings.ToLower(string(out.Status))}
	}
	if out.HomeScore == nil || out.AwayScore == nil {
		return PickResult{Status: PickVoid, Reason: "missing score"}
	}
	if out.Status != EventFinal {
		return PickResult{Status: PickPending, Reason: "event not final"}
	}

	home, away := *out.HomeScore, *out.AwayScore

	switch p.Type {
	case Moneyline:
		return evalMoneyline(normalizeSelection(p.Selection), home, away)
	case Spread:
		if p.LineHundredths == nil {
			return PickResult{Status: PickVoid, Reason: "missing line"}
		}
		return evalSpread(normalizeSelection(p.Selection), home, away, *p.LineHundredths)
	case Total:
		if p.LineHundredths == nil {
			return PickResult{Status: PickVoid, Reason: "missing line"}
		}
		return evalTotal(normalizeSelection(p.Selection), home, away, *p.LineHundredths)
	case Prop:
		// O feed de eventos só fornece placar; props não têm fonte de resultado
		return PickResult{Status: PickVoid, Reason: "prop market not supported by score feed"}
	default:
		return PickResult{Status: PickVoid, Reason: "unknown pick type"}
	}
}

// normalizeSelection remove espaços e normaliza caixa ("Home Team " == "hometeam")
func normalizeSelection(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func evalMoneyline(sel string, home, away int64) PickResult {
	margin := home - away
	if margin == 0 {
		return PickResult{Status: PickPush, ResolvedValue: 0, Reason: "scores level"}
	}
	var winner string
	if margin > 0 {
		winner = "home"
	} else {
		winner = "away"
	}
	switch sel {
	case "home", "away":
		if sel == winner {
			return PickResult{Status: PickHit, ResolvedValue: margin, Reason: sel + " won"}
		}
		return PickResult{Status: PickMiss, ResolvedValue: margin, Reason: winner + " won"}
	default:
		return PickResult{Status: PickVoid, ResolvedValue: margin, Reason: "unknown selection"}
	}
}

// evalSpread compara o placar ajustado pela linha com o placar visitante.
// Tudo em centésimos para igualdade exata no push (sem float).
func evalSpread(sel string, home, away, lineHundredths int64) PickResult {
	adjusted := home*100 + lineHundredths
	diff := adjusted - away*100
	if diff == 0 {
		return PickResult{Status: PickPush, ResolvedValue: 0, Reason: "spread push"}
	}
	var covers string
	if diff > 0 {
		covers = "home"
	} else {
		covers = "away"
	}
	switch sel {
	case "home", "away":
		if sel == covers {
			return PickResult{Status: PickHit, ResolvedValue: diff, Reason: sel + " covered"}
		}
		return PickResult{Status: PickMiss, ResolvedValue: diff, Reason: covers + " covered"}
	default:
		return PickResult{Status: PickVoid, ResolvedValue: diff, Reason: "unknown selection"}
	}
}

func evalTotal(sel string, home, away, lineHundredths int64) PickResult {
	total := home + away
	diff := total*100 - lineHundredths
	if diff == 0 {
		return PickResult{Status: PickPush, ResolvedValue: total, Reason: "total push"}
	}
	var side string
	if diff > 0 {
		side = "over"
	} else {
		side = "under"
	}
	switch sel {
	case "over", "under":
		if sel == side {
			return PickResult{Status: PickHit, ResolvedValue: total, Reason: "total went " + side}
		}
		return PickResult{Status: PickMiss, ResolvedValue: total, Reason: "total went " + side}
	default:
		return PickResult{Status: PickVoid, ResolvedValue: total, Reason: "unknown selection"}
	}
}
