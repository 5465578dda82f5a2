package engine

// Razões fixas de arbitragem. Precisam ser estáveis entre reexecuções:
// uma nova tentativa de liquidação deve reproduzir a decisão original byte a byte.
const (
	ReasonBothVoided      = "both slips voided"
	ReasonCreatorVoided   = "creator slip voided"
	ReasonOpponentVoided  = "opponent slip voided"
	ReasonHigherPoints    = "won on points"
	ReasonFewerValidPicks = "won on fewer valid picks"
	ReasonDraw            = "draw on equal points and valid picks"
)

// Arbitrate decide o vencedor entre os dois slips. Regras em ordem estrita:
//  1. ambos VOID -> empate com reembolso integral
//  2. exatamente um VOID e o outro com >=1 pick válido -> o lado não-void vence
//  3. mais pontos vence
//  4. pontos iguais: menos picks válidos vence (premia economia de picks)
//  5. pontos e picks válidos iguais -> empate
//
// Um slip não-void com zero picks válidos (só pushes) contra um slip void não
// vence pela regra 2; cai na comparação de pontos (0 x 0) e resolve empate.
func Arbitrate(creatorID string, creator SlipScore, opponentID string, opponent SlipScore) Arbitration {
	creatorVoid := creator.Status == SlipVoid
	opponentVoid := opponent.Status == SlipVoid

	if creatorVoid && opponentVoid {
		return Arbitration{IsDraw: true, Reason: ReasonBothVoided}
	}
	if creatorVoid && opponent.ValidPicks > 0 {
		return Arbitration{WinnerID: opponentID, Reason: ReasonCreatorVoided}
	}
	if opponentVoid && creator.ValidPicks > 0 {
		return Arbitration{WinnerID: creatorID, Reason: ReasonOpponentVoided}
	}

	if creator.PointsEarned != opponent.PointsEarned {
		if creator.PointsEarned > opponent.PointsEarned {
			return Arbitration{WinnerID: creatorID, Reason: ReasonHigherPoints}
		}
		return Arbitration{WinnerID: opponentID, Reason: ReasonHigherPoints}
	}

	if creator.ValidPicks != opponent.ValidPicks {
		if creator.ValidPicks < opponent.ValidPicks {
			return Arbitration{WinnerID: creatorID, Reason: ReasonFewerValidPicks}
		}
		return Arbitration{WinnerID: opponentID, Reason: ReasonFewerValidPicks}
	}

	return Arbitration{IsDraw: true, Reason: ReasonDraw}
}
