package engine

import "errors"

// ErrNegativePointValue indica entrada corrompida ou manipulada; nunca é clampado.
var ErrNegativePointValue = errors.New("negative point value")

// ScoreSlip agrega os resultados dos picks de um slip em um placar único.
// Regras:
//   - valor de pontos negativo é erro de integridade (zero é válido)
//   - VOID e PENDING ficam fora de todas as contagens
//   - PUSH fica fora de validPicks e dos pontos, mas não derruba o slip
//   - HIT soma pontos e conta em correct/valid; MISS conta só em valid
//   - status: VOID se todos os picks forem void; LOST se houver qualquer MISS;
//     WON caso contrário (cobre "só pushes" e "todos hits")
func ScoreSlip(outs []PickOutcome) (SlipScore, error) {
	score := SlipScore{}
	allVoid := true
	anyMiss := false

	for _, o := range outs {
		if o.PointValue < 0 {
			return SlipScore{}, ErrNegativePointValue
		}
		if o.Status != PickVoid {
			allVoid = false
		}
		switch o.Status {
		case PickVoid, PickPending, PickPush:
			// fora das contagens
		case PickHit:
			score.PointsEarned += o.PointValue
			score.CorrectPicks++
			score.ValidPicks++
		case PickMiss:
			anyMiss = true
			score.ValidPicks++
		}
	}

	switch {
	case allVoid:
		score.Status = SlipVoid
	case anyMiss:
		score.Status = SlipLost
	default:
		score.Status = SlipWon
	}
	return score, nil
}
