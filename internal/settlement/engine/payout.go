package engine

// ComputePayout calcula pote, rake e prêmio em aritmética inteira exata.
// Rake usa teto (ceiling), nunca truncamento: resto fracionário sempre
// fica com o operador, nunca vaza para o jogador.
// Ex.: stake 501 cada (pote 1002) a 5% -> rake 51, prêmio 951.
func ComputePayout(stakeCents int64, rakePercent int64) (pot, rake, payout int64) {
	pot = 2 * stakeCents
	rake = ceilDiv(pot*rakePercent, 100)
	payout = pot - rake
	return pot, rake, payout
}

// ceilDiv é a divisão inteira com arredondamento para cima (numerador >= 0)
func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}
