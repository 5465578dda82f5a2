package idem

import "fmt"

// Chaves de idempotência determinísticas no formato
// <domínio>:<matchId>:<operação>[:<userId>].
// A mesma operação lógica produz sempre a mesma chave, então reexecutar uma
// liquidação inteira nunca duplica efeito financeiro.

// PayoutKey é a chave do crédito do prêmio ao vencedor.
func PayoutKey(matchID, winnerID string) string {
	return fmt.Sprintf("settlement:%s:payout:%s", matchID, winnerID)
}

// RefundKey é a chave do reembolso de empate na liquidação automática.
func RefundKey(matchID, userID string) string {
	return fmt.Sprintf("settlement:%s:refund:%s", matchID, userID)
}

// VoidRefundKey é a chave do reembolso quando a partida é anulada por cancelamento.
func VoidRefundKey(matchID, userID string) string {
	return fmt.Sprintf("void:%s:refund:%s", matchID, userID)
}

// ManualPayoutKey é a chave do crédito em liquidação manual com vencedor forçado.
func ManualPayoutKey(matchID, winnerID string) string {
	return fmt.Sprintf("manual:%s:payout:%s", matchID, winnerID)
}

// ManualRefundKey é a chave do reembolso em anulação manual.
func ManualRefundKey(matchID, userID string) string {
	return fmt.Sprintf("manual:%s:refund:%s", matchID, userID)
}
