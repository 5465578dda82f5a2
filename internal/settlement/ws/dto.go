package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MatchID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	MatchID string `json:"matchId"` // requerido em subscribe/unsubscribe
}

// SettlementUpdate representa o desfecho de uma partida enviado aos clientes
// inscritos no matchId correspondente
type SettlementUpdate struct {
	MatchID string      `json:"matchId"`
	Payload interface{} `json:"payload"`
}
