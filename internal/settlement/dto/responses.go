package dto

type EligibilityResponse struct {
	MatchID    string `json:"matchId"`
	Decision   string `json:"decision"` // "settle" | "void" | "wait"
	Completed  int    `json:"completed"`
	Cancelled  int    `json:"cancelled"`
	Postponed  int    `json:"postponed"`
	InProgress int    `json:"inProgress"`
	Total      int    `json:"total"`
}

type AckResponse struct {
	Status string `json:"status"`
}
