package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/pvp-settlement-platform/internal/settlement/dto"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/edgecase"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/engine"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/orchestrator"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/repo"
	"github.com/radieske/pvp-settlement-platform/internal/settlement/ws"
)

// Settler define o núcleo de liquidação usado pelo handler HTTP
type Settler interface {
	Settle(ctx context.Context, matchID string) (*orchestrator.Result, error)
	CheckReadiness(ctx context.Context, matchID string) (*orchestrator.Readiness, error)
}

// EdgeCases define os fluxos de exceção expostos pela API
type EdgeCases interface {
	CancelEvent(ctx context.Context, eventID, reason string) error
	PostponeEvent(ctx context.Context, eventID string) error
	Eligibility(ctx context.Context, matchID string) (engine.EventClassification, error)
	ManualSettle(ctx context.Context, req edgecase.ManualRequest) error
}

// Server expõe a API REST de liquidação
type Server struct {
	log     *zap.Logger
	settler Settler
	edge    EdgeCases
	hub     *ws.Hub
}

// NewServer instancia o servidor HTTP de liquidação
func NewServer(log *zap.Logger, settler Settler, edge EdgeCases, hub *ws.Hub) *Server {
	return &Server{log: log, settler: settler, edge: edge, hub: hub}
}

// Router retorna o mux HTTP com as rotas da API de liquidação
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/settlements/settle", s.settle)        // POST
	mux.HandleFunc("/settlements/readiness", s.readiness)  // GET ?matchId=...
	mux.HandleFunc("/settlements/eligibility", s.eligibility) // GET ?matchId=...
	mux.HandleFunc("/settlements/manual/settle", s.manualSettle) // POST
	mux.HandleFunc("/settlements/manual/void", s.manualVoid)     // POST
	mux.HandleFunc("/events/cancel", s.cancelEvent)     // POST
	mux.HandleFunc("/events/postpone", s.postponeEvent) // POST
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}
	return mux
}

// settle dispara a liquidação de uma partida; seguro sob retry
func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" {
		http.Error(w, "matchId required", http.StatusBadRequest)
		return
	}
	res, err := s.settler.Settle(r.Context(), req.MatchID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, res)
}

// readiness responde se a partida está pronta para liquidar
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		http.Error(w, "matchId required", http.StatusBadRequest)
		return
	}
	res, err := s.settler.CheckReadiness(r.Context(), matchID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, res)
}

// eligibility devolve a classificação detalhada dos eventos da partida
func (s *Server) eligibility(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		http.Error(w, "matchId required", http.StatusBadRequest)
		return
	}
	cls, err := s.edge.Eligibility(r.Context(), matchID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.EligibilityResponse{
		MatchID:    matchID,
		Decision:   string(cls.Decision),
		Completed:  cls.Completed,
		Cancelled:  cls.Cancelled,
		Postponed:  cls.Postponed,
		InProgress: cls.InProgress + cls.Unknown,
		Total:      cls.Total,
	})
}

// manualSettle força um vencedor por ação administrativa
func (s *Server) manualSettle(w http.ResponseWriter, r *http.Request) {
	s.manual(w, r, true)
}

// manualVoid anula a partida por ação administrativa
func (s *Server) manualVoid(w http.ResponseWriter, r *http.Request) {
	s.manual(w, r, false)
}

func (s *Server) manual(w http.ResponseWriter, r *http.Request, withWinner bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.ManualSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" || req.ActorID == "" || req.ActorRole == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if withWinner && req.WinnerID == "" {
		http.Error(w, "winnerId required", http.StatusBadRequest)
		return
	}
	mreq := edgecase.ManualRequest{
		MatchID:       req.MatchID,
		ActorID:       req.ActorID,
		ActorRole:     edgecase.Role(req.ActorRole),
		Justification: req.Justification,
		IP:            clientIP(r),
		UserAgent:     r.UserAgent(),
	}
	if withWinner {
		mreq.WinnerID = req.WinnerID
	}
	if err := s.edge.ManualSettle(r.Context(), mreq); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AckResponse{Status: "ok"})
}

// cancelEvent marca o evento como cancelado e propaga para picks e partidas
func (s *Server) cancelEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.EventActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.EventID == "" {
		http.Error(w, "eventId required", http.StatusBadRequest)
		return
	}
	if err := s.edge.CancelEvent(r.Context(), req.EventID, req.Reason); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AckResponse{Status: "cancelled"})
}

// postponeEvent marca o evento como adiado e flaga as partidas afetadas
func (s *Server) postponeEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.EventActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.EventID == "" {
		http.Error(w, "eventId required", http.StatusBadRequest)
		return
	}
	if err := s.edge.PostponeEvent(r.Context(), req.EventID); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AckResponse{Status: "postponed"})
}

// fail mapeia a taxonomia de erros da liquidação para status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repo.ErrValidation), errors.Is(err, orchestrator.ErrNotEligible):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repo.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, edgecase.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		s.log.Error("settlement op failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
