package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketsim/internal/market"
	"marketsim/internal/trading"
	"marketsim/pkg/storage/database"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps domain errors to status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, trading.ErrInvalidOrder), errors.Is(err, market.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrNotFound), errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !s.db.IsHealthy(r.Context()) {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status, "service": "marketsim"})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.market.Quote(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	period := r.URL.Query().Get("period")
	if period == "" {
		period = string(market.DefaultPeriod)
	}

	points, err := s.market.Chart(r.Context(), ticker, period)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticker": ticker,
		"period": period,
		"data":   points,
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var order trading.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order body: "+err.Error())
		return
	}

	result, err := s.trading.PlaceOrder(r.Context(), userID(r), order)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !result.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.trading.PortfolioSummary(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	trades, err := s.trading.TradeHistory(r.Context(), userID(r), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	account, err := s.trading.Reset(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type alertRequest struct {
	Symbol        string           `json:"symbol"`
	HighThreshold *decimal.Decimal `json:"high_threshold,omitempty"`
	LowThreshold  *decimal.Decimal `json:"low_threshold,omitempty"`
	NotifyTarget  string           `json:"notify_target"`
}

type alertResponse struct {
	ID             uint             `json:"id"`
	Symbol         string           `json:"symbol"`
	HighThreshold  *decimal.Decimal `json:"high_threshold,omitempty"`
	LowThreshold   *decimal.Decimal `json:"low_threshold,omitempty"`
	NotifyTarget   string           `json:"notify_target"`
	Active         bool             `json:"active"`
	TriggerSide    *string          `json:"trigger_side,omitempty"`
	TriggeredPrice *decimal.Decimal `json:"triggered_price,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	TriggeredAt    *time.Time       `json:"triggered_at,omitempty"`
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

func toAlertResponse(a database.AlertRecord) alertResponse {
	resp := alertResponse{
		ID:             a.ID,
		Symbol:         a.Symbol,
		HighThreshold:  nullable(a.HighThreshold),
		LowThreshold:   nullable(a.LowThreshold),
		NotifyTarget:   a.NotifyTarget,
		Active:         a.Active,
		TriggerSide:    a.TriggerSide,
		TriggeredPrice: nullable(a.TriggeredPrice),
		CreatedAt:      a.CreatedAt.UTC(),
		TriggeredAt:    a.TriggeredAt,
	}
	return resp
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert body: "+err.Error())
		return
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	switch {
	case req.Symbol == "":
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	case req.NotifyTarget == "":
		writeError(w, http.StatusBadRequest, "notify_target is required")
		return
	case req.HighThreshold == nil && req.LowThreshold == nil:
		writeError(w, http.StatusBadRequest, "at least one of high_threshold and low_threshold is required")
		return
	}

	alert := database.AlertRecord{
		UserID:       userID(r),
		Symbol:       req.Symbol,
		NotifyTarget: req.NotifyTarget,
	}
	if req.HighThreshold != nil {
		alert.HighThreshold = decimal.NewNullDecimal(*req.HighThreshold)
	}
	if req.LowThreshold != nil {
		alert.LowThreshold = decimal.NewNullDecimal(*req.LowThreshold)
	}
	if err := s.db.CreateAlert(r.Context(), &alert); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(alert))
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.ListUserAlerts(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	alerts := make([]alertResponse, 0, len(records))
	for _, a := range records {
		alerts = append(alerts, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, alerts)
}
