package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"autotrader/src/analytics"
	"autotrader/src/model"
	"autotrader/src/repository"

	logger "github.com/sirupsen/logrus"
)

type tradeEventLister interface {
	List(ctx context.Context, filter repository.TradeEventFilter) ([]model.TradeEvent, error)
}

// parseFilter reads user_id, symbol, status, from and to. It writes a 400
// and returns false on invalid input.
func parseFilter(w http.ResponseWriter, r *http.Request) (repository.TradeEventFilter, bool) {
	q := r.URL.Query()
	filter := repository.TradeEventFilter{
		UserID: strings.TrimSpace(q.Get("user_id")),
		Symbol: strings.TrimSpace(q.Get("symbol")),
	}
	if filter.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return filter, false
	}

	if status := strings.ToUpper(strings.TrimSpace(q.Get("status"))); status != "" {
		s := model.OrderStatus(status)
		if !s.Final() && s != model.OrderStatusSubmitted {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return filter, false
		}
		filter.Status = s
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid "+p.name, http.StatusBadRequest)
			return filter, false
		}
		*p.dst = &parsed
	}
	return filter, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// TradeEventsHandler lists the recorded trade events of a user.
func TradeEventsHandler(repo tradeEventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, ok := parseFilter(w, r)
		if !ok {
			return
		}
		events, err := repo.List(r.Context(), filter)
		if err != nil {
			logger.WithError(err).Error("failed to list trade events")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []model.TradeEvent{}
		}
		writeJSON(w, events)
	}
}

// PerformanceHandler summarises the closed round trips of a user.
func PerformanceHandler(repo tradeEventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, ok := parseFilter(w, r)
		if !ok {
			return
		}
		filter.Status = model.OrderStatusFilled
		events, err := repo.List(r.Context(), filter)
		if err != nil {
			logger.WithError(err).Error("failed to load trade events for performance")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, analytics.Summarize(events))
	}
}
