package handler

import (
	"net/http"

	"autotrader/src/executors"

	"github.com/go-chi/chi/v5"
)

type statusLister interface {
	Statuses(userID string) []executors.Status
}

// LoopsHandler lists the trading tasks, optionally of one user given by the
// userID route parameter or the user_id query parameter.
func LoopsHandler(sup statusLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			userID = r.URL.Query().Get("user_id")
		}
		writeJSON(w, sup.Statuses(userID))
	}
}
