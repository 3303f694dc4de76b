package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// Health reports whether the API and its database are reachable.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{OK: false, Status: "down"})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{OK: true, Status: "up"})
	}
}
