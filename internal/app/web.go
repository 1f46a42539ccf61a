package app

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/relabs-tech/motion_link/internal/journal"
	"github.com/relabs-tech/motion_link/internal/logger"
)

const (
	defaultRecent = 50
	maxRecent     = 1000
)

// RecentSource lists the latest journal entries, newest first.
type RecentSource interface {
	Recent(n int) ([]journal.Entry, error)
}

// JournalHandler serves GET /api/journal?n=N as a JSON array.
func JournalHandler(src RecentSource) http.Handler {
	log := logger.Component("web")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		n := defaultRecent
		if q := r.URL.Query().Get("n"); q != "" {
			v, err := strconv.Atoi(q)
			if err != nil || v <= 0 {
				http.Error(w, "n must be a positive integer", http.StatusBadRequest)
				return
			}
			n = min(v, maxRecent)
		}

		entries, err := src.Recent(n)
		if err != nil {
			logger.ErrorWithCode(err).Str("component", "web").Msg("journal query failed")
			http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Warn().Err(err).Msg("json encode error")
		}
	})
}
