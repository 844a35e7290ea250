// Package api provides the read-only HTTP surface for inspecting configured
// strategies. Full CRUD over strategies is out of scope (spec.md §1); this
// is a thin listing endpoint layered onto the worker's store.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"signalengine/internal/model"
)

// NewRouter builds the read-only strategy listing surface backed by store.
func NewRouter(store model.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/strategies", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		strategies, err := store.ListStrategies(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, strategies)
	})

	mux.HandleFunc("/api/v1/strategies/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/strategies/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid strategy id", http.StatusBadRequest)
			return
		}
		strategy, err := store.GetStrategy(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, strategy)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
