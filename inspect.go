package declwire

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewInspectHandler serves read-only JSON views of the manager's registry:
//
//	GET /modules                      module names with component counts
//	GET /modules/{module}/components  components of one module
//	GET /components                   everything, grouped by module
func NewInspectHandler(cm *ComponentManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/modules", func(w http.ResponseWriter, req *http.Request) {
		type moduleSummary struct {
			Module     string `json:"module"`
			Components int    `json:"components"`
		}
		snapshot := cm.Snapshot()
		summaries := make([]moduleSummary, 0, len(snapshot))
		for _, mc := range snapshot {
			summaries = append(summaries, moduleSummary{
				Module:     mc.Module,
				Components: len(mc.Components),
			})
		}
		writeJSON(w, summaries)
	})

	r.Get("/modules/{module}/components", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "module")
		for _, mc := range cm.Snapshot() {
			if mc.Module == name {
				writeJSON(w, mc)
				return
			}
		}
		http.Error(w, "module not loaded", http.StatusNotFound)
	})

	r.Get("/components", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, cm.Snapshot())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
