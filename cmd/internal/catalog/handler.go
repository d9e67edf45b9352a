package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type listResponse struct {
	Success    bool     `json:"success"`
	Category   string   `json:"category"`
	Query      string   `json:"query,omitempty"`
	Count      int      `json:"count"`
	Courses    []Course `json:"courses"`
	Categories []string `json:"categories"`
}

// Handler serves GET /api/courses?category=&q=.
type Handler struct {
	log     *slog.Logger
	catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, c *Catalog) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, catalog: c}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "Method not allowed"})
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		category = FilterAll
	}
	query := r.URL.Query().Get("q")

	courses := search(h.catalog.Filter(category), query)
	if courses == nil {
		courses = []Course{}
	}

	h.log.Debug("catalog.list", "category", category, "q", query, "count", len(courses))
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Category:   category,
		Query:      query,
		Count:      len(courses),
		Courses:    courses,
		Categories: h.catalog.Categories(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
