// Package site renders the public pages.
package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"unileap/cmd/internal/catalog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names, also the template file stems.
const (
	PageHome    = "index"
	PageLogin   = "login"
	PageSignup  = "signup"
	PageCourses = "courses"
)

var pageTitles = map[string]string{
	PageHome:    "Home",
	PageLogin:   "Log in",
	PageSignup:  "Sign up",
	PageCourses: "Courses",
}

type pageData struct {
	Title      string
	Filter     string
	Courses    []catalog.Course
	Categories []string
}

// Site serves the HTML pages.
type Site struct {
	log     *slog.Logger
	catalog *catalog.Catalog
	pages   map[string]*template.Template
}

// New parses every page template once.
func New(log *slog.Logger, c *catalog.Catalog) (*Site, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Site{log: log, catalog: c, pages: make(map[string]*template.Template, len(pageTitles))}
	for name := range pageTitles {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", name, err)
		}
		s.pages[name] = t
	}
	return s, nil
}

// Page returns a handler rendering the named page.
func (s *Site) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Title: pageTitles[name]}
		if name == PageCourses {
			data.Filter = strings.TrimSpace(r.URL.Query().Get("category"))
			if data.Filter == "" {
				data.Filter = catalog.FilterAll
			}
			data.Courses = s.catalog.Filter(data.Filter)
			data.Categories = s.catalog.Categories()
		}
		s.render(w, name, data)
	}
}

func (s *Site) render(w http.ResponseWriter, name string, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Render fully before writing so a template error can still become a 500.
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("site.render.fail", "page", name, "err", err)
		http.Error(w, "Something went wrong!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
