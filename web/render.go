package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// Renderer is the rendering collaborator: given a view name and a data
// context, write the page. No failure path is surfaced to the caller.
type Renderer interface {
	Render(w http.ResponseWriter, view string, data map[string]any)
}

// TemplateRenderer renders html/template views. The embedded defaults are
// deliberately bare; point dir at your own templates to replace them.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer(dir string) (*TemplateRenderer, error) {
	var t *template.Template
	var err error
	if dir != "" {
		t, err = template.ParseGlob(filepath.Join(dir, "*.html"))
	} else {
		t, err = template.ParseFS(defaultTemplates, "templates/*.html")
	}
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

func (tr *TemplateRenderer) Render(w http.ResponseWriter, view string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tr.templates.ExecuteTemplate(w, view+".html", data); err != nil {
		slog.Error("rendering view", "view", view, "err", err)
	}
}
