package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed templates
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Engine renders the embedded HTML templates. It satisfies fiber.Views.
//
// A view named "products.edit" lives in templates/products/edit.html;
// "products" resolves to templates/products/index.html. Every page is
// wrapped in the layout.
type Engine struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// New creates an engine and parses all templates.
func New() (*Engine, error) {
	e := &Engine{}
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e, nil
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

// Load parses every page template together with the layout.
func (e *Engine) Load() error {
	templates := make(map[string]*template.Template)

	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == layoutFile || path.Ext(p) != ".html" {
			return nil
		}

		name := viewName(p)
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, layoutFile, p)
		if err != nil {
			return fmt.Errorf("parse view %s: %w", name, err)
		}
		templates[name] = tmpl
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.templates = templates
	e.mu.Unlock()
	return nil
}

// Render executes the named view into w. Layout arguments are ignored; the
// shared layout is always applied.
func (e *Engine) Render(w io.Writer, name string, binding interface{}, _ ...string) error {
	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", binding)
}

func viewName(p string) string {
	rel := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "index" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}
