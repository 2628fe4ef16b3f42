// Package render binds store query results into the named page
// templates.
package render

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/openletter/petitiond/internal/petition"
)

// Page names the renderer serves. Each must exist as <name>.html in the
// template directory.
const (
	PageIndex   = "index"
	PageSuccess = "success"
	PagePrivacy = "privacy"
)

// IndexData is the binding for the index page.
type IndexData struct {
	Signatories []petition.DisplaySignatory
	Quotes      []petition.DisplaySignatory
}

// Renderer holds the page templates parsed once at startup. It is
// immutable after construction and safe for concurrent use.
type Renderer struct {
	templates *template.Template
}

// New parses every *.html file under dir and verifies the three page
// templates are present.
func New(dir string) (*Renderer, error) {
	if dir == "" {
		return nil, fmt.Errorf("templates.dir is required")
	}
	tmpl, err := template.ParseGlob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range []string{PageIndex, PageSuccess, PagePrivacy} {
		if tmpl.Lookup(name+".html") == nil {
			return nil, fmt.Errorf("template %q not found in %s", name, dir)
		}
	}
	return &Renderer{templates: tmpl}, nil
}

// Render executes the named page template against data and returns the
// HTML text. Unknown names and execution failures are reported as
// errors; the caller surfaces them as a 500.
func (r *Renderer) Render(name string, data any) (string, error) {
	tmpl := r.templates.Lookup(name + ".html")
	if tmpl == nil {
		return "", fmt.Errorf("render %q: template not found", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return sb.String(), nil
}
