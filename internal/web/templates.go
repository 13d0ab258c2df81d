package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

//go:embed templates
var embedded embed.FS

// DefaultTemplates returns the template tree compiled into the binary.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// TemplateEngine handles HTML template rendering
type TemplateEngine struct {
	fsys  fs.FS
	pages map[string]*template.Template
}

// NewTemplateEngine creates a new template engine over fsys, which must hold
// layout files at its root and one file per page under pages/.
func NewTemplateEngine(fsys fs.FS) *TemplateEngine {
	return &TemplateEngine{fsys: fsys}
}

// Load parses the layout and every page. Each page gets its own clone of the
// layout so pages can define the same blocks.
func (te *TemplateEngine) Load() error {
	base, err := template.New("").Funcs(funcMap()).ParseFS(te.fsys, "*.html")
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(te.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		tmpl, err := base.Clone()
		if err != nil {
			return err
		}
		if tmpl, err = tmpl.ParseFS(te.fsys, file); err != nil {
			return fmt.Errorf("parse page %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".html")] = tmpl
	}

	te.pages = pages
	return nil
}

// Render renders a page inside the layout.
func (te *TemplateEngine) Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := te.pages[name]
	if !ok {
		return fmt.Errorf("template %q not loaded", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		// amount prints whole sums without a fraction, like 150 or 150.5
		"amount": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		"average": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 2, 64)
		},
	}
}
