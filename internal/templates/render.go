// Package templates renders the HTML fragments patched into the viewer.
//
// The default fragments are embedded. A fragments directory on disk
// overrides embedded templates of the same name and can be watched for
// changes during development.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// Renderer manages HTML fragment templates.
type Renderer struct {
	dir       string
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the embedded fragments plus any *.html files in dir. An empty
// dir uses the embedded fragments alone.
func New(dir string) (*Renderer, error) {
	tmpl, err := parse(dir)
	if err != nil {
		return nil, err
	}
	return &Renderer{dir: dir, templates: tmpl}, nil
}

func parse(dir string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(embedded, "fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded fragments: %w", err)
	}
	if dir == "" {
		return tmpl, nil
	}

	overrides := os.DirFS(dir)
	matches, err := fs.Glob(overrides, "*.html")
	if err != nil {
		return nil, fmt.Errorf("glob fragments in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return tmpl, nil
	}
	if tmpl, err = tmpl.ParseFS(overrides, matches...); err != nil {
		return nil, fmt.Errorf("parse fragments in %s: %w", dir, err)
	}
	return tmpl, nil
}

// Dir returns the override directory, or "" when only embedded fragments
// are used.
func (r *Renderer) Dir() string {
	return r.dir
}

// Has reports whether a template named name is defined.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.Lookup(name) != nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer. On error the buffer
// is left unchanged.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()

	var out bytes.Buffer
	if err := tmpl.ExecuteTemplate(&out, name, data); err != nil {
		return err
	}
	_, err := buf.Write(out.Bytes())
	return err
}

// Reload re-parses the templates. On error the previous set stays active.
func (r *Renderer) Reload() error {
	tmpl, err := parse(r.dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
