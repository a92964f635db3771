// Package templates embeds the text templates used to generate the deploy
// bundle and reverse-proxy snippets.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"text/template"
)

//go:embed files
var embedded embed.FS

// TemplateFS is rooted at the files directory, so paths look like
// "proxy/nginx.conf.tmpl".
var TemplateFS fs.FS = mustSub(embedded, "files")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("templates: %v", err))
	}
	return sub
}

// Templates provides access to all embedded templates.
type Templates struct {
	fs fs.FS
}

// New creates a new Templates instance over the embedded files.
func New() *Templates {
	return &Templates{
		fs: TemplateFS,
	}
}

// Get retrieves a template by path.
// Path should be like "proxy/nginx.conf.tmpl"
func (t *Templates) Get(path string) (*template.Template, error) {
	content, err := fs.ReadFile(t.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	tmpl, err := template.New(path).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}

	return tmpl, nil
}

// Render executes the template at path with data.
func (t *Templates) Render(path string, data any) (string, error) {
	tmpl, err := t.Get(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", path, err)
	}
	return buf.String(), nil
}

// ReadFile reads a file verbatim, without template processing.
func (t *Templates) ReadFile(path string) (string, error) {
	content, err := fs.ReadFile(t.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}

	return string(content), nil
}
