package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	"strings"
	texttemplate "text/template"
)

var ErrTemplateMissing = errors.New("template missing")

// Template suffixes rendered for every message
const (
	SuffixSubject = "_subject.txt"
	SuffixText    = "_message.txt"
	SuffixHTML    = "_message.html"
)

// Renderer renders a named template against a context mapping
type Renderer interface {
	Render(ctx context.Context, prefix, suffix string, data map[string]interface{}) (string, error)
}

// FSRenderer renders templates from a file system. HTML templates get
// contextual escaping, text templates do not.
type FSRenderer struct {
	fsys fs.FS
}

// NewFSRenderer creates a renderer over the given file system
func NewFSRenderer(fsys fs.FS) *FSRenderer {
	return &FSRenderer{fsys: fsys}
}

// NewDirRenderer creates a renderer over a directory on disk
func NewDirRenderer(dir string) *FSRenderer {
	return &FSRenderer{fsys: os.DirFS(dir)}
}

// Render renders the template named prefix+suffix. A missing template file
// is reported as ErrTemplateMissing.
func (r *FSRenderer) Render(ctx context.Context, prefix, suffix string, data map[string]interface{}) (string, error) {
	name := prefix + suffix
	content, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, ErrTemplateMissing)
		}
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if strings.HasSuffix(suffix, ".html") {
		tmpl, err := htmltemplate.New(name).Parse(string(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("failed to render template %s: %w", name, err)
		}
		return buf.String(), nil
	}

	tmpl, err := texttemplate.New(name).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
