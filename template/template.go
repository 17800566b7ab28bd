// Package template renders the package-manager-specific templates the
// build engine treats as an external collaborator (spec.md §1): deb
// control files, RPM spec files, PKGBUILDs, and the second-stage
// dependency-cached Dockerfile. Rendering itself — and any recipe YAML
// or Dockerfile authoring tooling around it — stays out of the engine's
// scope; the engine only consumes this interface.
package template

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"
)

// Renderer renders a named template against a data value, the contract
// the build pipeline depends on (TemplateRenderer in spec.md §1).
type Renderer interface {
	Render(name, body string, data interface{}) ([]byte, error)
}

// DefaultRenderer renders with the standard library's text/template, the
// same engine the teacher uses for its Dockerfile construction
// (pkg/build/commands rendering helpers) — no ecosystem templating
// library in the retrieval pack improves on it for small, single-pass
// control-file/spec-file rendering.
type DefaultRenderer struct{}

// NewDefaultRenderer returns a DefaultRenderer.
func NewDefaultRenderer() *DefaultRenderer {
	return &DefaultRenderer{}
}

// Render parses body as a text/template named name and executes it
// against data.
func (r *DefaultRenderer) Render(name, body string, data interface{}) ([]byte, error) {
	tpl, err := template.New(name).Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed parsing template %q", name)
	}
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, data); err != nil {
		return nil, errors.Wrapf(err, "failed executing template %q", name)
	}
	return buf.Bytes(), nil
}
