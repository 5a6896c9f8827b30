package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const (
	LeftDelim  = "${{"
	RightDelim = "}}"
)

var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrUnterminated    = errors.New("unterminated reference")
	ErrEmptyReference  = errors.New("empty reference")
)

// RenderError reports a reference that could not be rendered.
type RenderError struct {
	Expr string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s%s%s: %v", LeftDelim, e.Expr, RightDelim, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Render substitutes every ${{ ... }} reference in input.
// Text outside the delimiters is copied verbatim.
func (ns Namespace) Render(input string) (string, error) {
	var b strings.Builder
	b.Grow(len(input))

	rest := input
	for {
		i := strings.Index(rest, LeftDelim)
		if i < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:i])
		rest = rest[i+len(LeftDelim):]

		j := strings.Index(rest, RightDelim)
		if j < 0 {
			return "", &RenderError{Expr: truncate(rest, 32), Err: ErrUnterminated}
		}
		expr := rest[:j]
		rest = rest[j+len(RightDelim):]

		val, err := ns.eval(expr)
		if err != nil {
			return "", &RenderError{Expr: expr, Err: err}
		}
		b.WriteString(val)
	}
}

// eval resolves "path" or "path | fn args | fn ...".
func (ns Namespace) eval(expr string) (string, error) {
	name, pipeline, piped := strings.Cut(expr, "|")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyReference
	}

	val, ok := ns[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVariable, name)
	}
	if !piped {
		return val, nil
	}

	tpl, err := pipelineTemplate(strings.TrimSpace(pipeline))
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tpl.Execute(&out, struct{ Value string }{Value: val}); err != nil {
		return "", err
	}
	return out.String(), nil
}

var (
	funcsOnce sync.Once
	funcs     template.FuncMap
	pipelines sync.Map // pipeline source -> *template.Template
)

// funcMap is sprig without access to the process environment.
func funcMap() template.FuncMap {
	funcsOnce.Do(func() {
		funcs = sprig.TxtFuncMap()
		delete(funcs, "env")
		delete(funcs, "expandenv")
	})
	return funcs
}

func pipelineTemplate(pipeline string) (*template.Template, error) {
	if cached, ok := pipelines.Load(pipeline); ok {
		return cached.(*template.Template), nil
	}
	tpl, err := template.New("pipeline").
		Funcs(funcMap()).
		Option("missingkey=error").
		Parse("{{ .Value | " + pipeline + " }}")
	if err != nil {
		return nil, err
	}
	pipelines.Store(pipeline, tpl)
	return tpl, nil
}

// Secret renders a webhook secret with only event.type bound.
// Any render failure falls back to the literal secret.
func Secret(secret, eventType string) string {
	ns := Namespace{EventTypeVar: eventType}
	rendered, err := ns.Render(secret)
	if err != nil {
		return secret
	}
	return rendered
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
