package emit

import (
	"errors"
	"io"
	"strings"
)

// Part is one piece of a parsed Template: either a literal run or a
// hole referencing a property by label.
type Part struct {
	Literal   string
	Label     string
	Formatter string
	IsHole    bool
}

// Template is a parsed "literal {hole} literal" pattern that renders
// against a Props binding.
type Template []Part

// Literal constructs a template with no holes.
func Literal(s string) Template {
	if s == "" {
		return nil
	}
	return Template{{Literal: s}}
}

// ErrInvalidTemplate is returned by ParseTemplate for unbalanced holes.
var ErrInvalidTemplate = errors.New("emit: invalid template")

// ParseTemplate parses standard "{…}" hole syntax, with "{{" and "}}"
// as escapes for literal braces.
func ParseTemplate(s string) (Template, error) {
	var (
		parts   Template
		lit     strings.Builder
		i       int
		n       = len(s)
	)
	flushLit := func() {
		if lit.Len() > 0 {
			parts = append(parts, Part{Literal: lit.String()})
			lit.Reset()
		}
	}
	for i < n {
		c := s[i]
		switch c {
		case '{':
			if i+1 < n && s[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil, ErrInvalidTemplate
			}
			hole := s[i+1 : i+end]
			flushLit()
			label, formatter, _ := strings.Cut(hole, ":")
			parts = append(parts, Part{IsHole: true, Label: label, Formatter: formatter})
			i += end + 1
		case '}':
			if i+1 < n && s[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, ErrInvalidTemplate
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flushLit()
	return parts, nil
}

// MustParseTemplate panics on a malformed template; intended for
// package-level constants built from literal strings.
func MustParseTemplate(s string) Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Render walks the template's parts against props: literals are
// written as-is; holes look up Label in props and write the found
// value's String form; a missing hole is rendered as "{label}". A
// hole's Formatter is kept in Parts but not applied: it does not
// change how the value is written.
func (t Template) Render(w io.Writer, props Props) error {
	for _, p := range t {
		if !p.IsHole {
			if _, err := io.WriteString(w, p.Literal); err != nil {
				return err
			}
			continue
		}
		v, ok := Get(props, p.Label)
		if !ok {
			if _, err := io.WriteString(w, "{"+p.Label+"}"); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, v.String()); err != nil {
			return err
		}
	}
	return nil
}

// RenderString is a convenience wrapper around Render.
func (t Template) RenderString(props Props) string {
	var sb strings.Builder
	_ = t.Render(&sb, props)
	return sb.String()
}

// Parts returns the template's parsed parts for structured consumers.
func (t Template) Parts() []Part { return t }
