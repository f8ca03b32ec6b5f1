// Package compose fills \newcommand placeholders in resolved templates.
//
// A placeholder is a LaTeX definition of the form
//
//	\newcommand{\companyname}{Default Company}
//
// A variable matches it when its key equals the command name, or equals it
// once underscores are removed (company_name matches \companyname). Matched
// values are LaTeX-escaped and replace the default; unmatched definitions
// are left byte-for-byte as written.
package compose

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"applique-backend/internal/templates"
	"applique-backend/internal/variables"
)

const directive = `\newcommand{\`

// RenderError reports a placeholder definition that cannot be parsed.
type RenderError struct {
	Ref    templates.Ref
	Name   string
	Line   int
	Reason string
}

func (e *RenderError) Error() string {
	where := fmt.Sprintf("line %d", e.Line)
	if e.Ref.Name != "" {
		where = e.Ref.String() + ":" + fmt.Sprint(e.Line)
	}
	return fmt.Sprintf("render %s: \\%s: %s", where, e.Name, e.Reason)
}

// Placeholder is one substitutable definition found in a template.
type Placeholder = templates.Placeholder

// Compose substitutes vars into the resolved document. It has no side
// effects and returns identical output for identical input.
func Compose(doc templates.Document, vars variables.Map) (string, error) {
	out, err := Substitute(doc.Content, vars)
	if err != nil {
		var rerr *RenderError
		if errors.As(err, &rerr) {
			rerr.Ref = doc.Ref
		}
		return "", err
	}
	return out, nil
}

// Substitute fills placeholders in raw template content.
func Substitute(content string, vars variables.Map) (string, error) {
	idx := newIndex(vars)
	var b strings.Builder
	b.Grow(len(content))
	err := scan(content, func(d definition) {
		b.WriteString(content[d.copyFrom:d.bodyStart])
		if val, ok := idx.lookup(d.name); ok {
			b.WriteString(EscapeLaTeX(val))
		} else {
			b.WriteString(content[d.bodyStart:d.bodyEnd])
		}
	}, func(from int) {
		b.WriteString(content[from:])
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholders lists the definitions in content in document order.
func Placeholders(content string) ([]Placeholder, error) {
	var out []Placeholder
	err := scan(content, func(d definition) {
		out = append(out, Placeholder{
			Name:    d.name,
			Default: content[d.bodyStart:d.bodyEnd],
			Line:    lineAt(content, d.start),
		})
	}, nil)
	return out, err
}

// Binding pairs a placeholder with the variable that fills it, if any.
type Binding struct {
	Placeholder
	Variable string `json:"variable,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Bindings reports which variable, if any, fills each placeholder in content.
func Bindings(content string, vars variables.Map) ([]Binding, error) {
	placeholders, err := Placeholders(content)
	if err != nil {
		return nil, err
	}
	idx := newIndex(vars)
	out := make([]Binding, 0, len(placeholders))
	for _, p := range placeholders {
		b := Binding{Placeholder: p}
		if k, ok := idx.key(p.Name); ok {
			b.Variable, b.Value = k, vars[k]
		}
		out = append(out, b)
	}
	return out, nil
}

type definition struct {
	name      string
	start     int // offset of the backslash
	copyFrom  int // first byte not yet emitted before this definition
	bodyStart int // first byte inside the default's braces
	bodyEnd   int // offset of the default's closing brace
}

// scan calls emit for every parsable definition and tail with the offset of
// the first byte after the last one.
func scan(content string, emit func(definition), tail func(int)) error {
	pos := 0
	search := 0
	for {
		j := strings.Index(content[search:], directive)
		if j < 0 {
			break
		}
		start := search + j
		nameStart := start + len(directive)
		k := nameStart
		for k < len(content) && isCommandLetter(content[k]) {
			k++
		}
		if k == nameStart || k >= len(content) || content[k] != '}' {
			search = nameStart
			continue
		}
		name := content[nameStart:k]
		k++
		// macros with arguments or a bare-token body are not placeholders
		if k >= len(content) || content[k] != '{' {
			search = k
			continue
		}
		end, ok := matchBrace(content, k)
		if !ok {
			return &RenderError{Name: name, Line: lineAt(content, start), Reason: "unbalanced braces in default value"}
		}
		emit(definition{name: name, start: start, copyFrom: pos, bodyStart: k + 1, bodyEnd: end})
		pos = end
		search = end + 1
	}
	if tail != nil {
		tail(pos)
	}
	return nil
}

// matchBrace returns the offset of the brace closing the one at open.
// Escaped braces and %-comments are skipped.
func matchBrace(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '%':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func isCommandLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '@'
}

func lineAt(s string, offset int) int {
	return strings.Count(s[:offset], "\n") + 1
}

// index resolves command names to variable values.
type index struct {
	vars     variables.Map
	stripped map[string]string
}

func newIndex(vars variables.Map) index {
	stripped := map[string]string{}
	// sorted so the first key wins deterministically on collisions
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := strings.ReplaceAll(k, "_", "")
		if _, taken := stripped[s]; !taken {
			stripped[s] = k
		}
	}
	return index{vars: vars, stripped: stripped}
}

func (x index) lookup(name string) (string, bool) {
	k, ok := x.key(name)
	if !ok {
		return "", false
	}
	return x.vars[k], true
}

// key returns the variable name that fills the command, exact match first.
func (x index) key(name string) (string, bool) {
	if v, ok := x.vars[name]; ok && v != "" {
		return name, true
	}
	if k, ok := x.stripped[name]; ok && x.vars[k] != "" {
		return k, true
	}
	return "", false
}
