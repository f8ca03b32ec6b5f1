package templates

import (
	"fmt"
	"strings"
)

// RootBlock is the implicit block of a template that declares none.
const RootBlock = "root"

const directivePrefix = "%@"

// parentSpec is the target of an extends directive.
type parentSpec struct {
	name string
	// pin restricts lookup to one tier; empty means user first, then default.
	pin Tier
}

// segment is either literal text or a block slot in a skeleton.
type segment struct {
	text string
	slot string
}

type parsed struct {
	parent   *parentSpec
	blocks   map[string]string
	skeleton []segment
}

// parse splits a template into its skeleton, blocks, and optional parent.
// Directive lines are consumed and never appear in rendered output.
func parse(content string) (*parsed, error) {
	p := &parsed{blocks: map[string]string{}}

	var (
		text    strings.Builder
		body    strings.Builder
		current string
		inBlock bool
	)
	flushText := func() {
		if text.Len() > 0 {
			p.skeleton = append(p.skeleton, segment{text: text.String()})
			text.Reset()
		}
	}

	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		verb, arg, ok := directive(line)
		if !ok {
			if inBlock {
				body.WriteString(line)
			} else {
				text.WriteString(line)
			}
			continue
		}
		lineNo := i + 1
		switch verb {
		case "extends":
			if inBlock {
				return nil, malformed(lineNo, "extends inside block %q", current)
			}
			if p.parent != nil {
				return nil, malformed(lineNo, "duplicate extends")
			}
			spec, err := parseParent(arg)
			if err != nil {
				return nil, malformed(lineNo, "%v", err)
			}
			p.parent = spec
		case "block":
			if inBlock {
				return nil, malformed(lineNo, "block %q opened inside block %q", arg, current)
			}
			if arg == "" || strings.ContainsAny(arg, " \t") {
				return nil, malformed(lineNo, "block needs a single name")
			}
			if _, dup := p.blocks[arg]; dup {
				return nil, malformed(lineNo, "duplicate block %q", arg)
			}
			flushText()
			current, inBlock = arg, true
			body.Reset()
		case "endblock":
			if !inBlock {
				return nil, malformed(lineNo, "endblock without block")
			}
			if arg != "" && arg != current {
				return nil, malformed(lineNo, "endblock %q closes block %q", arg, current)
			}
			p.blocks[current] = body.String()
			p.skeleton = append(p.skeleton, segment{slot: current})
			inBlock = false
		}
	}
	if inBlock {
		return nil, malformed(len(lines), "block %q is never closed", current)
	}
	flushText()

	if len(p.blocks) == 0 && p.parent == nil {
		p.blocks[RootBlock] = content
		p.skeleton = []segment{{slot: RootBlock}}
	}
	return p, nil
}

func directive(line string) (verb, arg string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, directivePrefix) {
		return "", "", false
	}
	fields := strings.Fields(trimmed[len(directivePrefix):])
	if len(fields) == 0 {
		return "", "", false
	}
	switch verb = fields[0]; verb {
	case "extends", "block", "endblock":
		return verb, strings.Join(fields[1:], " "), true
	default:
		// other %@ lines are ordinary LaTeX comments
		return "", "", false
	}
}

func parseParent(arg string) (*parentSpec, error) {
	if arg == "" {
		return nil, fmt.Errorf("extends needs a template name")
	}
	spec := &parentSpec{name: arg}
	if tier, name, found := strings.Cut(arg, ":"); found {
		switch Tier(tier) {
		case TierUser, TierDefault:
			spec.pin, spec.name = Tier(tier), strings.TrimSpace(name)
		default:
			return nil, fmt.Errorf("unknown tier %q in extends", tier)
		}
	}
	if spec.name == "" {
		return nil, fmt.Errorf("extends needs a template name")
	}
	return spec, nil
}

func render(skeleton []segment, blocks map[string]string) string {
	var b strings.Builder
	for _, seg := range skeleton {
		if seg.slot != "" {
			b.WriteString(blocks[seg.slot])
			continue
		}
		b.WriteString(seg.text)
	}
	return b.String()
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
}
