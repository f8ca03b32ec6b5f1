package templates

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("template not found")
	ErrInvalidKind = errors.New("invalid template kind")
	ErrInvalidName = errors.New("invalid template name")
	ErrMalformed   = errors.New("malformed template")
)

// ResolutionError reports a template or ancestor that could not be found or parsed.
type ResolutionError struct {
	Ref Ref
	// Missing names the template that was absent; it differs from Ref.Name
	// when an ancestor is missing.
	Missing string
	Reason  string
	Err     error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Missing != "" && e.Missing != e.Ref.Name:
		return fmt.Sprintf("resolve %s: parent %q not found", e.Ref, e.Missing)
	case e.Reason != "":
		return fmt.Sprintf("resolve %s: %s", e.Ref, e.Reason)
	default:
		return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CycleError reports an inheritance chain that loops back on itself.
type CycleError struct {
	Ref   Ref
	Chain []Link
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Chain))
	for _, l := range e.Chain {
		parts = append(parts, string(l.Tier)+":"+l.Name)
	}
	return fmt.Sprintf("resolve %s: inheritance cycle %s", e.Ref, strings.Join(parts, " -> "))
}
