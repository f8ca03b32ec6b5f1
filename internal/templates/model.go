package templates

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind groups templates that live in the same directory.
type Kind string

const (
	KindCV                  Kind = "cv"
	KindCoverLetter         Kind = "cover_letter"
	KindPersonalInformation Kind = "personal_information"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindCV, KindCoverLetter, KindPersonalInformation}

// ParseKind accepts the canonical kind or its directory name.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "cv", "cvs":
		return KindCV, nil
	case "cover_letter", "cover_letters":
		return KindCoverLetter, nil
	case "personal_information", "personal_info":
		return KindPersonalInformation, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

// Dir is the directory name used for the kind in both tiers.
func (k Kind) Dir() string {
	switch k {
	case KindCV:
		return "cvs"
	case KindCoverLetter:
		return "cover_letters"
	default:
		return string(k)
	}
}

// Ext is the file extension expected for the kind.
func (k Kind) Ext() string {
	if k == KindPersonalInformation {
		return ".txt"
	}
	return ".tex"
}

// Tier identifies where a template was found.
type Tier string

const (
	TierUser    Tier = "user"
	TierDefault Tier = "default"
)

// Ref identifies a template independent of tier.
type Ref struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.Name
}

// NewRef validates kind and name and appends the kind's extension when absent.
func NewRef(kind Kind, name string) (Ref, error) {
	switch kind {
	case KindCV, KindCoverLetter, KindPersonalInformation:
	default:
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	switch ext := filepath.Ext(name); ext {
	case "":
		name += kind.Ext()
	case kind.Ext():
	default:
		return Ref{}, fmt.Errorf("%w: %q must end in %s", ErrInvalidName, name, kind.Ext())
	}
	return Ref{Kind: kind, Name: name}, nil
}

// Link is one step in an inheritance chain.
type Link struct {
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}

// Document is a fully resolved template: the root-most skeleton rendered
// with the merged blocks of every ancestor. It is never persisted.
type Document struct {
	Ref     Ref
	Tier    Tier
	Content string
	Blocks  map[string]string
	// Chain runs from the requested template to the root-most ancestor.
	Chain []Link
}

// Entry describes one listed template name.
type Entry struct {
	Name       string `json:"name"`
	Tier       Tier   `json:"tier"`
	Customized bool   `json:"customized"`
	HasDefault bool   `json:"hasDefault"`
}

// Detail exposes both tiers of a single template.
type Detail struct {
	Ref            Ref    `json:"ref"`
	Tier           Tier   `json:"tier"`
	Content        string `json:"content"`
	DefaultContent string `json:"defaultContent,omitempty"`
	UserContent    string `json:"userContent,omitempty"`
	Customized     bool   `json:"customized"`
	HasDefault     bool   `json:"hasDefault"`
	// Placeholders lists the editable definitions of the resolved template.
	Placeholders []Placeholder `json:"placeholders"`
}

// Placeholder is one \newcommand definition a variable can fill.
type Placeholder struct {
	Name    string `json:"name"`
	Default string `json:"default"`
	Line    int    `json:"line"`
}

// PlaceholderFunc extracts placeholder definitions from template content.
type PlaceholderFunc func(content string) ([]Placeholder, error)

// ResetResult reports whether a reset removed a user override.
type ResetResult struct {
	Ref        Ref  `json:"ref"`
	Customized bool `json:"wasCustomized"`
}
