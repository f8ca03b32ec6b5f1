package generate

import (
	"sort"
	"strings"

	"applique-backend/internal/attachments"
	"applique-backend/internal/shared/util"
	"applique-backend/internal/templates"
)

// Slot ids for the two template documents. Attachments use their file name.
const (
	SlotCV          = "cv"
	SlotCoverLetter = "cover_letter"
)

// Request asks for one generated package. It is not modified by the service.
type Request struct {
	CVFile          string   `json:"cvFile,omitempty"`
	CoverLetterFile string   `json:"coverLetterFile,omitempty"`
	Attachments     []string `json:"attachments,omitempty"`
	// Order is a permutation of the requested slots. Empty means CV, cover
	// letter, then attachments as listed.
	Order           []string          `json:"order,omitempty"`
	Combine         bool              `json:"combine"`
	PostingID       string            `json:"postingId,omitempty"`
	CustomVariables map[string]string `json:"customVariables,omitempty"`
}

type slotKind int

const (
	kindTemplate slotKind = iota
	kindAttachment
)

// slot is one validated document of a request in final page order.
type slot struct {
	id   string
	kind slotKind
	ref  templates.Ref
	name string
}

func (s slot) document() string {
	if s.kind == kindTemplate {
		return s.ref.String()
	}
	return "attachment/" + s.name
}

// plan validates req and returns its slots in output order.
func plan(req Request) ([]slot, error) {
	byID := map[string]slot{}
	var defaultOrder []string

	add := func(s slot) error {
		if _, dup := byID[s.id]; dup {
			return invalid("document %q requested twice", s.id)
		}
		byID[s.id] = s
		defaultOrder = append(defaultOrder, s.id)
		return nil
	}

	if name := strings.TrimSpace(req.CVFile); name != "" {
		ref, err := templates.NewRef(templates.KindCV, name)
		if err != nil {
			return nil, invalid("cvFile: %v", err)
		}
		_ = add(slot{id: SlotCV, kind: kindTemplate, ref: ref})
	}
	if name := strings.TrimSpace(req.CoverLetterFile); name != "" {
		ref, err := templates.NewRef(templates.KindCoverLetter, name)
		if err != nil {
			return nil, invalid("coverLetterFile: %v", err)
		}
		_ = add(slot{id: SlotCoverLetter, kind: kindTemplate, ref: ref})
	}
	for _, name := range req.Attachments {
		if err := attachments.ValidateName(name); err != nil {
			return nil, invalid("attachments: %v", err)
		}
		if err := add(slot{id: name, kind: kindAttachment, name: name}); err != nil {
			return nil, err
		}
	}

	if len(byID) == 0 {
		return nil, invalid("at least one document must be selected")
	}
	if !req.Combine && len(byID) > 1 {
		return nil, invalid("%d documents selected; set combine to merge them", len(byID))
	}

	order := defaultOrder
	if len(req.Order) > 0 {
		if len(req.Order) != len(byID) {
			return nil, invalid("order must list each requested document exactly once")
		}
		seen := map[string]bool{}
		for _, id := range req.Order {
			if _, ok := byID[id]; !ok || seen[id] {
				return nil, invalid("order must list each requested document exactly once")
			}
			seen[id] = true
		}
		order = req.Order
	}

	out := make([]slot, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// fingerprint hashes the parts of req that determine the output.
func fingerprint(req Request, slots []slot) string {
	parts := []string{"v1", strings.TrimSpace(req.PostingID)}
	if req.Combine {
		parts = append(parts, "combine")
	}
	for _, s := range slots {
		parts = append(parts, s.document())
	}
	keys := make([]string, 0, len(req.CustomVariables))
	for k := range req.CustomVariables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k, req.CustomVariables[k])
	}
	return util.Fingerprint(parts...)
}
