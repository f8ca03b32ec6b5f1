package generate

import (
	"context"
	"strings"

	"applique-backend/internal/compose"
	"applique-backend/internal/templates"
	"applique-backend/internal/variables"
)

// PreviewRequest selects one template and the variables to fill it with.
type PreviewRequest struct {
	Kind            templates.Kind    `json:"kind"`
	Name            string            `json:"name"`
	PostingID       string            `json:"postingId,omitempty"`
	CustomVariables map[string]string `json:"customVariables,omitempty"`
}

// Preview is a composed template that was not compiled.
type Preview struct {
	Ref          templates.Ref     `json:"ref"`
	Tier         templates.Tier    `json:"tier"`
	Chain        []templates.Link  `json:"chain"`
	Content      string            `json:"content"`
	Placeholders []compose.Binding `json:"placeholders"`
	Variables    variables.Map     `json:"variables"`
}

// Preview resolves and composes a single template without compiling it.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (Preview, error) {
	kind, err := templates.ParseKind(string(req.Kind))
	if err != nil {
		return Preview{}, invalid("kind: %v", err)
	}
	ref, err := templates.NewRef(kind, strings.TrimSpace(req.Name))
	if err != nil {
		return Preview{}, invalid("name: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}

	vars, err := s.variables(ctx, req.PostingID, req.CustomVariables)
	if err != nil {
		return Preview{}, err
	}
	doc, err := s.Templates.Resolve(ctx, ref)
	if err != nil {
		return Preview{}, resolveFailure(ref.String(), err)
	}
	content, err := compose.Compose(doc, vars)
	if err != nil {
		return Preview{}, &Failure{Stage: StageRender, Document: ref.String(), Diagnostics: err.Error(), Err: err}
	}
	bindings, err := compose.Bindings(doc.Content, vars)
	if err != nil {
		return Preview{}, &Failure{Stage: StageRender, Document: ref.String(), Diagnostics: err.Error(), Err: err}
	}
	if bindings == nil {
		bindings = []compose.Binding{}
	}
	return Preview{
		Ref:          ref,
		Tier:         doc.Tier,
		Chain:        doc.Chain,
		Content:      content,
		Placeholders: bindings,
		Variables:    vars,
	}, nil
}
