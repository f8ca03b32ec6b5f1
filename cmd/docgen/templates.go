package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"applique-backend/internal/templates"
)

func newTemplatesCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "List, inspect, customize and reset templates",
		Long: `Manage templates across the user and default tiers.

Kinds are cv, cover_letter and personal_information. Names without an
extension get the kind's extension (.tex, or .txt for personal_information).

Examples:
  docgen templates list cv
  docgen templates show cover_letter cover_letter --resolved
  docgen templates save cv cv.tex --file ./my-cv.tex
  docgen templates reset cv cv.tex`,
	}
	cmd.AddCommand(newTemplatesListCmd(s), newTemplatesShowCmd(s), newTemplatesSaveCmd(s), newTemplatesResetCmd(s))
	return cmd
}

func newTemplatesListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List templates of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := templates.ParseKind(args[0])
			if err != nil {
				return err
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := app.Templates.List(cmd.Context(), kind)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"kind": kind, "templates": entries})
			}
			if len(entries) == 0 {
				p.Line("no %s templates", kind)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, string(e.Tier), yesNo(e.Customized), yesNo(e.HasDefault)})
			}
			return p.Table([]string{"name", "tier", "customized", "default"}, rows)
		},
	}
}

func newTemplatesShowCmd(s *session) *cobra.Command {
	var resolved bool
	cmd := &cobra.Command{
		Use:   "show <kind> <name>",
		Short: "Print a template's content",
		Long: `Print the effective content of a template. With --resolved, inheritance
is applied and the chain of ancestors is reported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if resolved {
				doc, err := app.Templates.Resolve(cmd.Context(), ref)
				if err != nil {
					return err
				}
				if p.json {
					return p.JSON(map[string]any{"ref": doc.Ref, "tier": doc.Tier, "chain": doc.Chain, "content": doc.Content})
				}
				chain := make([]string, 0, len(doc.Chain))
				for _, l := range doc.Chain {
					chain = append(chain, string(l.Tier)+":"+l.Name)
				}
				p.Heading(fmt.Sprintf("%s (%s)", doc.Ref, strings.Join(chain, " -> ")))
				_, err = io.WriteString(p.w, doc.Content)
				return err
			}
			detail, err := app.Templates.Detail(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if p.json {
				return p.JSON(detail)
			}
			p.Heading(fmt.Sprintf("%s [%s]", detail.Ref, detail.Tier))
			if _, err := io.WriteString(p.w, detail.Content); err != nil {
				return err
			}
			if len(detail.Placeholders) == 0 {
				return nil
			}
			p.Line("")
			p.Heading("Placeholders")
			rows := make([][]string, 0, len(detail.Placeholders))
			for _, ph := range detail.Placeholders {
				rows = append(rows, []string{`\` + ph.Name, ph.Default, strconv.Itoa(ph.Line)})
			}
			return p.Table([]string{"name", "default", "line"}, rows)
		},
	}
	cmd.Flags().BoolVar(&resolved, "resolved", false, "Apply inheritance before printing")
	return cmd
}

func newTemplatesSaveCmd(s *session) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "save <kind> <name>",
		Short: "Save a user override from a file or stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			var data []byte
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Templates.Save(cmd.Context(), ref, string(data)); err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"ref": ref, "bytes": len(data)})
			}
			p.Line("saved %s (%d bytes)", ref, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from this file instead of stdin")
	return cmd
}

func newTemplatesResetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <kind> <name>",
		Short: "Remove a user override and fall back to the default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Templates.Reset(cmd.Context(), ref)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(res)
			}
			if res.Customized {
				p.Line("reset %s to default", res.Ref)
			} else {
				p.Line("%s was not customized", res.Ref)
			}
			return nil
		},
	}
}

func newAttachmentsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "attachments",
		Short: "List PDFs that can be appended to a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := app.Attachments.List(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"attachments": entries})
			}
			if len(entries) == 0 {
				p.Line("no attachments in %s", app.Attachments.Dir)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, fmt.Sprint(e.SizeBytes), e.ModifiedAt.Format("2006-01-02 15:04")})
			}
			return p.Table([]string{"name", "bytes", "modified"}, rows)
		},
	}
}

func parseRef(kind, name string) (templates.Ref, error) {
	k, err := templates.ParseKind(kind)
	if err != nil {
		return templates.Ref{}, err
	}
	return templates.NewRef(k, name)
}
