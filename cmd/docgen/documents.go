package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"applique-backend/internal/generate"
	"applique-backend/internal/templates"
)

// variableFlags are shared by preview and generate.
type variableFlags struct {
	posting string
	vars    []string
}

func (f *variableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.posting, "posting", "", "Posting id to take company and job variables from")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Custom variable as key=value (repeatable)")
}

func (f *variableFlags) custom() (map[string]string, error) {
	if len(f.vars) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(f.vars))
	for _, kv := range f.vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--var %q: expected key=value", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newPreviewCmd(s *session) *cobra.Command {
	var vf variableFlags
	cmd := &cobra.Command{
		Use:   "preview <kind> <name>",
		Short: "Print a template with variables filled in, without compiling",
		Long: `Resolve a template, substitute variables and print the result.

Examples:
  docgen preview cover_letter cover_letter --posting acme-2026
  docgen preview cv cv --var city=Basel --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := vf.custom()
			if err != nil {
				return err
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			out, err := app.Generate.Preview(cmd.Context(), generate.PreviewRequest{
				Kind:            templates.Kind(args[0]),
				Name:            args[1],
				PostingID:       vf.posting,
				CustomVariables: custom,
			})
			if err != nil {
				return describe(err)
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(out)
			}
			p.Heading(fmt.Sprintf("%s [%s]", out.Ref, out.Tier))
			for _, b := range out.Placeholders {
				if b.Variable == "" {
					p.Line("  \\%s  (default)", b.Name)
					continue
				}
				p.Line("  \\%s  <- %s", b.Name, b.Variable)
			}
			p.Line("")
			p.Line("%s", strings.TrimRight(out.Content, "\n"))
			return nil
		},
	}
	vf.register(cmd)
	return cmd
}

func newGenerateCmd(s *session) *cobra.Command {
	var (
		vf          variableFlags
		cv          string
		coverLetter string
		attach      []string
		order       []string
		combine     bool
		out         string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile documents and assemble one PDF",
		Long: `Compile the selected templates, assemble them with any attachments and
store the resulting PDF. More than one document requires --combine.

Examples:
  docgen generate --cv cv
  docgen generate --cv cv --cover-letter cover_letter --combine --posting acme-2026
  docgen generate --cover-letter cover_letter --attach transcript.pdf --combine \
    --order cover_letter,transcript.pdf --out ./application.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			custom, err := vf.custom()
			if err != nil {
				return err
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Generate.Generate(cmd.Context(), generate.Request{
				CVFile:          cv,
				CoverLetterFile: coverLetter,
				Attachments:     attach,
				Order:           order,
				Combine:         combine,
				PostingID:       vf.posting,
				CustomVariables: custom,
			})
			if err != nil {
				return describe(err)
			}
			if out != "" {
				r, err := app.Store.Open(cmd.Context(), res.Filename)
				if err != nil {
					return fmt.Errorf("open generated file: %w", err)
				}
				defer r.Close()
				if err := atomic.WriteFile(out, r); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}

			p := newPrinter(cmd)
			if p.json {
				return p.JSON(res)
			}
			p.Heading(res.Filename)
			p.Line("pages:     %d", res.Pages)
			p.Line("documents: %s", strings.Join(res.Documents, ", "))
			if res.GenerationID != "" {
				p.Line("history:   %s", res.GenerationID)
			}
			if out != "" {
				abs, _ := filepath.Abs(out)
				p.Line("written:   %s", abs)
			}
			for _, w := range res.Warnings {
				p.Line("warning:   %s", w)
			}
			if res.LedgerWarning != "" {
				p.Line("warning:   %s", res.LedgerWarning)
			}
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&cv, "cv", "", "CV template name")
	cmd.Flags().StringVar(&coverLetter, "cover-letter", "", "Cover letter template name")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "Attachment file name (repeatable)")
	cmd.Flags().StringSliceVar(&order, "order", nil, "Page order as slot ids: cv, cover_letter or attachment names")
	cmd.Flags().BoolVar(&combine, "combine", false, "Merge several documents into one PDF")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also copy the generated PDF to this path")
	return cmd
}

// describe adds the failing stage and compiler diagnostics to err's message.
func describe(err error) error {
	var f *generate.Failure
	if !errors.As(err, &f) || f.Diagnostics == "" {
		return err
	}
	return fmt.Errorf("%w\n\n%s", err, strings.TrimSpace(f.Diagnostics))
}
