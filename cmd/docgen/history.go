package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHistoryCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune the generation history",
	}
	cmd.AddCommand(newHistoryListCmd(s), newHistoryDeleteCmd(s), newHistoryClearCmd(s))
	return cmd
}

func newHistoryListCmd(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generated documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := app.Generations.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"generations": recs})
			}
			if len(recs) == 0 {
				p.Line("no generations recorded")
				return nil
			}
			rows := make([][]string, 0, len(recs))
			for _, r := range recs {
				var docs []string
				if r.CVFile != "" {
					docs = append(docs, r.CVFile)
				}
				if r.CoverLetterFile != "" {
					docs = append(docs, r.CoverLetterFile)
				}
				docs = append(docs, r.Attachments...)
				rows = append(rows, []string{
					r.ID,
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.CompanyName,
					strings.Join(docs, "+"),
					fmt.Sprint(r.PageCount),
					r.Filename,
				})
			}
			return p.Table([]string{"id", "created", "company", "documents", "pages", "file"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records to show (default 50)")
	return cmd
}

func newHistoryDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history record; the generated file is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Generations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"deleted": args[0]})
			}
			p.Line("deleted %s", args[0])
			return nil
		},
	}
}

func newHistoryClearCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every history record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear history without --yes")
			}
			app, err := s.App(cmd.Context())
			if err != nil {
				return err
			}
			n, err := app.Generations.Clear(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.json {
				return p.JSON(map[string]any{"removed": n})
			}
			p.Line("removed %d records", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the history")
	return cmd
}
