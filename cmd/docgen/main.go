// Package main provides docgen, a command line front end to the template
// store, the generation pipeline and the generation history.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"applique-backend/internal/bootstrap"
	"applique-backend/internal/shared/config"
	"applique-backend/internal/shared/telemetry"
)

// Set via ldflags: go build -ldflags "-X main.version=1.0.0".
var version = "dev"

// buildFunc assembles the services a command needs.
type buildFunc func(ctx context.Context) (*bootstrap.App, error)

func defaultBuild(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.BuildCore(ctx, config.Load())
}

// session builds the app on first use and closes it after the command runs.
type session struct {
	build buildFunc
	app   *bootstrap.App
}

func (s *session) App(ctx context.Context) (*bootstrap.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	app, err := s.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	s.app = app
	return app, nil
}

func (s *session) Close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

func main() {
	// structured logs go to stderr only when asked for
	if os.Getenv("DOCGEN_VERBOSE") == "" {
		telemetry.SetOutput(io.Discard)
	} else {
		telemetry.SetOutput(os.Stderr)
	}
	cmd := newRootCmd(defaultBuild)
	if err := fang.Execute(context.Background(), cmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(build buildFunc) *cobra.Command {
	s := &session{build: build}
	cmd := &cobra.Command{
		Use:   "docgen",
		Short: "Resolve LaTeX templates and generate application documents",
		Long: `docgen resolves CV and cover letter templates from the user and default
tiers, fills them with profile, posting and custom variables, compiles them
and assembles the result into a single PDF.

All commands support --json for machine-readable output.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.Close()
		},
	}
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	cmd.AddGroup(&cobra.Group{ID: "templates", Title: "Template Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "documents", Title: "Document Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "history", Title: "History Commands:"})

	addGroupedCommand(cmd, newTemplatesCmd(s), "templates")
	addGroupedCommand(cmd, newAttachmentsCmd(s), "templates")
	addGroupedCommand(cmd, newPreviewCmd(s), "documents")
	addGroupedCommand(cmd, newGenerateCmd(s), "documents")
	addGroupedCommand(cmd, newHistoryCmd(s), "history")
	return cmd
}

func addGroupedCommand(parent, child *cobra.Command, groupID string) {
	child.GroupID = groupID
	parent.AddCommand(child)
}

func isJSONMode(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("json")
	if flag == nil {
		flag = cmd.Root().PersistentFlags().Lookup("json")
	}
	return flag != nil && flag.Value.String() == "true"
}
