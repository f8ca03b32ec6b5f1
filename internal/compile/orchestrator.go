package compile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel caps concurrent compilations per request.
const DefaultMaxParallel = 2

// CompilationError names the first document that failed to compile.
type CompilationError struct {
	Document    string
	Diagnostics string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Document, firstLine(e.Diagnostics))
}

// Source is one composed document handed to the orchestrator.
type Source struct {
	Document string
	Content  string
}

// Orchestrator compiles the documents of one request on a bounded pool.
type Orchestrator struct {
	Compiler    Compiler
	MaxParallel int
}

// CompileAll compiles every source in its own subdirectory of workdir and
// returns artifacts in input order, regardless of completion order. The
// first failure cancels the remaining compilations and is returned as a
// *CompilationError; if ctx itself is done its error is returned instead.
func (o *Orchestrator) CompileAll(ctx context.Context, workdir string, sources []Source) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := o.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}

	artifacts := make([]Artifact, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		dir := filepath.Join(workdir, fmt.Sprintf("%02d-%s", i, fileStem(src.Document)))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				artifacts[i] = Artifact{Document: src.Document, Diagnostics: "compilation cancelled"}
				return err
			}
			art := o.Compiler.Compile(gctx, Job{Document: src.Document, Source: src.Content, Dir: dir})
			artifacts[i] = art
			if !art.Success {
				return &CompilationError{Document: art.Document, Diagnostics: art.Diagnostics}
			}
			return nil
		})
	}
	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return artifacts, ctxErr
	}
	return artifacts, err
}

// Describe renders artifact outcomes for logs, e.g. "cv/cv.tex=ok,attachment/x.pdf=failed".
func Describe(artifacts []Artifact) string {
	parts := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		status := "ok"
		if !a.Success {
			status = "failed"
		}
		parts = append(parts, a.Document+"="+status)
	}
	return strings.Join(parts, ",")
}
