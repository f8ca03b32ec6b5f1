// Package assemble combines compiled artifacts into the single PDF handed
// back to the caller.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"applique-backend/internal/compile"
	"applique-backend/internal/shared/telemetry"
)

// AssemblyError reports why artifacts could not be combined. Document is
// empty when the failure is not tied to one input.
type AssemblyError struct {
	Document string
	Reason   string
	Err      error
}

func (e *AssemblyError) Error() string {
	msg := "assemble"
	if e.Document != "" {
		msg += " " + e.Document
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Result describes the assembled file.
type Result struct {
	Path      string
	Pages     int
	SizeBytes int64
	// Combined is set when more than one input was merged.
	Combined bool
	// Documents lists the inputs in the order their pages appear.
	Documents []string
}

var configOnce sync.Once

func mergeConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Assemble writes the final PDF to outPath. With combine set, every
// artifact's pages are concatenated in slice order without re-rendering.
// Without it exactly one artifact is expected and is copied unchanged.
func Assemble(ctx context.Context, artifacts []compile.Artifact, combine bool, outPath string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(artifacts) == 0 {
		return Result{}, &AssemblyError{Reason: "no artifacts to assemble"}
	}
	if !combine && len(artifacts) > 1 {
		return Result{}, &AssemblyError{Reason: fmt.Sprintf("%d documents require combine", len(artifacts))}
	}

	inputs := make([]string, 0, len(artifacts))
	docs := make([]string, 0, len(artifacts))
	total := 0
	for _, a := range artifacts {
		if !a.Success || a.OutputPath == "" {
			return Result{}, &AssemblyError{Document: a.Document, Reason: "artifact did not compile"}
		}
		pages, err := PageCount(a.OutputPath)
		if err != nil {
			return Result{}, &AssemblyError{Document: a.Document, Reason: "unreadable pdf", Err: err}
		}
		if pages == 0 {
			return Result{}, &AssemblyError{Document: a.Document, Reason: "pdf has no pages"}
		}
		total += pages
		inputs = append(inputs, a.OutputPath)
		docs = append(docs, a.Document)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, &AssemblyError{Reason: "prepare output dir", Err: err}
	}

	if len(inputs) == 1 {
		if err := copyFile(inputs[0], outPath); err != nil {
			return Result{}, &AssemblyError{Document: docs[0], Reason: "copy output", Err: err}
		}
	} else {
		if err := merge(ctx, inputs, outPath, total); err != nil {
			return Result{}, err
		}
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return Result{}, &AssemblyError{Reason: "stat output", Err: err}
	}
	telemetry.Info("assemble.completed", map[string]any{
		"documents": len(docs),
		"pages":     total,
		"combined":  len(docs) > 1,
		"bytes":     info.Size(),
	})
	return Result{
		Path:      outPath,
		Pages:     total,
		SizeBytes: info.Size(),
		Combined:  len(docs) > 1,
		Documents: docs,
	}, nil
}

// merge concatenates inputs into a temp file beside outPath and renames it
// into place once the page total checks out.
func merge(ctx context.Context, inputs []string, outPath string, want int) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".merge-*.pdf")
	if err != nil {
		return &AssemblyError{Reason: "create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := api.MergeCreateFile(inputs, tmpPath, false, mergeConfig()); err != nil {
		return &AssemblyError{Reason: "merge", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	got, err := PageCount(tmpPath)
	if err != nil {
		return &AssemblyError{Reason: "unreadable merged pdf", Err: err}
	}
	if got != want {
		return &AssemblyError{Reason: fmt.Sprintf("merged pdf has %d pages, expected %d", got, want)}
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return &AssemblyError{Reason: "move merged pdf", Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := atomic.WriteFile(dst, f); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return nil
}
