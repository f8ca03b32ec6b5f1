// Package generate runs one generation request end to end: resolve and
// compose templates, compile them in parallel, assemble the final PDF,
// store it, and record it in the ledger.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"applique-backend/internal/assemble"
	"applique-backend/internal/compile"
	"applique-backend/internal/compose"
	"applique-backend/internal/generations"
	"applique-backend/internal/shared/metrics"
	"applique-backend/internal/shared/storage/object"
	"applique-backend/internal/shared/telemetry"
	"applique-backend/internal/templates"
	"applique-backend/internal/variables"
)

// TemplateResolver returns the effective template for a ref.
type TemplateResolver interface {
	Resolve(ctx context.Context, ref templates.Ref) (templates.Document, error)
}

// AttachmentLocator maps an attachment name to a readable PDF path.
type AttachmentLocator interface {
	Path(name string) (string, error)
}

// Compiler compiles composed sources under workdir in input order.
type Compiler interface {
	CompileAll(ctx context.Context, workdir string, sources []compile.Source) ([]compile.Artifact, error)
}

// Ledger records completed generations.
type Ledger interface {
	Record(ctx context.Context, rec generations.Record) (generations.Record, error)
}

// Service wires the pipeline's collaborators. Profile, Postings and Ledger
// are optional.
type Service struct {
	Templates   TemplateResolver
	Attachments AttachmentLocator
	Profile     variables.ProfileProvider
	Postings    variables.PostingProvider
	Policy      variables.Policy
	Compiler    Compiler
	Store       object.ObjectStore
	Ledger      Ledger
	// WorkDir holds one subdirectory per request.
	WorkDir string
	NewID   func() string
}

// Result describes a successful generation.
type Result struct {
	RequestID    string   `json:"requestId"`
	GenerationID string   `json:"generationId,omitempty"`
	Filename     string   `json:"filename"`
	Pages        int      `json:"pages"`
	SizeBytes    int64    `json:"sizeBytes"`
	Combined     bool     `json:"combined"`
	Documents    []string `json:"documents"`
	// Warnings carries compiler warnings from documents that still succeeded.
	Warnings []string `json:"warnings,omitempty"`
	// LedgerWarning is set when the file was produced but history was not updated.
	LedgerWarning string `json:"ledgerWarning,omitempty"`
}

// Generate produces exactly one stored PDF for req or fails without
// recording anything. A request whose ctx is already done has no side effects.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	slots, err := plan(req)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	requestID := s.newID()
	metrics.IncGenerationStarted()
	telemetry.Info("generate.started", map[string]any{
		"request_id": requestID,
		"documents":  len(slots),
		"combine":    req.Combine,
		"posting_id": req.PostingID,
	})

	res, err := s.run(ctx, req, slots, requestID)
	elapsed := time.Since(start)
	metrics.ObserveGenerationDurationMs(float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.IncGenerationFailed()
		fields := map[string]any{
			"request_id":  requestID,
			"duration_ms": elapsed.Milliseconds(),
			"err":         err,
		}
		var f *Failure
		if errors.As(err, &f) {
			fields["stage"] = string(f.Stage)
			fields["document"] = f.Document
		}
		telemetry.Warn("generate.failed", fields)
		return Result{}, err
	}

	metrics.IncGenerationCompleted()
	telemetry.Info("generate.completed", map[string]any{
		"request_id":    requestID,
		"generation_id": res.GenerationID,
		"filename":      res.Filename,
		"pages":         res.Pages,
		"duration_ms":   elapsed.Milliseconds(),
	})
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, slots []slot, requestID string) (Result, error) {
	vars, err := s.variables(ctx, req.PostingID, req.CustomVariables)
	if err != nil {
		return Result{}, err
	}

	var sources []compile.Source
	attachmentPaths := map[string]string{}
	for _, sl := range slots {
		switch sl.kind {
		case kindTemplate:
			doc, err := s.Templates.Resolve(ctx, sl.ref)
			if err != nil {
				return Result{}, resolveFailure(sl.document(), err)
			}
			text, err := compose.Compose(doc, vars)
			if err != nil {
				return Result{}, &Failure{Stage: StageRender, Document: sl.document(), Diagnostics: err.Error(), Err: err}
			}
			sources = append(sources, compile.Source{Document: sl.document(), Content: text})
		case kindAttachment:
			path, err := s.Attachments.Path(sl.name)
			if err != nil {
				return Result{}, &Failure{Stage: StageResolve, Document: sl.document(), Diagnostics: err.Error(), Err: err}
			}
			attachmentPaths[sl.id] = path
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	workdir := filepath.Join(s.WorkDir, requestID)
	succeeded := false
	defer func() {
		if succeeded {
			if err := os.RemoveAll(workdir); err != nil {
				telemetry.Warn("generate.workdir_cleanup_failed", map[string]any{"request_id": requestID, "dir": workdir, "err": err})
			}
			return
		}
		if _, err := os.Stat(workdir); err == nil {
			telemetry.Warn("generate.workdir_kept", map[string]any{"request_id": requestID, "dir": workdir})
		}
	}()

	compiled := map[string]compile.Artifact{}
	if len(sources) > 0 {
		artifacts, err := s.Compiler.CompileAll(ctx, workdir, sources)
		if err != nil {
			if len(artifacts) > 0 {
				telemetry.Warn("generate.compile_failed", map[string]any{
					"request_id": requestID,
					"artifacts":  compile.Describe(artifacts),
				})
			}
			var cerr *compile.CompilationError
			if errors.As(err, &cerr) {
				return Result{}, &Failure{Stage: StageCompile, Document: cerr.Document, Diagnostics: cerr.Diagnostics, Err: err}
			}
			return Result{}, err
		}
		for _, a := range artifacts {
			compiled[a.Document] = a
		}
	}

	ordered := make([]compile.Artifact, 0, len(slots))
	var warnings []string
	for _, sl := range slots {
		if sl.kind == kindAttachment {
			ordered = append(ordered, compile.Artifact{Document: sl.document(), OutputPath: attachmentPaths[sl.id], Success: true})
			continue
		}
		a := compiled[sl.document()]
		if a.Diagnostics != "" {
			for _, line := range strings.Split(a.Diagnostics, "\n") {
				warnings = append(warnings, a.Document+": "+line)
			}
		}
		ordered = append(ordered, a)
	}

	company := vars["company_name"]
	filename := outputName(company, slots, fingerprint(req, slots), requestID)
	asm, err := assemble.Assemble(ctx, ordered, req.Combine, filepath.Join(workdir, filename))
	if err != nil {
		var aerr *assemble.AssemblyError
		if errors.As(err, &aerr) {
			return Result{}, &Failure{Stage: StageAssemble, Document: aerr.Document, Diagnostics: aerr.Error(), Err: err}
		}
		return Result{}, err
	}

	size, err := s.put(ctx, filename, asm.Path)
	if err != nil {
		return Result{}, &Failure{Stage: StageStore, Diagnostics: err.Error(), Err: err}
	}

	res := Result{
		RequestID: requestID,
		Filename:  filename,
		Pages:     asm.Pages,
		SizeBytes: size,
		Combined:  asm.Combined,
		Documents: asm.Documents,
		Warnings:  warnings,
	}
	succeeded = true

	if s.Ledger != nil {
		rec := generations.Record{
			Filename:    filename,
			StorageKey:  filename,
			PostingID:   strings.TrimSpace(req.PostingID),
			CompanyName: company,
			JobTitle:    vars["job_title"],
			Combined:    asm.Combined,
			PageCount:   asm.Pages,
			SizeBytes:   size,
		}
		for _, sl := range slots {
			switch {
			case sl.id == SlotCV:
				rec.CVFile = sl.ref.Name
			case sl.id == SlotCoverLetter:
				rec.CoverLetterFile = sl.ref.Name
			default:
				rec.Attachments = append(rec.Attachments, sl.name)
			}
		}
		saved, err := s.Ledger.Record(ctx, rec)
		if err != nil {
			res.LedgerWarning = "document generated but history was not updated: " + err.Error()
		} else {
			res.GenerationID = saved.ID
		}
	}
	return res, nil
}

// variables gathers every source for a request and merges them by policy.
func (s *Service) variables(ctx context.Context, postingID string, custom map[string]string) (variables.Map, error) {
	var sources []variables.Source
	if s.Profile != nil {
		p, err := s.Profile.Profile(ctx)
		if err != nil {
			return nil, &Failure{Stage: StageResolve, Document: "profile", Diagnostics: err.Error(), Err: err}
		}
		sources = append(sources, variables.Source{Name: variables.SourceProfile, Values: p.Values()})
	}
	if id := strings.TrimSpace(postingID); id != "" {
		if s.Postings == nil {
			err := fmt.Errorf("%w: posting %s", variables.ErrNotFound, id)
			return nil, &Failure{Stage: StageResolve, Document: "posting/" + id, Diagnostics: err.Error(), Err: err}
		}
		p, err := s.Postings.Posting(ctx, id)
		if err != nil {
			return nil, &Failure{Stage: StageResolve, Document: "posting/" + id, Diagnostics: err.Error(), Err: err}
		}
		sources = append(sources, variables.Source{Name: variables.SourcePosting, Values: p.Values()})
	}
	if len(custom) > 0 {
		sources = append(sources, variables.Source{Name: variables.SourceCustom, Values: custom})
	}
	return s.Policy.Resolve(sources...), nil
}

func (s *Service) put(ctx context.Context, key, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.Store.Put(ctx, key, "application/pdf", f)
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func resolveFailure(document string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	f := &Failure{Stage: StageResolve, Document: document, Diagnostics: err.Error(), Err: err}
	var rerr *templates.ResolutionError
	if errors.As(err, &rerr) && rerr.Missing != "" {
		f.Diagnostics = fmt.Sprintf("%s: missing template %s", rerr.Ref, rerr.Missing)
	}
	return f
}
