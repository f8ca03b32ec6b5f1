package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"applique-backend/internal/shared/metrics"
	"applique-backend/internal/shared/telemetry"
)

const (
	defaultTailLines = 40
	killGrace        = 2 * time.Second
)

// DefaultArgs are passed to the TeX engine ahead of the output directory and file.
var DefaultArgs = []string{"-interaction=nonstopmode", "-halt-on-error", "-file-line-error"}

// Job is one composed document to compile.
type Job struct {
	// Document is the logical name reported in artifacts and errors.
	Document string
	Source   string
	// Dir is created if missing and owned by this job alone.
	Dir string
}

// Artifact is the outcome of compiling one document. On failure OutputPath
// is empty and no partial PDF is left behind.
type Artifact struct {
	Document    string        `json:"document"`
	SourcePath  string        `json:"sourcePath,omitempty"`
	OutputPath  string        `json:"outputPath,omitempty"`
	Diagnostics string        `json:"diagnostics,omitempty"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"-"`
}

// Compiler turns a composed source into a PDF artifact.
type Compiler interface {
	Compile(ctx context.Context, job Job) Artifact
}

// LaTeX runs an external TeX engine such as pdflatex.
type LaTeX struct {
	Command string
	Args    []string
	// Passes reruns the engine so references and page counts settle.
	Passes  int
	Timeout time.Duration
	// TailLines bounds how much engine output is kept in diagnostics.
	TailLines int
}

// Compile writes the source into job.Dir and runs the engine there. The
// process group is killed when ctx is done or the timeout elapses.
func (l *LaTeX) Compile(ctx context.Context, job Job) Artifact {
	start := time.Now()
	stem := fileStem(job.Document)
	art := Artifact{
		Document:   job.Document,
		SourcePath: filepath.Join(job.Dir, stem+".tex"),
	}
	pdfPath := filepath.Join(job.Dir, stem+".pdf")
	fail := func(diag string) Artifact {
		_ = os.Remove(pdfPath)
		art.Diagnostics = diag
		art.Duration = time.Since(start)
		metrics.IncCompileFailed()
		metrics.ObserveCompileDurationMs(float64(art.Duration.Milliseconds()))
		telemetry.Warn("compile.failed", map[string]any{
			"document":    job.Document,
			"dir":         job.Dir,
			"duration_ms": art.Duration.Milliseconds(),
			"diagnostics": firstLine(diag),
		})
		return art
	}

	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return fail(fmt.Sprintf("prepare work dir: %v", err))
	}
	if err := os.WriteFile(art.SourcePath, []byte(job.Source), 0o644); err != nil {
		return fail(fmt.Sprintf("write source: %v", err))
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	passes := l.Passes
	if passes <= 0 {
		passes = 1
	}
	var output bytes.Buffer
	for pass := 1; pass <= passes; pass++ {
		output.Reset()
		err := l.run(runCtx, job.Dir, stem+".tex", &output)
		switch {
		case err == nil:
			// a finished pass stands even if ctx ends right after it
		case errors.Is(ctx.Err(), context.Canceled):
			return fail("compilation cancelled")
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fail(fmt.Sprintf("compilation timed out after %s\n%s", timeout, l.diagnose(job.Dir, stem, output.String())))
		case err != nil:
			return fail(l.diagnose(job.Dir, stem, output.String()))
		}
	}

	info, err := os.Stat(pdfPath)
	if err != nil || info.Size() == 0 {
		return fail("no PDF produced\n" + l.diagnose(job.Dir, stem, output.String()))
	}

	art.OutputPath = pdfPath
	art.Success = true
	art.Duration = time.Since(start)
	if warnings := SummarizeLog(readLog(job.Dir, stem)); len(warnings) > 0 {
		art.Diagnostics = strings.Join(warnings, "\n")
	}
	metrics.ObserveCompileDurationMs(float64(art.Duration.Milliseconds()))
	telemetry.Info("compile.succeeded", map[string]any{
		"document":    job.Document,
		"passes":      passes,
		"duration_ms": art.Duration.Milliseconds(),
	})
	return art
}

func (l *LaTeX) run(ctx context.Context, dir, file string, output *bytes.Buffer) error {
	command := l.Command
	if command == "" {
		command = "pdflatex"
	}
	args := l.Args
	if args == nil {
		args = DefaultArgs
	}
	args = append(append([]string(nil), args...), "-output-directory="+dir, file)

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Stdout = output
	cmd.Stderr = output
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killGrace
	return cmd.Run()
}

// diagnose combines the parsed TeX log with the tail of engine output.
func (l *LaTeX) diagnose(dir, stem, output string) string {
	n := l.TailLines
	if n <= 0 {
		n = defaultTailLines
	}
	var b strings.Builder
	if summary := SummarizeLog(readLog(dir, stem)); len(summary) > 0 {
		b.WriteString(strings.Join(summary, "\n"))
		b.WriteString("\n")
	} else if summary := SummarizeLog(output); len(summary) > 0 {
		b.WriteString(strings.Join(summary, "\n"))
		b.WriteString("\n")
	}
	if t := tail(output, n); t != "" {
		b.WriteString("--- output ---\n")
		b.WriteString(t)
	}
	if b.Len() == 0 {
		return "compiler exited without output"
	}
	return strings.TrimRight(b.String(), "\n")
}

func readLog(dir, stem string) string {
	data, err := os.ReadFile(filepath.Join(dir, stem+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}

func fileStem(document string) string {
	var b strings.Builder
	for _, r := range document {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ Compiler = (*LaTeX)(nil)
