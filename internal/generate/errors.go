package generate

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a request that fails validation.
var ErrInvalidInput = errors.New("invalid input")

// Stage names the pipeline step a failure occurred in. The values double as
// API error codes.
type Stage string

const (
	StageResolve  Stage = "resolution_failed"
	StageRender   Stage = "render_failed"
	StageCompile  Stage = "compile_failed"
	StageAssemble Stage = "assembly_failed"
	StageStore    Stage = "storage_failed"
)

// Failure is the structured error returned for any request that could not
// produce its final artifact.
type Failure struct {
	Stage Stage
	// Document names the failing document or source when there is one.
	Document    string
	Diagnostics string
	Err         error
}

func (f *Failure) Error() string {
	msg := string(f.Stage)
	if f.Document != "" {
		msg += ": " + f.Document
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
