package extract

import (
	"errors"
	"fmt"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
)

var (
	ErrParamCount        = errors.New("verb must take exactly one parameter")
	ErrMissingAnnotation = errors.New("parameter has no type annotation")
	ErrMissingReturn     = errors.New("verb has no return annotation")
	ErrUnmappedType      = errors.New("type has no schema representation")
	ErrDuplicateDecl     = errors.New("name already declared in the module")
	ErrSyntax            = pyast.ErrSyntax
)

// FileAnalysisError reports a file that contributed nothing to a batch.
type FileAnalysisError struct {
	Path  string
	Batch int
	Err   error
}

func (e *FileAnalysisError) Error() string {
	return fmt.Sprintf("%s: batch %d: %v", e.Path, e.Batch, e.Err)
}

func (e *FileAnalysisError) Unwrap() error { return e.Err }

// DeclarationError reports a single skipped declaration.
type DeclarationError struct {
	Pos  schema.Position
	Name string
	Err  error
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Pos, e.Name, e.Err)
}

func (e *DeclarationError) Unwrap() error { return e.Err }

// Diagnostic is a recovered failure recorded during a run.
type Diagnostic struct {
	Batch int
	Path  string
	// Err is a *FileAnalysisError or a *DeclarationError.
	Err error
}

func (d Diagnostic) String() string { return d.Err.Error() }
